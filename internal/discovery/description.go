package discovery

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DeviceDescription is a candidate device as reported by a discovery
// repository. The MAC address inside Identifiers is the device's identity
// key: two descriptions refer to the same device iff both carry a MAC and
// the MACs match case-insensitively.
//
// A description is never merged field-by-field; a later description with the
// same MAC and a newer timestamp supersedes the older one wholesale.
type DeviceDescription struct {
	Identifiers  *DeviceIdentifiers `json:"identifiers,omitempty"`
	Description  string             `json:"description,omitempty"`
	Location     *DeviceLocation    `json:"location,omitempty"`
	Capabilities []Capability       `json:"capabilities,omitempty"`
	Attachments  []Attachment       `json:"attachments,omitempty"`
	SSH          *SSHDetails        `json:"ssh,omitempty"`

	// LastUpdate is the repository-side modification time in epoch millis.
	LastUpdate int64 `json:"lastUpdateTimestamp"`
}

// DeviceIdentifiers holds the identifying attributes of a device.
type DeviceIdentifiers struct {
	MACAddress   string `json:"macAddress"`
	Type         string `json:"type,omitempty"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	OSName       string `json:"osName,omitempty"`
}

// DeviceLocation describes where a device is installed.
type DeviceLocation struct {
	Description string    `json:"description,omitempty"`
	Point       *GeoPoint `json:"point,omitempty"`
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Attachment describes a peripheral attached to a device.
type Attachment struct {
	Type   string            `json:"type,omitempty"`
	Name   string            `json:"name,omitempty"`
	Model  string            `json:"model,omitempty"`
	Object *AttachmentObject `json:"object,omitempty"`
	Port   string            `json:"port,omitempty"`
}

// AttachmentObject describes the physical object an attachment observes or
// actuates.
type AttachmentObject struct {
	Description string `json:"description,omitempty"`
	Quantity    string `json:"quantity,omitempty"`
}

// SSHDetails holds the connection details for accessing a device via SSH.
type SSHDetails struct {
	IPAddress  string `json:"ipAddress"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
}

// MAC returns the description's MAC address, or "" if no identifiers are
// present.
func (d *DeviceDescription) MAC() string {
	if d == nil || d.Identifiers == nil {
		return ""
	}
	return d.Identifiers.MACAddress
}

// SameDevice reports whether two descriptions refer to the same physical
// device. Descriptions without identifiers are never equal to anything.
func (d *DeviceDescription) SameDevice(other *DeviceDescription) bool {
	if d == nil || other == nil {
		return false
	}
	mac, otherMAC := d.MAC(), other.MAC()
	if mac == "" || otherMAC == "" {
		return false
	}
	return strings.EqualFold(mac, otherMAC)
}

// Valid reports whether the description is structurally usable: it must
// carry a MAC address. Malformed descriptions are dropped during processing
// rather than raising errors.
func (d *DeviceDescription) Valid() bool {
	return d != nil && d.MAC() != ""
}

// LastUpdateTime returns the last-update timestamp as a time.Time.
func (d *DeviceDescription) LastUpdateTime() time.Time {
	return time.UnixMilli(d.LastUpdate)
}

// Capability returns the capability with the given name, matched
// case-insensitively, or nil if the device does not report it.
func (d *DeviceDescription) Capability(name string) *Capability {
	for i := range d.Capabilities {
		if strings.EqualFold(d.Capabilities[i].Name, name) {
			return &d.Capabilities[i]
		}
	}
	return nil
}

// DeepCopy creates a complete independent copy of the DeviceDescription.
func (d *DeviceDescription) DeepCopy() *DeviceDescription {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.Identifiers != nil {
		ids := *d.Identifiers
		cpy.Identifiers = &ids
	}
	if d.Location != nil {
		loc := *d.Location
		if d.Location.Point != nil {
			p := *d.Location.Point
			loc.Point = &p
		}
		cpy.Location = &loc
	}
	if d.Capabilities != nil {
		cpy.Capabilities = make([]Capability, len(d.Capabilities))
		copy(cpy.Capabilities, d.Capabilities)
	}
	if d.Attachments != nil {
		cpy.Attachments = make([]Attachment, len(d.Attachments))
		for i, a := range d.Attachments {
			if a.Object != nil {
				obj := *a.Object
				a.Object = &obj
			}
			cpy.Attachments[i] = a
		}
	}
	if d.SSH != nil {
		ssh := *d.SSH
		cpy.SSH = &ssh
	}

	return &cpy
}

// Capability is a named, typed property of a device. The value is a string,
// a number or a boolean; the cumulative flag marks capabilities whose values
// accumulate over time.
type Capability struct {
	Name       string          `json:"name"`
	Value      CapabilityValue `json:"value"`
	Cumulative bool            `json:"cumulative,omitempty"`
}

// CapabilityValueKind discriminates the runtime type of a capability value.
type CapabilityValueKind int

// Capability value kinds.
const (
	CapabilityValueInvalid CapabilityValueKind = iota
	CapabilityValueString
	CapabilityValueNumber
	CapabilityValueBoolean
)

// CapabilityValue holds a string, number or boolean capability value.
// The zero value is invalid; scoring criteria treat it as an absent
// capability.
type CapabilityValue struct {
	kind    CapabilityValueKind
	str     string
	num     float64
	boolean bool
}

// StringValue creates a string-typed capability value.
func StringValue(s string) CapabilityValue {
	return CapabilityValue{kind: CapabilityValueString, str: s}
}

// NumberValue creates a number-typed capability value.
func NumberValue(n float64) CapabilityValue {
	return CapabilityValue{kind: CapabilityValueNumber, num: n}
}

// BooleanValue creates a boolean-typed capability value.
func BooleanValue(b bool) CapabilityValue {
	return CapabilityValue{kind: CapabilityValueBoolean, boolean: b}
}

// Kind returns the runtime type of the value.
func (v CapabilityValue) Kind() CapabilityValueKind { return v.kind }

// AsString returns the string value. The second result is false if the
// value is not a string.
func (v CapabilityValue) AsString() (string, bool) {
	return v.str, v.kind == CapabilityValueString
}

// AsNumber returns the numeric value. The second result is false if the
// value is not a number.
func (v CapabilityValue) AsNumber() (float64, bool) {
	return v.num, v.kind == CapabilityValueNumber
}

// AsBoolean returns the boolean value. The second result is false if the
// value is not a boolean.
func (v CapabilityValue) AsBoolean() (bool, bool) {
	return v.boolean, v.kind == CapabilityValueBoolean
}

// MarshalJSON encodes the value as a bare JSON string, number or boolean.
func (v CapabilityValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case CapabilityValueString:
		return json.Marshal(v.str)
	case CapabilityValueNumber:
		return json.Marshal(v.num)
	case CapabilityValueBoolean:
		return json.Marshal(v.boolean)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a bare JSON string, number or boolean. Any other
// JSON value leaves the CapabilityValue invalid without error, so that a
// single malformed capability does not reject a whole device description.
func (v *CapabilityValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("capability value: %w", err)
	}

	switch val := raw.(type) {
	case string:
		*v = StringValue(val)
	case float64:
		*v = NumberValue(val)
	case bool:
		*v = BooleanValue(val)
	default:
		*v = CapabilityValue{}
	}
	return nil
}
