package discovery

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Revision operation type discriminators as they appear on the wire.
const (
	OperationTypeUpsert  = "upsert"
	OperationTypeReplace = "replace"
	OperationTypeDelete  = "delete"
)

// RevisionOperation is one step of a revision. Operations are applied in
// order; later operations may reference devices added earlier in the same
// revision.
type RevisionOperation interface {
	// Type returns the wire discriminator of the operation.
	Type() string

	// Apply executes the operation against the collection, mutating it.
	Apply(c *CandidateDevicesCollection)
}

// UpsertOperation adds device descriptions to a collection, replacing any
// existing description with the same MAC.
type UpsertOperation struct {
	DeviceDescriptions []DeviceDescription `json:"deviceDescriptions"`
}

// Type implements RevisionOperation.
func (o *UpsertOperation) Type() string { return OperationTypeUpsert }

// Apply implements RevisionOperation.
func (o *UpsertOperation) Apply(c *CandidateDevicesCollection) {
	for _, d := range o.DeviceDescriptions {
		c.Add(d)
	}
}

// MarshalJSON adds the type discriminator to the encoded operation.
func (o *UpsertOperation) MarshalJSON() ([]byte, error) {
	type plain UpsertOperation
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{Type: o.Type(), plain: (*plain)(o)})
}

// ReplaceOperation discards the collection's devices entirely and installs
// a new set. Repositories use it for full resyncs and to seed the initial
// candidate set in a query reply.
type ReplaceOperation struct {
	DeviceDescriptions []DeviceDescription `json:"deviceDescriptions"`
}

// Type implements RevisionOperation.
func (o *ReplaceOperation) Type() string { return OperationTypeReplace }

// Apply implements RevisionOperation.
func (o *ReplaceOperation) Apply(c *CandidateDevicesCollection) {
	c.Replace(o.DeviceDescriptions)
}

// MarshalJSON adds the type discriminator to the encoded operation.
func (o *ReplaceOperation) MarshalJSON() ([]byte, error) {
	type plain ReplaceOperation
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{Type: o.Type(), plain: (*plain)(o)})
}

// DeleteOperation removes devices from a collection by MAC address.
type DeleteOperation struct {
	MACAddresses []string `json:"macAddresses"`
}

// Type implements RevisionOperation.
func (o *DeleteOperation) Type() string { return OperationTypeDelete }

// Apply implements RevisionOperation.
func (o *DeleteOperation) Apply(c *CandidateDevicesCollection) {
	for _, mac := range o.MACAddresses {
		c.Remove(mac)
	}
}

// MarshalJSON adds the type discriminator to the encoded operation.
func (o *DeleteOperation) MarshalJSON() ([]byte, error) {
	type plain DeleteOperation
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{Type: o.Type(), plain: (*plain)(o)})
}

// RevisionOperations is an ordered list of operations with tagged-union
// JSON encoding.
type RevisionOperations []RevisionOperation

// UnmarshalJSON decodes a list of operations, dispatching on each element's
// type discriminator.
func (ops *RevisionOperations) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("revision operations: %w", err)
	}

	out := make(RevisionOperations, 0, len(raw))
	for i, msg := range raw {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			return fmt.Errorf("revision operation %d: %w", i, err)
		}

		var op RevisionOperation
		switch head.Type {
		case OperationTypeUpsert:
			op = &UpsertOperation{}
		case OperationTypeReplace:
			op = &ReplaceOperation{}
		case OperationTypeDelete:
			op = &DeleteOperation{}
		default:
			return fmt.Errorf("revision operation %d: %w: %q", i, ErrUnknownOperation, head.Type)
		}

		if err := json.Unmarshal(msg, op); err != nil {
			return fmt.Errorf("revision operation %d (%s): %w", i, head.Type, err)
		}
		out = append(out, op)
	}

	*ops = out
	return nil
}

// Revision is an ordered diff produced by a discovery repository,
// describing how its previously reported candidate set changed. The
// reference ids name the device templates the revision pertains to.
//
// Application is order-sensitive and not idempotent across separate task
// executions: a revision must be applied exactly once.
type Revision struct {
	ReferenceIDs []string           `json:"referenceIds"`
	Operations   RevisionOperations `json:"operations"`
}

// References reports whether the revision pertains to the given device
// template id.
func (r *Revision) References(deviceTemplateID string) bool {
	for _, id := range r.ReferenceIDs {
		if id == deviceTemplateID {
			return true
		}
	}
	return false
}

// Apply executes all operations in order against the collection.
func (r *Revision) Apply(c *CandidateDevicesCollection) {
	for _, op := range r.Operations {
		op.Apply(c)
	}
}

// FirstReplace returns the device descriptions of the first replace
// operation, or nil if the revision contains none. Query replies seed the
// initial candidate set this way.
func (r *Revision) FirstReplace() []DeviceDescription {
	for _, op := range r.Operations {
		if rep, ok := op.(*ReplaceOperation); ok {
			return rep.DeviceDescriptions
		}
	}
	return nil
}

// Summary returns a short human-readable account of the revision's
// operations for discovery log messages.
func (r *Revision) Summary() string {
	if len(r.Operations) == 0 {
		return "no operations"
	}

	parts := make([]string, 0, len(r.Operations))
	for _, op := range r.Operations {
		switch o := op.(type) {
		case *UpsertOperation:
			parts = append(parts, fmt.Sprintf("upsert %d device(s)", len(o.DeviceDescriptions)))
		case *ReplaceOperation:
			parts = append(parts, fmt.Sprintf("replace with %d device(s)", len(o.DeviceDescriptions)))
		case *DeleteOperation:
			parts = append(parts, fmt.Sprintf("delete %d device(s)", len(o.MACAddresses)))
		default:
			parts = append(parts, op.Type())
		}
	}
	return strings.Join(parts, ", ")
}
