package discovery

import "strings"

// CandidateDevicesCollection holds the device descriptions reported by one
// discovery repository for one device template. Descriptions are unique by
// MAC address within a collection.
type CandidateDevicesCollection struct {
	RepositoryName string              `json:"repositoryName"`
	Devices        []DeviceDescription `json:"deviceDescriptions"`
}

// NewCollection creates an empty collection for the named repository.
func NewCollection(repositoryName string) *CandidateDevicesCollection {
	return &CandidateDevicesCollection{RepositoryName: repositoryName}
}

// Valid reports whether the collection is structurally usable.
func (c *CandidateDevicesCollection) Valid() bool {
	return c != nil && c.RepositoryName != ""
}

// Len returns the number of devices in the collection.
func (c *CandidateDevicesCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Devices)
}

// Add inserts a device description, replacing any existing description with
// the same MAC. Descriptions without a MAC are appended as-is since they
// carry no identity to collide on.
func (c *CandidateDevicesCollection) Add(d DeviceDescription) {
	if mac := d.MAC(); mac != "" {
		c.Remove(mac)
	}
	c.Devices = append(c.Devices, d)
}

// Remove deletes the description with the given MAC (case-insensitive).
// Removing an absent MAC is a no-op.
func (c *CandidateDevicesCollection) Remove(mac string) {
	for i := range c.Devices {
		if strings.EqualFold(c.Devices[i].MAC(), mac) {
			c.Devices = append(c.Devices[:i], c.Devices[i+1:]...)
			return
		}
	}
}

// Replace discards all devices and installs the given set.
func (c *CandidateDevicesCollection) Replace(devices []DeviceDescription) {
	c.Devices = nil
	for _, d := range devices {
		c.Add(d)
	}
}

// Contains reports whether a description with the given MAC is present.
func (c *CandidateDevicesCollection) Contains(mac string) bool {
	for i := range c.Devices {
		if strings.EqualFold(c.Devices[i].MAC(), mac) {
			return true
		}
	}
	return false
}

// DeepCopy creates a complete independent copy of the collection.
func (c *CandidateDevicesCollection) DeepCopy() *CandidateDevicesCollection {
	if c == nil {
		return nil
	}

	cpy := &CandidateDevicesCollection{RepositoryName: c.RepositoryName}
	if c.Devices != nil {
		cpy.Devices = make([]DeviceDescription, len(c.Devices))
		for i := range c.Devices {
			cpy.Devices[i] = *c.Devices[i].DeepCopy()
		}
	}
	return cpy
}
