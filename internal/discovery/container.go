package discovery

import "sort"

// CandidateDevicesContainer aggregates, per device template, one collection
// for every repository that has ever reported results for that template.
// No repository name appears twice.
//
// Collections are kept sorted by repository name so that iteration,
// processing and persisted JSON are deterministic.
type CandidateDevicesContainer struct {
	DeviceTemplateID string                       `json:"deviceTemplateId"`
	Collections      []CandidateDevicesCollection `json:"collections"`
}

// NewContainer creates an empty container for the given device template.
func NewContainer(deviceTemplateID string) *CandidateDevicesContainer {
	return &CandidateDevicesContainer{DeviceTemplateID: deviceTemplateID}
}

// Collection returns the collection for the named repository, or nil if
// that repository has never reported results.
func (c *CandidateDevicesContainer) Collection(repositoryName string) *CandidateDevicesCollection {
	for i := range c.Collections {
		if c.Collections[i].RepositoryName == repositoryName {
			return &c.Collections[i]
		}
	}
	return nil
}

// Put installs a collection, replacing any existing collection for the same
// repository name.
func (c *CandidateDevicesContainer) Put(coll CandidateDevicesCollection) {
	for i := range c.Collections {
		if c.Collections[i].RepositoryName == coll.RepositoryName {
			c.Collections[i] = coll
			return
		}
	}
	c.Collections = append(c.Collections, coll)
	sort.Slice(c.Collections, func(i, j int) bool {
		return c.Collections[i].RepositoryName < c.Collections[j].RepositoryName
	})
}

// CollectionCount returns the number of repository collections.
func (c *CandidateDevicesContainer) CollectionCount() int {
	if c == nil {
		return 0
	}
	return len(c.Collections)
}

// DeviceCount returns the total number of device descriptions across all
// collections.
func (c *CandidateDevicesContainer) DeviceCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for i := range c.Collections {
		n += len(c.Collections[i].Devices)
	}
	return n
}

// AllDevices flattens all collections into a single slice, in collection
// order.
func (c *CandidateDevicesContainer) AllDevices() []DeviceDescription {
	var out []DeviceDescription
	for i := range c.Collections {
		out = append(out, c.Collections[i].Devices...)
	}
	return out
}

// DeepCopy creates a complete independent copy of the container. Tasks
// apply revisions to a copy so that concurrently-read state is never
// aliased by an in-progress write.
func (c *CandidateDevicesContainer) DeepCopy() *CandidateDevicesContainer {
	if c == nil {
		return nil
	}

	cpy := &CandidateDevicesContainer{DeviceTemplateID: c.DeviceTemplateID}
	if c.Collections != nil {
		cpy.Collections = make([]CandidateDevicesCollection, len(c.Collections))
		for i := range c.Collections {
			cpy.Collections[i] = *c.Collections[i].DeepCopy()
		}
	}
	return cpy
}
