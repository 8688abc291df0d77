package discovery

import "sort"

// ScoredCandidateDevice pairs a candidate device description with its
// calculated score.
type ScoredCandidateDevice struct {
	Description DeviceDescription `json:"description"`
	Score       float64           `json:"score"`
}

// CandidateDevicesRanking is a list of scored candidate devices ordered by
// descending score. Devices with equal scores keep the order in which they
// were added.
type CandidateDevicesRanking struct {
	devices []ScoredCandidateDevice
}

// NewRanking builds a ranking from the given scored devices. The input slice
// is not modified.
func NewRanking(scored []ScoredCandidateDevice) *CandidateDevicesRanking {
	r := &CandidateDevicesRanking{
		devices: make([]ScoredCandidateDevice, len(scored)),
	}
	copy(r.devices, scored)
	sort.SliceStable(r.devices, func(i, j int) bool {
		return r.devices[i].Score > r.devices[j].Score
	})
	return r
}

// Len returns the number of devices in the ranking.
func (r *CandidateDevicesRanking) Len() int { return len(r.devices) }

// Devices returns the scored devices in rank order.
func (r *CandidateDevicesRanking) Devices() []ScoredCandidateDevice { return r.devices }

// Best returns the highest-ranked device, or nil for an empty ranking.
func (r *CandidateDevicesRanking) Best() *ScoredCandidateDevice {
	if len(r.devices) == 0 {
		return nil
	}
	return &r.devices[0]
}

// Descriptions returns the plain device descriptions in rank order.
func (r *CandidateDevicesRanking) Descriptions() []DeviceDescription {
	out := make([]DeviceDescription, len(r.devices))
	for i := range r.devices {
		out[i] = r.devices[i].Description
	}
	return out
}
