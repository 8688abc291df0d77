package discovery

import (
	"sort"
	"strings"
)

// ProcessCandidateDevices turns the raw per-repository collections of a
// container into a scored ranking for the given template. Invalid
// collections and descriptions are filtered out, duplicate devices are
// collapsed to the description with the newest last-update timestamp and the
// survivors are scored and ordered by descending score.
func ProcessCandidateDevices(container *CandidateDevicesContainer, template *DeviceTemplate) (*CandidateDevicesRanking, error) {
	if container == nil {
		return nil, ErrNilContainer
	}
	if template == nil {
		return nil, ErrNilTemplate
	}

	// Discard invalid collections and duplicated repository names.
	seenRepos := make(map[string]struct{}, len(container.Collections))
	collections := make([]CandidateDevicesCollection, 0, len(container.Collections))
	for i := range container.Collections {
		coll := &container.Collections[i]
		if !coll.Valid() {
			continue
		}
		if _, dup := seenRepos[coll.RepositoryName]; dup {
			continue
		}
		seenRepos[coll.RepositoryName] = struct{}{}
		collections = append(collections, *coll)
	}

	// Flatten and discard descriptions without a usable MAC address.
	var devices []DeviceDescription
	for i := range collections {
		for _, d := range collections[i].Devices {
			if d.Valid() {
				devices = append(devices, d)
			}
		}
	}

	// Newest first, so deduplication keeps the freshest description per
	// device.
	sortByLastUpdateDesc(devices)

	seenMACs := make(map[string]struct{}, len(devices))
	deduped := devices[:0]
	for _, d := range devices {
		key := strings.ToLower(d.MAC())
		if _, dup := seenMACs[key]; dup {
			continue
		}
		seenMACs[key] = struct{}{}
		deduped = append(deduped, d)
	}

	scorer, err := NewCandidateDeviceScorer(template, deduped)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredCandidateDevice, 0, len(deduped))
	for i := range deduped {
		score, err := scorer.Score(&deduped[i])
		if err != nil {
			return nil, err
		}
		scored = append(scored, ScoredCandidateDevice{Description: deduped[i], Score: score})
	}

	return NewRanking(scored), nil
}

// sortByLastUpdateDesc orders descriptions from newest to oldest last-update
// timestamp without disturbing the relative order of equal timestamps.
func sortByLastUpdateDesc(devices []DeviceDescription) {
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].LastUpdate > devices[j].LastUpdate
	})
}
