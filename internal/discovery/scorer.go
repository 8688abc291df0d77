package discovery

import "math"

// CandidateDeviceScorer calculates scores for candidate devices based on the
// scoring criteria of a device template, relative to a collection of related
// candidate devices. Resulting scores are always greater than or equal to
// zero.
type CandidateDeviceScorer struct {
	template *DeviceTemplate
	related  []DeviceDescription
	corpus   *DescriptionCorpus
}

// NewCandidateDeviceScorer creates a scorer for the given template and the
// related candidate devices to which the scores are relative. The related
// descriptions are preprocessed into a text corpus for relevance-based
// criteria.
func NewCandidateDeviceScorer(template *DeviceTemplate, related []DeviceDescription) (*CandidateDeviceScorer, error) {
	if template == nil {
		return nil, ErrNilTemplate
	}

	return &CandidateDeviceScorer{
		template: template,
		related:  related,
		corpus:   NewDescriptionCorpus(related),
	}, nil
}

// Template returns the device template the scorer evaluates.
func (s *CandidateDeviceScorer) Template() *DeviceTemplate { return s.template }

// Corpus returns the corpus of preprocessed description texts of the related
// candidate devices.
func (s *CandidateDeviceScorer) Corpus() *DescriptionCorpus { return s.corpus }

// Score calculates the score of a candidate device by summing the increments
// of all scoring criteria. A NaN or negative sum collapses to 0.
func (s *CandidateDeviceScorer) Score(d *DeviceDescription) (float64, error) {
	if d == nil {
		return 0, ErrNilDescription
	}

	var sum float64
	for _, criterion := range s.template.ScoringCriteria {
		if criterion == nil {
			continue
		}
		sum += criterion.ScoreIncrement(d, s)
	}

	if math.IsNaN(sum) || sum < 0 {
		return 0, nil
	}
	return sum, nil
}
