package discovery

import (
	"fmt"
	"strings"
	"time"
)

// Request topic validation bounds.
const (
	MinSuffixLength    = 2
	MinTimeoutMs       = 10
	MaxTimeoutMs       = 60000
	MinExpectedReplies = 1
	MaxExpectedReplies = 100
)

// requestTopicPattern is the full-topic scheme under which queries are
// broadcast. The message kind (query/cancel/test) is appended by the
// gateway.
const requestTopicPattern = "%s/discovery/%s"

// RequestTopic describes where and how a discovery query is broadcast:
// a per-owner topic suffix, the time to wait for replies and how many
// replies complete a stage early.
//
// Request topics are validated at creation and never mutated by the
// discovery subsystem.
type RequestTopic struct {
	ID              string `json:"id"`
	OwnerID         string `json:"ownerId"`
	Suffix          string `json:"suffix"`
	TimeoutMs       int    `json:"timeoutMs"`
	ExpectedReplies int    `json:"expectedReplies"`
}

// FullTopic returns the absolute request topic derived from the owner and
// the suffix.
func (t *RequestTopic) FullTopic() string {
	return fmt.Sprintf(requestTopicPattern, t.OwnerID, t.Suffix)
}

// Timeout returns the per-stage reply timeout as a Duration.
func (t *RequestTopic) Timeout() time.Duration {
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// Validate checks the topic's fields, collecting every failure. The
// sibling topics are the owner's existing request topics; the suffix must
// be unique among them.
func (t *RequestTopic) Validate(siblings []RequestTopic) error {
	errs := &ValidationErrors{}

	if t.OwnerID == "" {
		errs.Add("ownerId", "The owner must not be empty.")
	}

	switch {
	case len(t.Suffix) < MinSuffixLength:
		errs.Add("suffix", fmt.Sprintf("The suffix must consist of at least %d characters.", MinSuffixLength))
	case !isAlphanumeric(t.Suffix):
		errs.Add("suffix", "The suffix must consist of alphanumeric characters only.")
	default:
		for i := range siblings {
			if siblings[i].ID == t.ID {
				continue
			}
			if siblings[i].OwnerID == t.OwnerID && strings.EqualFold(siblings[i].Suffix, t.Suffix) {
				errs.Add("suffix", "A request topic with this suffix already exists.")
				break
			}
		}
	}

	if t.TimeoutMs < MinTimeoutMs || t.TimeoutMs > MaxTimeoutMs {
		errs.Add("timeoutMs", fmt.Sprintf("The timeout must be between %d and %d milliseconds.", MinTimeoutMs, MaxTimeoutMs))
	}

	if t.ExpectedReplies < MinExpectedReplies || t.ExpectedReplies > MaxExpectedReplies {
		errs.Add("expectedReplies", fmt.Sprintf("The number of expected replies must be between %d and %d.", MinExpectedReplies, MaxExpectedReplies))
	}

	return errs.ErrOrNil()
}
