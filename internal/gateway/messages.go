package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arienlabs/devscout/internal/discovery"
)

// Message type discriminators as they appear on the wire. Request types
// double as the topic suffix under which the message is published.
const (
	MessageTypeQuery      = "query"
	MessageTypeQueryReply = "query_reply"
	MessageTypeTest       = "test"
	MessageTypeTestReply  = "test_reply"
	MessageTypeCancel     = "cancel"
)

// Envelope is the outer frame of every discovery message. Outgoing requests
// carry the return topic replies should be published to; incoming replies
// carry the name of the repository that sent them.
type Envelope struct {
	Type        string          `json:"type"`
	SenderName  string          `json:"senderName,omitempty"`
	ReturnTopic string          `json:"returnTopic,omitempty"`
	Time        time.Time       `json:"time"`
	Message     json.RawMessage `json:"message"`
}

// QueryRequest asks repositories for device descriptions matching a
// template. A non-empty notification topic additionally subscribes the
// sender to future candidate set changes for the reference id.
type QueryRequest struct {
	ReferenceID       string                    `json:"referenceId"`
	Requirements      json.RawMessage           `json:"requirements,omitempty"`
	ScoringCriteria   discovery.ScoringCriteria `json:"scoringCriteria"`
	NotificationTopic string                    `json:"notificationTopic,omitempty"`
}

// QueryReply is a repository's answer to a query, and also the payload of
// asynchronous subscription notifications. The initial candidate set is
// carried as the first replace operation of the first revision.
type QueryReply struct {
	Revisions []discovery.Revision `json:"revisions"`
}

// FirstDeviceDescriptions extracts the initial candidate set from the
// reply, or nil if no revision carries a replace operation.
func (r *QueryReply) FirstDeviceDescriptions() []discovery.DeviceDescription {
	for i := range r.Revisions {
		if devices := r.Revisions[i].FirstReplace(); devices != nil {
			return devices
		}
	}
	return nil
}

// TestRequest probes which repositories are reachable under a request
// topic. It carries no payload of its own.
type TestRequest struct{}

// TestReply reports a repository's name (via the envelope) and how many
// device descriptions it holds.
type TestReply struct {
	DevicesCount int `json:"devicesCount"`
}

// CancelRequest tells repositories to drop their subscription for the
// referenced device template.
type CancelRequest struct {
	ReferenceID string `json:"referenceId"`
}

// encodeMessage wraps a message body in an envelope and marshals it.
func encodeMessage(msgType, returnTopic string, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s message: %w", msgType, err)
	}

	payload, err := json.Marshal(Envelope{
		Type:        msgType,
		ReturnTopic: returnTopic,
		Time:        time.Now().UTC(),
		Message:     raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling %s envelope: %w", msgType, err)
	}
	return payload, nil
}

// decodeEnvelope unmarshals an incoming payload into an envelope.
func decodeEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("unmarshaling envelope: %w", err)
	}
	return &env, nil
}
