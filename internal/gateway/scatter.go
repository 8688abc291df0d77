package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arienlabs/devscout/internal/discovery"
)

// runStage executes one scatter-gather stage: it publishes the request
// under the topic's full path plus the message kind, then collects replies
// on a freshly generated per-request return topic until the expected number
// of replies arrived or the topic's timeout elapsed. Fewer replies than
// expected are not an error; the caller receives whatever arrived.
func (g *Gateway) runStage(ctx context.Context, topic discovery.RequestTopic, kind string, body any) ([]Envelope, error) {
	returnTopic := g.topics.DiscoveryReturn(topic.OwnerID, uuid.NewString())

	replies := make(chan Envelope, topic.ExpectedReplies)
	handler := func(_ string, payload []byte) error {
		env, err := decodeEnvelope(payload)
		if err != nil {
			return fmt.Errorf("reply on %s: %w", returnTopic, err)
		}
		select {
		case replies <- *env:
		default:
			// Surplus replies beyond the expected count are dropped.
		}
		return nil
	}

	if err := g.client.Subscribe(returnTopic, g.qos, handler); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSubscribeFailed, returnTopic, err)
	}
	defer func() {
		if err := g.client.Unsubscribe(returnTopic); err != nil {
			g.errorHandler(fmt.Errorf("unsubscribing return topic %s: %w", returnTopic, err))
		}
	}()

	payload, err := encodeMessage(kind, returnTopic, body)
	if err != nil {
		return nil, err
	}

	requestTopic := topic.FullTopic() + "/" + kind
	if err := g.client.Publish(requestTopic, payload, g.qos, false); err != nil {
		return nil, fmt.Errorf("publishing to %s: %w", requestTopic, err)
	}

	g.logger.Debug("discovery stage started",
		"topic", requestTopic,
		"expected_replies", topic.ExpectedReplies,
		"timeout", topic.Timeout().String())

	timer := time.NewTimer(topic.Timeout())
	defer timer.Stop()

	collected := make([]Envelope, 0, topic.ExpectedReplies)
	for len(collected) < topic.ExpectedReplies {
		select {
		case env := <-replies:
			collected = append(collected, env)
		case <-timer.C:
			return collected, nil
		case <-ctx.Done():
			return collected, ctx.Err()
		}
	}
	return collected, nil
}
