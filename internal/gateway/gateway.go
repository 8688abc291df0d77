package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/arienlabs/devscout/internal/discovery"
	"github.com/arienlabs/devscout/internal/infrastructure/mqtt"
)

// PubSubClient is the interface the gateway needs from the MQTT transport.
type PubSubClient interface {
	// Subscribe registers a handler for messages on the given topic.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes the subscription for the given topic.
	Unsubscribe(topic string) error

	// Publish sends a message to the specified topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// CandidateDevicesSubscriber receives asynchronous notifications when a
// repository's candidate set for a subscribed device template changes.
// Callbacks run on the transport's delivery goroutine and must not block;
// implementations typically enqueue a task and return.
type CandidateDevicesSubscriber interface {
	OnCandidateDevicesChanged(deviceTemplateID, repositoryName string, revision *discovery.Revision)
}

// TransportErrorHandler receives publish/subscribe failures that occur
// outside a caller's control flow, such as during cancel fan-out or return
// topic teardown.
type TransportErrorHandler func(err error)

// Logger defines the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// subscription tracks one device template's live registration at the
// repositories.
type subscription struct {
	template   *discovery.DeviceTemplate
	topics     []discovery.RequestTopic
	subscriber CandidateDevicesSubscriber
}

// Gateway offers discovery operations that require communication with the
// discovery repositories, hiding the messaging logic that runs underneath.
// All methods are synchronous from the caller's perspective and safe for
// concurrent use.
type Gateway struct {
	client PubSubClient
	topics mqtt.Topics
	qos    byte
	logger Logger

	errorHandler TransportErrorHandler

	mu            sync.RWMutex
	subscriptions map[string]*subscription // device template id -> subscription
	returnTopics  map[string]string        // owner id -> shared return topic
}

// New creates a gateway on top of the given transport client. The qos is
// applied to every publish and subscribe. A nil logger disables logging.
func New(client PubSubClient, qos byte, logger Logger) *Gateway {
	if logger == nil {
		logger = noopLogger{}
	}

	g := &Gateway{
		client:        client,
		qos:           qos,
		logger:        logger,
		subscriptions: make(map[string]*subscription),
		returnTopics:  make(map[string]string),
	}
	g.errorHandler = func(err error) {
		g.logger.Error("discovery transport error", "error", err)
	}
	return g
}

// SetTransportErrorHandler replaces the default handler, which logs the
// error. Must be called before the gateway is shared between goroutines.
func (g *Gateway) SetTransportErrorHandler(handler TransportErrorHandler) {
	if handler != nil {
		g.errorHandler = handler
	}
}

// GetCandidates requests device descriptions of suitable candidate devices
// for the given template from the repositories reachable under the request
// topics. One collection per replying repository is returned; repositories
// that never reply simply contribute no collection. No subscription is
// created.
func (g *Gateway) GetCandidates(ctx context.Context, template *discovery.DeviceTemplate, topics []discovery.RequestTopic) (*discovery.CandidateDevicesContainer, error) {
	return g.GetCandidatesWithSubscription(ctx, template, topics, nil)
}

// GetCandidatesWithSubscription behaves like GetCandidates but additionally
// registers a subscription so the subscriber is notified when the candidate
// set changes at a repository later on. The subscription is registered
// before the query is broadcast; a nil subscriber creates no subscription.
func (g *Gateway) GetCandidatesWithSubscription(ctx context.Context, template *discovery.DeviceTemplate, topics []discovery.RequestTopic, subscriber CandidateDevicesSubscriber) (*discovery.CandidateDevicesContainer, error) {
	if template == nil {
		return nil, discovery.ErrNilTemplate
	}
	if len(topics) == 0 {
		return nil, ErrNoRequestTopics
	}

	notificationTopic, err := g.registerSubscription(template, topics, subscriber)
	if err != nil {
		return nil, err
	}

	request := QueryRequest{
		ReferenceID:       template.ID,
		Requirements:      template.Requirements,
		ScoringCriteria:   template.ScoringCriteria,
		NotificationTopic: notificationTopic,
	}

	container := discovery.NewContainer(template.ID)
	for i := range topics {
		replies, err := g.runStage(ctx, topics[i], MessageTypeQuery, request)
		if err != nil {
			// A failed stage contributes no collections; the partial
			// result is still valid.
			g.errorHandler(fmt.Errorf("query stage %s: %w", topics[i].FullTopic(), err))
			continue
		}

		for _, env := range replies {
			var reply QueryReply
			if err := json.Unmarshal(env.Message, &reply); err != nil {
				g.errorHandler(fmt.Errorf("query reply from %q: %w", env.SenderName, err))
				continue
			}

			coll := discovery.NewCollection(env.SenderName)
			for _, d := range reply.FirstDeviceDescriptions() {
				coll.Add(d)
			}
			container.Put(*coll)
		}
	}
	return container, nil
}

// AvailableRepositories probes which repositories are reachable under the
// given request topic and returns a map of repository name to the number of
// device descriptions it holds.
func (g *Gateway) AvailableRepositories(ctx context.Context, topic discovery.RequestTopic) (map[string]int, error) {
	replies, err := g.runStage(ctx, topic, MessageTypeTest, TestRequest{})
	if err != nil {
		return nil, err
	}

	repositories := make(map[string]int, len(replies))
	for _, env := range replies {
		var reply TestReply
		if err := json.Unmarshal(env.Message, &reply); err != nil {
			g.errorHandler(fmt.Errorf("test reply from %q: %w", env.SenderName, err))
			continue
		}
		repositories[env.SenderName] = reply.DevicesCount
	}
	return repositories, nil
}

// IsSubscribed reports whether a subscription exists for the template.
func (g *Gateway) IsSubscribed(template *discovery.DeviceTemplate) bool {
	if template == nil {
		return false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.subscriptions[template.ID]
	return ok
}

// CancelSubscription removes the template's subscription and broadcasts a
// cancel message to every request topic the subscription used, plus any
// additional topics passed by the caller. The owner's shared return topic
// is unsubscribed only when no other subscription for that owner remains.
// Cancelling an absent subscription still fans out the cancel message.
func (g *Gateway) CancelSubscription(template *discovery.DeviceTemplate, additionalTopics []discovery.RequestTopic) error {
	if template == nil {
		return discovery.ErrNilTemplate
	}

	cancelTopics := make(map[string]struct{})
	for i := range additionalTopics {
		cancelTopics[additionalTopics[i].FullTopic()] = struct{}{}
	}

	var teardownTopic string

	g.mu.Lock()
	sub := g.subscriptions[template.ID]
	delete(g.subscriptions, template.ID)

	if sub != nil {
		for i := range sub.topics {
			cancelTopics[sub.topics[i].FullTopic()] = struct{}{}
		}

		remaining := false
		for _, s := range g.subscriptions {
			if s.template.OwnerID == template.OwnerID {
				remaining = true
				break
			}
		}
		if !remaining {
			teardownTopic = g.returnTopics[template.OwnerID]
			delete(g.returnTopics, template.OwnerID)
		}
	}
	g.mu.Unlock()

	payload, err := encodeMessage(MessageTypeCancel, "", CancelRequest{ReferenceID: template.ID})
	if err != nil {
		return err
	}
	for topic := range cancelTopics {
		if err := g.client.Publish(topic+"/"+MessageTypeCancel, payload, g.qos, false); err != nil {
			g.errorHandler(fmt.Errorf("publishing cancel to %s: %w", topic, err))
		}
	}

	if teardownTopic != "" {
		if err := g.client.Unsubscribe(teardownTopic); err != nil {
			g.errorHandler(fmt.Errorf("unsubscribing return topic %s: %w", teardownTopic, err))
		}
	}
	return nil
}

// registerSubscription records the subscription and returns the owner's
// shared return topic, creating and subscribing it for the owner's first
// subscription. Returns an empty topic when no subscriber is given.
func (g *Gateway) registerSubscription(template *discovery.DeviceTemplate, topics []discovery.RequestTopic, subscriber CandidateDevicesSubscriber) (string, error) {
	if subscriber == nil {
		return "", nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	sub := &subscription{template: template, topics: topics, subscriber: subscriber}

	if returnTopic, ok := g.returnTopics[template.OwnerID]; ok {
		g.subscriptions[template.ID] = sub
		return returnTopic, nil
	}

	returnTopic := g.topics.DiscoveryReturn(template.OwnerID, uuid.NewString())
	if err := g.client.Subscribe(returnTopic, g.qos, g.handleNotification); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSubscribeFailed, returnTopic, err)
	}

	g.subscriptions[template.ID] = sub
	g.returnTopics[template.OwnerID] = returnTopic
	return returnTopic, nil
}

// handleNotification dispatches an asynchronous repository notification to
// the subscribers of every device template the contained revisions
// reference. Notifications for template ids without a live subscription are
// silently dropped.
func (g *Gateway) handleNotification(topic string, payload []byte) error {
	env, err := decodeEnvelope(payload)
	if err != nil {
		return fmt.Errorf("notification on %s: %w", topic, err)
	}

	var reply QueryReply
	if err := json.Unmarshal(env.Message, &reply); err != nil {
		return fmt.Errorf("notification on %s: %w", topic, err)
	}

	for i := range reply.Revisions {
		revision := &reply.Revisions[i]
		for _, id := range revision.ReferenceIDs {
			g.mu.RLock()
			sub := g.subscriptions[id]
			g.mu.RUnlock()
			if sub == nil {
				continue
			}
			sub.subscriber.OnCandidateDevicesChanged(id, env.SenderName, revision)
		}
	}
	return nil
}
