package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arienlabs/devscout/internal/discovery"
	"github.com/arienlabs/devscout/internal/infrastructure/mqtt"
)

// mockPubSub is an in-memory PubSubClient. A responder function, when set,
// is invoked in its own goroutine for every published request so tests can
// deliver replies to the request's return topic.
type mockPubSub struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	published    []publishedMessage
	unsubscribed []string
	subscribeErr error
	responder    func(topic string, env *Envelope)
}

type publishedMessage struct {
	topic   string
	payload []byte
}

func newMockPubSub() *mockPubSub {
	return &mockPubSub{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockPubSub) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockPubSub) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *mockPubSub) Publish(topic string, payload []byte, _ byte, _ bool) error {
	m.mu.Lock()
	m.published = append(m.published, publishedMessage{topic: topic, payload: payload})
	responder := m.responder
	m.mu.Unlock()

	if responder != nil {
		var env Envelope
		if err := json.Unmarshal(payload, &env); err == nil {
			go responder(topic, &env)
		}
	}
	return nil
}

// deliver invokes the handler subscribed to the given topic, if any.
func (m *mockPubSub) deliver(topic string, payload []byte) {
	m.mu.Lock()
	handler := m.handlers[topic]
	m.mu.Unlock()
	if handler != nil {
		_ = handler(topic, payload)
	}
}

func (m *mockPubSub) subscribedTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := make([]string, 0, len(m.handlers))
	for t := range m.handlers {
		topics = append(topics, t)
	}
	return topics
}

func (m *mockPubSub) publishedTo(prefix string) []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedMessage
	for _, p := range m.published {
		if strings.HasPrefix(p.topic, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// mockSubscriber records notification callbacks.
type mockSubscriber struct {
	mu    sync.Mutex
	calls []notification
}

type notification struct {
	templateID     string
	repositoryName string
	revision       *discovery.Revision
}

func (s *mockSubscriber) OnCandidateDevicesChanged(templateID, repositoryName string, revision *discovery.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, notification{templateID, repositoryName, revision})
}

func (s *mockSubscriber) notifications() []notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification(nil), s.calls...)
}

// replyPayload builds a query reply envelope carrying a single replace
// revision with the given devices.
func replyPayload(t *testing.T, senderName string, referenceIDs []string, devices ...discovery.DeviceDescription) []byte {
	t.Helper()

	reply := QueryReply{Revisions: []discovery.Revision{{
		ReferenceIDs: referenceIDs,
		Operations: discovery.RevisionOperations{
			&discovery.ReplaceOperation{DeviceDescriptions: devices},
		},
	}}}

	raw, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("marshaling reply: %v", err)
	}
	payload, err := json.Marshal(Envelope{
		Type:       MessageTypeQueryReply,
		SenderName: senderName,
		Message:    raw,
	})
	if err != nil {
		t.Fatalf("marshaling envelope: %v", err)
	}
	return payload
}

func testDevice(mac string) discovery.DeviceDescription {
	return discovery.DeviceDescription{
		Identifiers: &discovery.DeviceIdentifiers{MACAddress: mac},
		Description: "test device",
		LastUpdate:  100,
	}
}

func testGatewayTemplate(id, owner string) *discovery.DeviceTemplate {
	return &discovery.DeviceTemplate{ID: id, OwnerID: owner, Name: "Test Template"}
}

func testGatewayTopic(owner, suffix string, expectedReplies int) discovery.RequestTopic {
	return discovery.RequestTopic{
		ID:              "rt-" + suffix,
		OwnerID:         owner,
		Suffix:          suffix,
		TimeoutMs:       200,
		ExpectedReplies: expectedReplies,
	}
}

func TestGateway_GetCandidates(t *testing.T) {
	client := newMockPubSub()
	client.responder = func(topic string, env *Envelope) {
		if !strings.HasSuffix(topic, "/"+MessageTypeQuery) {
			return
		}
		client.deliver(env.ReturnTopic, replyPayload(t, "repo-north", nil, testDevice("AA:AA:AA:AA:AA:01")))
		client.deliver(env.ReturnTopic, replyPayload(t, "repo-south", nil, testDevice("AA:AA:AA:AA:AA:02")))
	}

	g := New(client, 1, nil)
	template := testGatewayTemplate("tpl-001", "user-001")
	topic := testGatewayTopic("user-001", "devices", 2)

	container, err := g.GetCandidates(context.Background(), template, []discovery.RequestTopic{topic})
	if err != nil {
		t.Fatalf("GetCandidates() error = %v", err)
	}

	if container.DeviceTemplateID != "tpl-001" {
		t.Errorf("DeviceTemplateID = %q, want tpl-001", container.DeviceTemplateID)
	}
	if container.CollectionCount() != 2 {
		t.Fatalf("CollectionCount() = %d, want 2", container.CollectionCount())
	}
	for _, repo := range []string{"repo-north", "repo-south"} {
		coll := container.Collection(repo)
		if coll == nil || coll.Len() != 1 {
			t.Errorf("collection %s missing or wrong size", repo)
		}
	}

	// No subscription was requested, so no shared return topic survives.
	if g.IsSubscribed(template) {
		t.Error("IsSubscribed() = true without subscriber")
	}
	if topics := client.subscribedTopics(); len(topics) != 0 {
		t.Errorf("leftover subscriptions after fetch: %v", topics)
	}

	// The outgoing query must carry the scoring payload fields.
	queries := client.publishedTo("user-001/discovery/devices/query")
	if len(queries) != 1 {
		t.Fatalf("published %d queries, want 1", len(queries))
	}
	var env Envelope
	if err := json.Unmarshal(queries[0].payload, &env); err != nil {
		t.Fatalf("unmarshaling query envelope: %v", err)
	}
	var request QueryRequest
	if err := json.Unmarshal(env.Message, &request); err != nil {
		t.Fatalf("unmarshaling query request: %v", err)
	}
	if request.ReferenceID != "tpl-001" {
		t.Errorf("referenceId = %q, want tpl-001", request.ReferenceID)
	}
	if request.NotificationTopic != "" {
		t.Errorf("notificationTopic = %q, want empty without subscriber", request.NotificationTopic)
	}
}

func TestGateway_GetCandidates_PartialReplies(t *testing.T) {
	client := newMockPubSub()
	client.responder = func(topic string, env *Envelope) {
		if strings.HasSuffix(topic, "/"+MessageTypeQuery) {
			client.deliver(env.ReturnTopic, replyPayload(t, "repo-north", nil, testDevice("AA:AA:AA:AA:AA:01")))
		}
	}

	g := New(client, 1, nil)
	topic := testGatewayTopic("user-001", "devices", 3)

	start := time.Now()
	container, err := g.GetCandidates(context.Background(), testGatewayTemplate("tpl-001", "user-001"), []discovery.RequestTopic{topic})
	if err != nil {
		t.Fatalf("GetCandidates() error = %v", err)
	}

	if container.CollectionCount() != 1 {
		t.Errorf("CollectionCount() = %d, want 1 (partial result)", container.CollectionCount())
	}
	if elapsed := time.Since(start); elapsed < topic.Timeout() {
		t.Errorf("returned after %v, want at least the %v stage timeout", elapsed, topic.Timeout())
	}
}

func TestGateway_GetCandidates_NilTemplate(t *testing.T) {
	g := New(newMockPubSub(), 1, nil)
	topic := testGatewayTopic("user-001", "devices", 1)

	if _, err := g.GetCandidates(context.Background(), nil, []discovery.RequestTopic{topic}); !errors.Is(err, discovery.ErrNilTemplate) {
		t.Errorf("error = %v, want ErrNilTemplate", err)
	}
	if _, err := g.GetCandidates(context.Background(), testGatewayTemplate("tpl-001", "user-001"), nil); !errors.Is(err, ErrNoRequestTopics) {
		t.Errorf("error = %v, want ErrNoRequestTopics", err)
	}
}

func TestGateway_SubscriptionRefCounting(t *testing.T) {
	client := newMockPubSub()
	g := New(client, 1, nil)
	subscriber := &mockSubscriber{}
	ctx := context.Background()

	templateA := testGatewayTemplate("tpl-a", "user-001")
	templateB := testGatewayTemplate("tpl-b", "user-001")
	topic := testGatewayTopic("user-001", "devices", 1)
	topics := []discovery.RequestTopic{topic}

	if _, err := g.GetCandidatesWithSubscription(ctx, templateA, topics, subscriber); err != nil {
		t.Fatalf("subscribe A error = %v", err)
	}
	if _, err := g.GetCandidatesWithSubscription(ctx, templateB, topics, subscriber); err != nil {
		t.Fatalf("subscribe B error = %v", err)
	}

	if !g.IsSubscribed(templateA) || !g.IsSubscribed(templateB) {
		t.Fatal("IsSubscribed() = false after subscribing")
	}

	// Both subscriptions share one return topic.
	shared := client.subscribedTopics()
	if len(shared) != 1 {
		t.Fatalf("subscribed topics = %v, want exactly the one shared return topic", shared)
	}
	sharedTopic := shared[0]

	// Cancelling the first subscription must keep the shared topic alive.
	if err := g.CancelSubscription(templateA, nil); err != nil {
		t.Fatalf("CancelSubscription(A) error = %v", err)
	}
	if g.IsSubscribed(templateA) {
		t.Error("IsSubscribed(A) = true after cancel")
	}
	if !g.IsSubscribed(templateB) {
		t.Error("IsSubscribed(B) = false after cancelling A")
	}
	for _, unsubbed := range client.unsubscribed {
		if unsubbed == sharedTopic {
			t.Fatal("shared return topic unsubscribed while a subscription remains")
		}
	}

	// Cancelling the last subscription tears the shared topic down.
	if err := g.CancelSubscription(templateB, nil); err != nil {
		t.Fatalf("CancelSubscription(B) error = %v", err)
	}
	found := false
	for _, unsubbed := range client.unsubscribed {
		if unsubbed == sharedTopic {
			found = true
		}
	}
	if !found {
		t.Error("shared return topic not unsubscribed after last cancellation")
	}

	// Every cancellation fans out a cancel message to the request topic.
	cancels := client.publishedTo("user-001/discovery/devices/cancel")
	if len(cancels) != 2 {
		t.Fatalf("published %d cancel messages, want 2", len(cancels))
	}
	var env Envelope
	if err := json.Unmarshal(cancels[0].payload, &env); err != nil {
		t.Fatalf("unmarshaling cancel envelope: %v", err)
	}
	var cancel CancelRequest
	if err := json.Unmarshal(env.Message, &cancel); err != nil {
		t.Fatalf("unmarshaling cancel request: %v", err)
	}
	if cancel.ReferenceID != "tpl-a" {
		t.Errorf("cancel referenceId = %q, want tpl-a", cancel.ReferenceID)
	}
}

func TestGateway_NotificationDispatch(t *testing.T) {
	client := newMockPubSub()
	g := New(client, 1, nil)
	subscriber := &mockSubscriber{}
	ctx := context.Background()

	template := testGatewayTemplate("tpl-001", "user-001")
	topics := []discovery.RequestTopic{testGatewayTopic("user-001", "devices", 1)}

	if _, err := g.GetCandidatesWithSubscription(ctx, template, topics, subscriber); err != nil {
		t.Fatalf("subscribe error = %v", err)
	}

	shared := client.subscribedTopics()
	if len(shared) != 1 {
		t.Fatalf("subscribed topics = %v, want 1", shared)
	}

	t.Run("dispatches to the referenced subscription", func(t *testing.T) {
		client.deliver(shared[0], replyPayload(t, "repo-north", []string{"tpl-001"}, testDevice("AA:AA:AA:AA:AA:01")))

		calls := subscriber.notifications()
		if len(calls) != 1 {
			t.Fatalf("notifications = %d, want 1", len(calls))
		}
		if calls[0].templateID != "tpl-001" || calls[0].repositoryName != "repo-north" {
			t.Errorf("notification = %+v, want tpl-001 from repo-north", calls[0])
		}
		if calls[0].revision.FirstReplace() == nil {
			t.Error("notification revision lost its operations")
		}
	})

	t.Run("drops notifications for unknown templates", func(t *testing.T) {
		client.deliver(shared[0], replyPayload(t, "repo-north", []string{"tpl-unknown"}))

		if calls := subscriber.notifications(); len(calls) != 1 {
			t.Errorf("notifications = %d, want still 1", len(calls))
		}
	})
}

func TestGateway_AvailableRepositories(t *testing.T) {
	client := newMockPubSub()
	client.responder = func(topic string, env *Envelope) {
		if !strings.HasSuffix(topic, "/"+MessageTypeTest) {
			return
		}
		for sender, count := range map[string]int{"repo-north": 12, "repo-south": 3} {
			raw, _ := json.Marshal(TestReply{DevicesCount: count})
			payload, _ := json.Marshal(Envelope{Type: MessageTypeTestReply, SenderName: sender, Message: raw})
			client.deliver(env.ReturnTopic, payload)
		}
	}

	g := New(client, 1, nil)
	topic := testGatewayTopic("user-001", "devices", 2)

	repositories, err := g.AvailableRepositories(context.Background(), topic)
	if err != nil {
		t.Fatalf("AvailableRepositories() error = %v", err)
	}

	if len(repositories) != 2 {
		t.Fatalf("len(repositories) = %d, want 2", len(repositories))
	}
	if repositories["repo-north"] != 12 || repositories["repo-south"] != 3 {
		t.Errorf("repositories = %v, want repo-north:12 repo-south:3", repositories)
	}
}

func TestGateway_TransportErrors(t *testing.T) {
	t.Run("subscribe failure surfaces to caller", func(t *testing.T) {
		client := newMockPubSub()
		client.subscribeErr = errors.New("broker down")
		g := New(client, 1, nil)

		topic := testGatewayTopic("user-001", "devices", 1)
		_, err := g.GetCandidates(context.Background(), testGatewayTemplate("tpl-001", "user-001"), []discovery.RequestTopic{topic})
		if err != nil {
			t.Fatalf("GetCandidates() error = %v, want nil with handler fallback", err)
		}
	})

	t.Run("stage failures invoke the pluggable handler", func(t *testing.T) {
		client := newMockPubSub()
		client.subscribeErr = errors.New("broker down")
		g := New(client, 1, nil)

		var handled []error
		var mu sync.Mutex
		g.SetTransportErrorHandler(func(err error) {
			mu.Lock()
			handled = append(handled, err)
			mu.Unlock()
		})

		topic := testGatewayTopic("user-001", "devices", 1)
		container, err := g.GetCandidates(context.Background(), testGatewayTemplate("tpl-001", "user-001"), []discovery.RequestTopic{topic})
		if err != nil {
			t.Fatalf("GetCandidates() error = %v", err)
		}
		if container.CollectionCount() != 0 {
			t.Errorf("CollectionCount() = %d, want 0 for failed stage", container.CollectionCount())
		}

		mu.Lock()
		defer mu.Unlock()
		if len(handled) == 0 {
			t.Error("transport error handler not invoked")
		}
		if !errors.Is(handled[0], ErrSubscribeFailed) {
			t.Errorf("handled error = %v, want ErrSubscribeFailed", handled[0])
		}
	})
}

func TestGateway_ContextCancellation(t *testing.T) {
	client := newMockPubSub()
	g := New(client, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	topic := discovery.RequestTopic{
		ID: "rt-slow", OwnerID: "user-001", Suffix: "devices",
		TimeoutMs: 60000, ExpectedReplies: 5,
	}
	start := time.Now()
	if _, err := g.AvailableRepositories(ctx, topic); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt the stage wait")
	}
}
