package engine

import (
	"context"
	"time"

	"github.com/arienlabs/devscout/internal/discovery"
	"github.com/arienlabs/devscout/internal/gateway"
)

// Task names.
const (
	TaskUpdate = "update_candidate_devices"
	TaskMerge  = "merge_candidate_devices"
	TaskRevise = "revise_candidate_devices"
	TaskDelete = "delete_candidate_devices"
)

// Outcome classifies how a task run ended.
type Outcome string

// Task outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeNoOp    Outcome = "no_op"
	OutcomeError   Outcome = "error"
)

// Task is one unit of discovery work against a single device template.
// Tasks for the same template never run concurrently.
type Task interface {
	// Name identifies the task kind.
	Name() string

	// DeviceTemplateID is the template the task operates on. It doubles
	// as the serialisation key.
	DeviceTemplateID() string

	// DiscoveryLog returns the log the task writes to. May be nil.
	DiscoveryLog() *DiscoveryLog

	// Run executes the task. A no-op outcome means the task found nothing
	// to do, which is not an error.
	Run(ctx context.Context) (Outcome, error)
}

// CandidateDevicesGateway is the subset of the discovery gateway the
// tasks need.
type CandidateDevicesGateway interface {
	GetCandidatesWithSubscription(ctx context.Context, template *discovery.DeviceTemplate, topics []discovery.RequestTopic, subscriber gateway.CandidateDevicesSubscriber) (*discovery.CandidateDevicesContainer, error)
	CancelSubscription(template *discovery.DeviceTemplate, additionalTopics []discovery.RequestTopic) error
	IsSubscribed(template *discovery.DeviceTemplate) bool
}

// RequestTopicSource resolves the discovery request topics visible to an
// owner, its own plus any shared with it.
type RequestTopicSource interface {
	TopicsForOwner(ctx context.Context, ownerID string) ([]discovery.RequestTopic, error)
}

// DeploymentChecker reports whether a device template is still in use,
// meaning its candidate devices must not be deleted.
type DeploymentChecker interface {
	InUse(ctx context.Context, deviceTemplateID string) (bool, error)
}

// TaskMetrics records discovery activity. Implementations must tolerate
// being called from multiple goroutines.
type TaskMetrics interface {
	WriteTaskMetric(taskName, deviceTemplateID, outcome string, duration time.Duration)
	WriteFetchMetric(deviceTemplateID string, replies, devices int, duration time.Duration)
	WriteNotificationMetric(deviceTemplateID, repository string)
}

// Dependencies bundles everything the tasks and the engine need. Metrics
// and Logger may be nil.
type Dependencies struct {
	Gateway     CandidateDevicesGateway
	Candidates  discovery.CandidateDevicesRepository
	Logs        LogRepository
	Topics      RequestTopicSource
	Deployments DeploymentChecker
	Metrics     TaskMetrics
	Logger      Logger
}

// Logger is the minimal logging interface the engine depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
