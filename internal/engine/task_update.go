package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/arienlabs/devscout/internal/discovery"
	"github.com/arienlabs/devscout/internal/gateway"
)

// UpdateTask fetches fresh candidate devices for a device template from
// all reachable discovery repositories and stores the result. Unless
// forced, the task is a no-op when a stored result already exists.
type UpdateTask struct {
	deps       Dependencies
	template   *discovery.DeviceTemplate
	subscriber gateway.CandidateDevicesSubscriber
	force      bool
	log        *DiscoveryLog
}

// NewUpdateTask creates an update task. The subscriber, if non-nil, is
// registered at the repositories so that later changes to the candidate
// devices arrive asynchronously.
func NewUpdateTask(deps Dependencies, template *discovery.DeviceTemplate, subscriber gateway.CandidateDevicesSubscriber, force bool, log *DiscoveryLog) *UpdateTask {
	return &UpdateTask{
		deps:       deps,
		template:   template,
		subscriber: subscriber,
		force:      force,
		log:        log,
	}
}

func (t *UpdateTask) Name() string { return TaskUpdate }

func (t *UpdateTask) DeviceTemplateID() string { return t.template.ID }

func (t *UpdateTask) DiscoveryLog() *DiscoveryLog { return t.log }

// Run executes the update.
func (t *UpdateTask) Run(ctx context.Context) (Outcome, error) {
	t.log.Add(MessageInfo, "Started task for device template %q.", templateLabel(t.template))

	if !t.force {
		exists, err := t.deps.Candidates.Exists(ctx, t.template.ID)
		if err != nil {
			t.log.Add(MessageError, "Checking for existing candidate devices failed: %v", err)
			return OutcomeError, fmt.Errorf("checking candidate devices of template %s: %w", t.template.ID, err)
		}
		if exists {
			t.log.Add(MessageInfo, "Candidate devices are already available, thus aborting.")
			return OutcomeNoOp, nil
		}
	}

	t.log.Add(MessageInfo, "Requesting candidate devices from discovery repositories and creating subscriptions.")

	topics, err := t.deps.Topics.TopicsForOwner(ctx, t.template.OwnerID)
	if err != nil {
		t.log.Add(MessageError, "Resolving request topics failed: %v", err)
		return OutcomeError, fmt.Errorf("resolving request topics of owner %s: %w", t.template.OwnerID, err)
	}

	fetchStart := time.Now()
	container, err := t.deps.Gateway.GetCandidatesWithSubscription(ctx, t.template, topics, t.subscriber)
	if err != nil {
		t.log.Add(MessageError, "Requesting candidate devices failed: %v", err)
		return OutcomeError, fmt.Errorf("requesting candidate devices of template %s: %w", t.template.ID, err)
	}
	if t.deps.Metrics != nil {
		t.deps.Metrics.WriteFetchMetric(t.template.ID, container.CollectionCount(), container.DeviceCount(), time.Since(fetchStart))
	}

	t.log.Add(MessageInfo, "Received %d candidate device(s) from %d discovery repositor%s.",
		container.DeviceCount(), container.CollectionCount(), pluralY(container.CollectionCount()))

	if err := t.deps.Candidates.Save(ctx, container); err != nil {
		t.log.Add(MessageError, "Saving candidate devices failed: %v", err)
		return OutcomeError, fmt.Errorf("saving candidate devices of template %s: %w", t.template.ID, err)
	}

	t.log.Add(MessageSuccess, "Completed successfully.")
	return OutcomeSuccess, nil
}

// templateLabel prefers the human-readable template name and falls back to
// the id.
func templateLabel(t *discovery.DeviceTemplate) string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
