package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/arienlabs/devscout/internal/discovery"
)

// DeleteTask removes the stored candidate devices of a device template and
// cancels any subscription at the discovery repositories. Unless forced,
// the task is a no-op while the template is still in use.
type DeleteTask struct {
	deps     Dependencies
	template *discovery.DeviceTemplate
	force    bool
	log      *DiscoveryLog
}

// NewDeleteTask creates a delete task.
func NewDeleteTask(deps Dependencies, template *discovery.DeviceTemplate, force bool, log *DiscoveryLog) *DeleteTask {
	return &DeleteTask{
		deps:     deps,
		template: template,
		force:    force,
		log:      log,
	}
}

func (t *DeleteTask) Name() string { return TaskDelete }

func (t *DeleteTask) DeviceTemplateID() string { return t.template.ID }

func (t *DeleteTask) DiscoveryLog() *DiscoveryLog { return t.log }

// Run executes the deletion.
func (t *DeleteTask) Run(ctx context.Context) (Outcome, error) {
	t.log.Add(MessageInfo, "Started task for device template %q.", templateLabel(t.template))

	if !t.force {
		inUse, err := t.deps.Deployments.InUse(ctx, t.template.ID)
		if err != nil {
			t.log.Add(MessageError, "Checking deployments failed: %v", err)
			return OutcomeError, fmt.Errorf("checking deployments of template %s: %w", t.template.ID, err)
		}
		if inUse {
			t.log.Add(MessageInfo, "Candidate devices are in use, thus aborting.")
			return OutcomeNoOp, nil
		}
	}

	t.log.Add(MessageInfo, "Deleting candidate devices.")

	if err := t.deps.Candidates.Delete(ctx, t.template.ID); err != nil {
		if errors.Is(err, discovery.ErrNotFound) {
			t.log.Add(MessageInfo, "No candidate devices are stored.")
		} else {
			t.log.Add(MessageError, "Deleting candidate devices failed: %v", err)
			return OutcomeError, fmt.Errorf("deleting candidate devices of template %s: %w", t.template.ID, err)
		}
	}

	if !t.deps.Gateway.IsSubscribed(t.template) {
		t.log.Add(MessageSuccess, "Completed successfully.")
		return OutcomeSuccess, nil
	}

	t.log.Add(MessageInfo, "Cancelling existing subscription at the discovery repositories.")

	topics, err := t.deps.Topics.TopicsForOwner(ctx, t.template.OwnerID)
	if err != nil {
		t.log.Add(MessageError, "Resolving request topics failed: %v", err)
		return OutcomeError, fmt.Errorf("resolving request topics of owner %s: %w", t.template.OwnerID, err)
	}

	if err := t.deps.Gateway.CancelSubscription(t.template, topics); err != nil {
		t.log.Add(MessageError, "Cancelling the subscription failed: %v", err)
		return OutcomeError, fmt.Errorf("cancelling subscription of template %s: %w", t.template.ID, err)
	}

	t.log.Add(MessageSuccess, "Completed successfully.")
	return OutcomeSuccess, nil
}
