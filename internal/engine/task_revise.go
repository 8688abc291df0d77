package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/arienlabs/devscout/internal/discovery"
)

// ReviseTask applies an incremental revision, received from one discovery
// repository, to the stored candidate devices of a device template. The
// task is a silent no-op when no stored result exists; a revision without
// a base cannot be replayed later and is dropped.
type ReviseTask struct {
	deps             Dependencies
	deviceTemplateID string
	repositoryName   string
	revision         *discovery.Revision
	log              *DiscoveryLog
}

// NewReviseTask creates a revise task for a received revision.
func NewReviseTask(deps Dependencies, deviceTemplateID, repositoryName string, revision *discovery.Revision, log *DiscoveryLog) *ReviseTask {
	return &ReviseTask{
		deps:             deps,
		deviceTemplateID: deviceTemplateID,
		repositoryName:   repositoryName,
		revision:         revision,
		log:              log,
	}
}

func (t *ReviseTask) Name() string { return TaskRevise }

func (t *ReviseTask) DeviceTemplateID() string { return t.deviceTemplateID }

func (t *ReviseTask) DiscoveryLog() *DiscoveryLog { return t.log }

// Run executes the revision.
func (t *ReviseTask) Run(ctx context.Context) (Outcome, error) {
	container, err := t.deps.Candidates.Load(ctx, t.deviceTemplateID)
	if err != nil {
		if errors.Is(err, discovery.ErrNotFound) {
			return OutcomeNoOp, nil
		}
		t.log.Add(MessageError, "Loading candidate devices failed: %v", err)
		return OutcomeError, fmt.Errorf("loading candidate devices of template %s: %w", t.deviceTemplateID, err)
	}

	t.log.Add(MessageInfo, "Started task for device template %q.", t.deviceTemplateID)
	t.log.Add(MessageInfo, "Candidate devices consist of %d device(s) from %d repositor%s.",
		container.DeviceCount(), container.CollectionCount(), pluralY(container.CollectionCount()))
	t.log.Add(MessageInfo, "Received revision from repository %q: %s.", t.repositoryName, t.revision.Summary())

	if collection := container.Collection(t.repositoryName); collection != nil {
		t.revision.Apply(collection)
	} else {
		collection := discovery.NewCollection(t.repositoryName)
		t.revision.Apply(collection)
		container.Put(*collection)
	}

	t.log.Add(MessageInfo, "Candidate devices now consist of %d device(s) from %d repositor%s.",
		container.DeviceCount(), container.CollectionCount(), pluralY(container.CollectionCount()))

	if err := t.deps.Candidates.Save(ctx, container); err != nil {
		t.log.Add(MessageError, "Saving candidate devices failed: %v", err)
		return OutcomeError, fmt.Errorf("saving candidate devices of template %s: %w", t.deviceTemplateID, err)
	}

	t.log.Add(MessageSuccess, "Saved updated candidate devices.")
	return OutcomeSuccess, nil
}
