package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/arienlabs/devscout/internal/discovery"
)

// MergeTask replaces one repository's candidate devices collection within
// the stored result of a device template. The task is a silent no-op when
// no stored result exists; there is nothing to merge into then.
type MergeTask struct {
	deps             Dependencies
	deviceTemplateID string
	repositoryName   string
	devices          []discovery.DeviceDescription
	log              *DiscoveryLog
}

// NewMergeTask creates a merge task carrying the complete replacement
// collection of the named repository.
func NewMergeTask(deps Dependencies, deviceTemplateID, repositoryName string, devices []discovery.DeviceDescription, log *DiscoveryLog) *MergeTask {
	return &MergeTask{
		deps:             deps,
		deviceTemplateID: deviceTemplateID,
		repositoryName:   repositoryName,
		devices:          devices,
		log:              log,
	}
}

func (t *MergeTask) Name() string { return TaskMerge }

func (t *MergeTask) DeviceTemplateID() string { return t.deviceTemplateID }

func (t *MergeTask) DiscoveryLog() *DiscoveryLog { return t.log }

// Run executes the merge.
func (t *MergeTask) Run(ctx context.Context) (Outcome, error) {
	container, err := t.deps.Candidates.Load(ctx, t.deviceTemplateID)
	if err != nil {
		if errors.Is(err, discovery.ErrNotFound) {
			return OutcomeNoOp, nil
		}
		t.log.Add(MessageError, "Loading candidate devices failed: %v", err)
		return OutcomeError, fmt.Errorf("loading candidate devices of template %s: %w", t.deviceTemplateID, err)
	}

	t.log.Add(MessageInfo, "Started task for device template %q.", t.deviceTemplateID)
	t.log.Add(MessageInfo, "Merging %d known candidate device(s) of %d discovery repositor%s with the update of %d candidate device(s).",
		container.DeviceCount(), container.CollectionCount(), pluralY(container.CollectionCount()), len(t.devices))

	collection := discovery.NewCollection(t.repositoryName)
	collection.Replace(t.devices)
	container.Put(*collection)

	t.log.Add(MessageInfo, "Saving merge result containing %d candidate device(s) from %d discovery repositor%s.",
		container.DeviceCount(), container.CollectionCount(), pluralY(container.CollectionCount()))

	if err := t.deps.Candidates.Save(ctx, container); err != nil {
		t.log.Add(MessageError, "Saving candidate devices failed: %v", err)
		return OutcomeError, fmt.Errorf("saving candidate devices of template %s: %w", t.deviceTemplateID, err)
	}

	t.log.Add(MessageSuccess, "Completed successfully.")
	return OutcomeSuccess, nil
}
