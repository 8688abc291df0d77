package engine

import (
	"context"
	"sync"
	"time"

	"github.com/arienlabs/devscout/internal/discovery"
)

// DefaultWorkers bounds how many discovery tasks run concurrently when no
// explicit worker count is configured.
const DefaultWorkers = 5

// Engine schedules discovery tasks. Tasks for different device templates
// run concurrently up to the worker bound; tasks for the same template run
// strictly in submission order.
type Engine struct {
	deps   Dependencies
	logger Logger
	sem    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queues map[string][]Task
	active map[string]bool
	closed bool

	wg sync.WaitGroup
}

// New creates an engine executing at most workers tasks concurrently.
func New(deps Dependencies, workers int) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		deps:   deps,
		logger: logger,
		sem:    make(chan struct{}, workers),
		ctx:    ctx,
		cancel: cancel,
		queues: make(map[string][]Task),
		active: make(map[string]bool),
	}
}

// Submit queues a task for execution. Tasks with the same device template
// id are executed one after another in submission order.
func (e *Engine) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	id := task.DeviceTemplateID()
	e.queues[id] = append(e.queues[id], task)
	if !e.active[id] {
		e.active[id] = true
		e.wg.Add(1)
		go e.drain(id)
	}
	return nil
}

// drain executes the queued tasks of one device template until its queue
// runs dry.
func (e *Engine) drain(id string) {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		queue := e.queues[id]
		if len(queue) == 0 {
			delete(e.queues, id)
			delete(e.active, id)
			e.mu.Unlock()
			return
		}
		task := queue[0]
		e.queues[id] = queue[1:]
		e.mu.Unlock()

		e.sem <- struct{}{}
		e.runTask(task)
		<-e.sem
	}
}

// runTask runs a single task, persists its discovery log and records
// metrics.
func (e *Engine) runTask(task Task) {
	start := time.Now()

	outcome, err := task.Run(e.ctx)
	if err != nil {
		outcome = OutcomeError
		e.logger.Error("discovery task failed",
			"task", task.Name(),
			"template_id", task.DeviceTemplateID(),
			"error", err)
	} else {
		e.logger.Debug("discovery task finished",
			"task", task.Name(),
			"template_id", task.DeviceTemplateID(),
			"outcome", string(outcome))
	}

	duration := time.Since(start)

	if log := task.DiscoveryLog(); !log.Empty() {
		log.TaskName = task.Name()
		log.Close()
		if e.deps.Logs != nil {
			if saveErr := e.deps.Logs.Save(e.ctx, log); saveErr != nil {
				e.logger.Warn("saving discovery log failed",
					"task", task.Name(),
					"template_id", task.DeviceTemplateID(),
					"error", saveErr)
			}
		}
	}

	if e.deps.Metrics != nil {
		e.deps.Metrics.WriteTaskMetric(task.Name(), task.DeviceTemplateID(), string(outcome), duration)
	}
}

// OnCandidateDevicesChanged receives asynchronous revisions from the
// gateway and turns each into a queued revise task. It never blocks on
// task execution.
func (e *Engine) OnCandidateDevicesChanged(deviceTemplateID, repositoryName string, revision *discovery.Revision) {
	if revision == nil {
		return
	}

	if e.deps.Metrics != nil {
		e.deps.Metrics.WriteNotificationMetric(deviceTemplateID, repositoryName)
	}

	log := NewDiscoveryLog(TriggerRepository, deviceTemplateID)
	task := NewReviseTask(e.deps, deviceTemplateID, repositoryName, revision, log)
	if err := e.Submit(task); err != nil {
		e.logger.Warn("dropping candidate devices revision",
			"template_id", deviceTemplateID,
			"repository", repositoryName,
			"error", err)
	}
}

// Reconcile restores a consistent state after a restart. Templates that
// are still in use get their candidate devices and subscriptions renewed;
// templates no longer in use get their stored state removed.
func (e *Engine) Reconcile(ctx context.Context, templates []discovery.DeviceTemplate) error {
	for i := range templates {
		template := templates[i]

		inUse, err := e.deps.Deployments.InUse(ctx, template.ID)
		if err != nil {
			return err
		}

		log := NewDiscoveryLog(TriggerPlatform, template.ID)
		var task Task
		if inUse {
			task = NewUpdateTask(e.deps, &template, e, true, log)
		} else {
			task = NewDeleteTask(e.deps, &template, true, log)
		}
		if err := e.Submit(task); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting new tasks and waits for all queued tasks to
// finish.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
	e.cancel()
}
