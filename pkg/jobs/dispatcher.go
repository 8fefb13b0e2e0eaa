package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/models"
	"github.com/xhad/bizintel/pkg/metrics"
)

var (
	ErrQueueFull = eris.New("job queue is full")
	ErrClosed    = eris.New("dispatcher is shut down")
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further events follow this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Event is a job status change.
type Event struct {
	RequestID string    `json:"request_id"`
	Status    Status    `json:"status"`
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Runner executes one analysis under a fixed request id.
type Runner interface {
	RunWithID(ctx context.Context, requestID string, reg models.Registration) (*models.AnalysisOutput, error)
}

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxRetries  int
	BaseBackoff time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
	StatusTTL   time.Duration // how long a finished job's status is kept
	Now         func() time.Time
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

type job struct {
	requestID string
	reg       models.Registration
}

// Dispatcher runs analyses on a fixed pool of background workers. A failed
// job is re-run whole, with exponential backoff, unless the failure is a
// validation error.
type Dispatcher struct {
	runner  Runner
	config  DispatcherConfig
	logger  *zap.Logger
	metrics *metrics.Metrics

	jobs chan job
	wg   sync.WaitGroup

	mu       sync.RWMutex
	closed   bool
	statuses map[string]Event
	subs     map[int]subscription
	nextSub  int
}

type subscription struct {
	requestID string
	ch        chan Event
}

func NewDispatcher(runner Runner, config DispatcherConfig) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseBackoff == 0 {
		config.BaseBackoff = time.Second
	}
	if config.Sleep == nil {
		config.Sleep = sleepContext
	}
	if config.StatusTTL <= 0 {
		config.StatusTTL = time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Dispatcher{
		runner:   runner,
		config:   config,
		logger:   config.Logger,
		metrics:  config.Metrics,
		jobs:     make(chan job, config.QueueSize),
		statuses: map[string]Event{},
		subs:     map[int]subscription{},
	}
}

// Start launches the workers. They exit when the queue is closed by Shutdown.
func (d *Dispatcher) Start(ctx context.Context) {
	for w := 1; w <= d.config.Workers; w++ {
		d.wg.Add(1)
		go d.worker(ctx, w)
	}
}

// Submit enqueues a registration without blocking.
func (d *Dispatcher) Submit(requestID string, reg models.Registration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.jobs <- job{requestID: requestID, reg: reg}:
	default:
		return ErrQueueFull
	}

	d.publishLocked(Event{RequestID: requestID, Status: StatusQueued})
	return nil
}

// Status returns the latest event recorded for a request.
func (d *Dispatcher) Status(requestID string) (Event, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ev, ok := d.statuses[requestID]
	return ev, ok
}

// Subscribe streams the subsequent events of one request. A job publishes a
// handful of events, so the buffer only fills if the reader stops reading;
// events past that point are dropped rather than block workers. Call the
// returned func to unsubscribe.
func (d *Dispatcher) Subscribe(requestID string) (<-chan Event, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextSub
	d.nextSub++
	ch := make(chan Event, 16)
	d.subs[id] = subscription{requestID: requestID, ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			if sub, ok := d.subs[id]; ok {
				delete(d.subs, id)
				close(sub.ch)
			}
		})
	}
}

// QueueDepth is the number of jobs waiting for a worker.
func (d *Dispatcher) QueueDepth() int {
	return len(d.jobs)
}

// Shutdown stops accepting jobs and waits for queued ones to drain.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "waiting for jobs to finish")
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for j := range d.jobs {
		d.logger.Debug("worker picked up job", zap.Int("worker", id), zap.String("request_id", j.requestID))
		d.process(ctx, j)
	}
}

func (d *Dispatcher) process(ctx context.Context, j job) {
	logger := d.logger.With(zap.String("request_id", j.requestID))
	maxAttempts := d.config.MaxRetries + 1

	for attempt := 1; ; attempt++ {
		d.publish(Event{RequestID: j.requestID, Status: StatusRunning, Attempt: attempt})

		err := d.run(ctx, j)
		if err == nil {
			d.metrics.JobAttempt(string(StatusCompleted))
			d.publish(Event{RequestID: j.requestID, Status: StatusCompleted, Attempt: attempt})
			logger.Info("job completed", zap.Int("attempt", attempt))
			return
		}

		if !Retryable(err) || attempt >= maxAttempts {
			d.metrics.JobAttempt(string(StatusFailed))
			d.publish(Event{RequestID: j.requestID, Status: StatusFailed, Attempt: attempt, Error: err.Error()})
			logger.Error("job failed", zap.Int("attempt", attempt), zap.Error(err))
			return
		}

		wait := d.config.BaseBackoff * time.Duration(1<<(attempt-1))
		d.metrics.JobAttempt(string(StatusRetrying))
		d.publish(Event{RequestID: j.requestID, Status: StatusRetrying, Attempt: attempt, Error: err.Error()})
		logger.Warn("job failed, retrying", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))

		if err := d.config.Sleep(ctx, wait); err != nil {
			d.publish(Event{RequestID: j.requestID, Status: StatusFailed, Attempt: attempt, Error: err.Error()})
			return
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline panicked: %v", r)
		}
	}()
	_, err = d.runner.RunWithID(ctx, j.requestID, j.reg)
	return err
}

// Retryable reports whether a failed job is worth running again.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if eris.Is(err, models.ErrNoSources) {
		return false
	}
	var verrs models.ValidationErrors
	return !errors.As(err, &verrs)
}

func (d *Dispatcher) publish(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publishLocked(ev)
}

func (d *Dispatcher) publishLocked(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = d.config.Now().UTC()
	}
	if ev.Status.Terminal() {
		d.evictExpiredLocked(ev.Time)
	}
	d.statuses[ev.RequestID] = ev
	for _, sub := range d.subs {
		if sub.requestID != ev.RequestID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// evictExpiredLocked drops finished jobs whose status is older than StatusTTL.
// Their results live in the analysis store.
func (d *Dispatcher) evictExpiredLocked(now time.Time) {
	for id, ev := range d.statuses {
		if ev.Status.Terminal() && now.Sub(ev.Time) > d.config.StatusTTL {
			delete(d.statuses, id)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
