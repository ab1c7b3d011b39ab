package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/proflinker/api/internal/models"
)

// Status is the lifecycle state of the most recent request of a controller
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

const (
	DefaultCount   = 6
	MaxCount       = 20
	DefaultTimeout = 30 * time.Second
)

// Request holds the input parameters of one generation call
type Request struct {
	Kind            models.CandidateKind `json:"kind"`
	FieldOfInterest string               `json:"field_of_interest"`
	EducationLevel  string               `json:"education_level,omitempty"`
	University      string               `json:"university,omitempty"`
	Count           int                  `json:"count"`
}

func (r Request) normalized(defaultCount int) Request {
	r.FieldOfInterest = strings.TrimSpace(r.FieldOfInterest)
	r.EducationLevel = strings.TrimSpace(r.EducationLevel)
	r.University = strings.TrimSpace(r.University)
	if r.Count <= 0 {
		r.Count = defaultCount
	}
	if r.Count > MaxCount {
		r.Count = MaxCount
	}
	return r
}

// Fetcher performs the network call to a generation endpoint and returns the
// decoded, not yet validated, response.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (any, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, req Request) (any, error)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// NormalizeFunc validates a raw response into candidates
type NormalizeFunc[T any] func(raw any, req Request) ([]T, error)

// Outcome is delivered once per started request and describes that request
// alone, whatever the controller has moved on to since
type Outcome[T any] struct {
	Token      uint64
	Attempt    int
	Request    Request
	Candidates []T
	Err        error
}

// Status is the lifecycle state the request settled in
func (o Outcome[T]) Status() Status {
	return statusFor(o.Err)
}

// Snapshot is the observable state of a controller
type Snapshot[T any] struct {
	Token      uint64    `json:"token"`
	Attempt    int       `json:"attempt"`
	Status     Status    `json:"status"`
	Request    Request   `json:"request"`
	Candidates []T       `json:"candidates"`
	Err        error     `json:"-"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Report describes a finished run, whether or not its result was applied
type Report struct {
	Token   uint64
	Attempt int
	Request Request
	Status  Status
	Count   int
	Err     error
	Latency time.Duration
	Applied bool
}

type options struct {
	timeout      time.Duration
	defaultCount int
	observer     func(Report)
}

// Option configures a controller
type Option func(*options)

// WithTimeout sets the wait budget of a single request
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithDefaultCount sets the result count used when a request carries none
func WithDefaultCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.defaultCount = n
		}
	}
}

// WithObserver registers a callback invoked after every run settles
func WithObserver(fn func(Report)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// Controller keeps at most one generation request in flight. Starting a new
// request supersedes the previous one; a superseded result is never applied.
type Controller[T any] struct {
	fetcher   Fetcher
	normalize NormalizeFunc[T]
	opts      options

	mu      sync.Mutex
	token   uint64
	cancel  context.CancelFunc
	attempt int
	snap    Snapshot[T]
}

// NewController creates a controller for one candidate kind
func NewController[T any](fetcher Fetcher, normalize NormalizeFunc[T], opts ...Option) *Controller[T] {
	o := options{timeout: DefaultTimeout, defaultCount: DefaultCount}
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller[T]{
		fetcher:   fetcher,
		normalize: normalize,
		opts:      o,
		snap:      Snapshot[T]{Status: StatusIdle},
	}
}

// Start cancels any pending request and issues a new one. The returned channel
// receives exactly one outcome.
func (c *Controller[T]) Start(ctx context.Context, req Request) (uint64, <-chan Outcome[T], error) {
	if c.fetcher == nil || c.normalize == nil {
		return 0, nil, errControllerUnusable
	}
	req = req.normalized(c.opts.defaultCount)
	if req.FieldOfInterest == "" {
		return 0, nil, fmt.Errorf("%w: field of interest is required", ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt = 1
	token, out := c.beginLocked(ctx, req)
	return token, out, nil
}

// Run starts a request and waits for its outcome
func (c *Controller[T]) Run(ctx context.Context, req Request) ([]T, error) {
	_, out, err := c.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	o := <-out
	return o.Candidates, o.Err
}

// StartRetry re-issues the last request with an incremented attempt counter.
// The returned channel receives exactly one outcome.
func (c *Controller[T]) StartRetry(ctx context.Context) (uint64, <-chan Outcome[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap.Request.FieldOfInterest == "" {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidInput, errNoPreviousRequest)
	}
	c.attempt++
	token, out := c.beginLocked(ctx, c.snap.Request)
	return token, out, nil
}

// Retry re-issues the last request and waits for its outcome
func (c *Controller[T]) Retry(ctx context.Context) ([]T, error) {
	_, out, err := c.StartRetry(ctx)
	if err != nil {
		return nil, err
	}
	o := <-out
	return o.Candidates, o.Err
}

// Cancel aborts the pending request, if any. Its eventual result is discarded.
func (c *Controller[T]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.token++
	c.snap.Status = StatusCancelled
	c.snap.Err = ErrCancelled
	c.snap.Candidates = nil
	c.snap.FinishedAt = time.Now()
}

// Snapshot returns a copy of the current state
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Pending reports whether a request is in flight
func (c *Controller[T]) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Controller[T]) beginLocked(ctx context.Context, req Request) (uint64, <-chan Outcome[T]) {
	if c.cancel != nil {
		c.cancel()
	}
	c.token++
	token := c.token

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.snap = Snapshot[T]{
		Token:     token,
		Attempt:   c.attempt,
		Status:    StatusPending,
		Request:   req,
		StartedAt: time.Now(),
	}

	out := make(chan Outcome[T], 1)
	go c.run(runCtx, cancel, token, c.attempt, req, out)
	return token, out
}

func (c *Controller[T]) run(ctx context.Context, cancel context.CancelFunc, token uint64, attempt int, req Request, out chan<- Outcome[T]) {
	defer cancel()
	start := time.Now()

	candidates, err := c.execute(ctx, req)
	status := statusFor(err)

	c.mu.Lock()
	applied := c.token == token
	if applied {
		c.cancel = nil
		c.snap.Status = status
		c.snap.Candidates = candidates
		c.snap.Err = err
		c.snap.FinishedAt = time.Now()
	}
	c.mu.Unlock()

	if !applied {
		candidates = nil
		if err == nil || !errors.Is(err, ErrCancelled) {
			err = ErrCancelled
		}
		status = StatusCancelled
	}

	out <- Outcome[T]{Token: token, Attempt: attempt, Request: req, Candidates: candidates, Err: err}

	if c.opts.observer != nil {
		c.opts.observer(Report{
			Token:   token,
			Attempt: attempt,
			Request: req,
			Status:  status,
			Count:   len(candidates),
			Err:     err,
			Latency: time.Since(start),
			Applied: applied,
		})
	}
}

type fetched struct {
	raw any
	err error
}

// execute races the fetch against the timeout; whichever settles first wins.
func (c *Controller[T]) execute(ctx context.Context, req Request) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	ch := make(chan fetched, 1)
	go func() {
		raw, err := c.fetcher.Fetch(ctx, req)
		ch <- fetched{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.opts.timeout)
		}
		return nil, ErrCancelled
	case f := <-ch:
		if f.err != nil {
			return nil, classifyFetchError(f.err)
		}
		candidates, err := c.normalize(f.raw, req)
		if err != nil {
			if !errors.Is(err, ErrEmptyResult) && !errors.Is(err, ErrMalformedResponse) {
				err = errors.Join(ErrMalformedResponse, err)
			}
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, ErrEmptyResult
		}
		return candidates, nil
	}
}

func statusFor(err error) Status {
	switch {
	case err == nil:
		return StatusSucceeded
	case errors.Is(err, ErrCancelled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}
