// Package scheduler owns the refresh timers for one list view: a debounce timer
// restarted by every filter/sort/tab change, and a poll timer whose cadence
// depends on (role, tab). Results are applied last-issued-wins.
package scheduler

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"expensectl/internal/model"
	"expensectl/internal/query"
)

// Kind distinguishes user-visible fetches from silent polls.
type Kind int

const (
	Foreground Kind = iota + 1
	Background
)

func (k Kind) String() string {
	if k == Background {
		return "background"
	}
	return "foreground"
}

type Fetcher interface {
	ListExpenses(ctx context.Context, params url.Values) ([]model.Expense, error)
}

// Snapshot is a consistent copy of the scheduler's exposed state.
type Snapshot struct {
	Context    model.ViewContext
	Rows       []model.Expense
	Loading    bool
	Err        error
	Generation uint64
}

// FetchEvent describes one completed fetch, applied or discarded.
type FetchEvent struct {
	Kind       Kind
	Generation uint64
	Took       time.Duration
	Err        error
	Applied    bool
}

type Options struct {
	Fetcher  Fetcher
	Clock    Clock
	Policy   PolicyFunc
	Logger   *zap.Logger
	Context  model.ViewContext
	OnChange func(Snapshot)
	OnFetch  func(FetchEvent)
}

type Scheduler struct {
	fetcher  Fetcher
	clock    Clock
	policy   PolicyFunc
	log      *zap.Logger
	onChange func(Snapshot)
	onFetch  func(FetchEvent)

	mu      sync.Mutex
	vc      model.ViewContext
	rows    []model.Expense
	loading bool
	err     error

	latest uint64

	debounce      Timer
	debounceEpoch uint64
	poll          Timer
	pollEpoch     uint64
	pollEvery     time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool

	// inflight counts issued fetches that have not finished; idle is
	// broadcast (on mu) when it drops to zero.
	inflight int
	idle     *sync.Cond
}

var ErrNotStarted = errors.New("scheduler not started")

func New(opts Options) *Scheduler {
	s := &Scheduler{
		fetcher:  opts.Fetcher,
		clock:    opts.Clock,
		policy:   opts.Policy,
		log:      opts.Logger,
		onChange: opts.OnChange,
		onFetch:  opts.OnFetch,
		vc:       opts.Context,
		rows:     []model.Expense{},
	}
	s.idle = sync.NewCond(&s.mu)
	if s.clock == nil {
		s.clock = RealClock()
	}
	if s.policy == nil {
		s.policy = DefaultPolicy
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.vc.Role == "" {
		s.vc.Role = model.RoleEmployee
	}
	if s.vc.Sort == (model.Sort{}) {
		s.vc.Sort = model.DefaultSort()
	}
	s.vc.Tab = model.ClampTab(s.vc.Role, s.vc.Tab)
	return s
}

// Start arms the debounce timer (the initial load) and the poll timer.
func (s *Scheduler) Start(ctx context.Context) {
	s.start(ctx, true)
}

// Attach starts the scheduler without the debounced initial load: only the poll
// timer is armed and the caller issues fetches with Refresh. Later filter, sort
// and tab changes debounce as usual.
func (s *Scheduler) Attach(ctx context.Context) {
	s.start(ctx, false)
}

func (s *Scheduler) start(ctx context.Context, initial bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	if initial {
		s.armDebounceLocked()
	}
	s.armPollLocked()
}

// Stop cancels timers and in-flight fetches and waits for them to return.
// Late completions are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	if s.poll != nil {
		s.poll.Stop()
		s.poll = nil
	}
	s.debounceEpoch++
	s.pollEpoch++
	if s.cancel != nil {
		s.cancel()
	}
	s.loading = false
	s.waitLocked()
	s.mu.Unlock()
}

// Wait blocks until no fetch is in flight. Timers may keep issuing fetches
// while it waits; it returns at the first moment nothing is outstanding.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	s.waitLocked()
	s.mu.Unlock()
}

func (s *Scheduler) waitLocked() {
	for s.inflight > 0 {
		s.idle.Wait()
	}
}

func (s *Scheduler) Context() model.ViewContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vc
}

// Rows returns the current row set. The slice is a copy; rows are never patched
// locally, only replaced by a completed fetch.
func (s *Scheduler) Rows() []model.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Expense(nil), s.rows...)
}

func (s *Scheduler) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err is the last foreground fetch error; cleared by the next successful fetch.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Scheduler) snapshotLocked() Snapshot {
	return Snapshot{
		Context:    s.vc,
		Rows:       append([]model.Expense(nil), s.rows...),
		Loading:    s.loading,
		Err:        s.err,
		Generation: s.latest,
	}
}

// CurrentPolicy returns the timing in effect for the current view.
func (s *Scheduler) CurrentPolicy() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy(s.vc.Role, s.vc.Tab)
}

// SetRole changes the role, clamping the tab, and rebuilds both timers.
func (s *Scheduler) SetRole(r model.Role) {
	s.mu.Lock()
	if s.vc.Role == r {
		s.mu.Unlock()
		return
	}
	s.vc.Role = r
	if t := model.ClampTab(r, s.vc.Tab); t != s.vc.Tab {
		s.vc.Tab = t
		s.vc.Filters = model.Filters{}
	}
	s.armDebounceLocked()
	s.armPollLocked()
	s.mu.Unlock()
	s.notify()
}

// SetTab switches tab, resets filters to defaults, and rebuilds both timers.
// It reports whether the tab actually changed.
func (s *Scheduler) SetTab(t model.Tab) bool {
	s.mu.Lock()
	t = model.ClampTab(s.vc.Role, t)
	if s.vc.Tab == t {
		s.mu.Unlock()
		return false
	}
	s.vc.Tab = t
	s.vc.Filters = model.Filters{}
	s.armDebounceLocked()
	s.armPollLocked()
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Scheduler) SetFilters(f model.Filters) {
	s.update(func(vc *model.ViewContext) { vc.Filters = f })
}

func (s *Scheduler) SetFilter(key, value string) {
	s.update(func(vc *model.ViewContext) { vc.Filters = vc.Filters.With(key, value) })
}

func (s *Scheduler) SetSort(so model.Sort) {
	s.update(func(vc *model.ViewContext) { vc.Sort = so })
}

func (s *Scheduler) ToggleSort(field model.SortField) {
	s.update(func(vc *model.ViewContext) { vc.Sort = vc.Sort.Toggle(field) })
}

// update applies a debounce-relevant change: only the debounce timer restarts,
// polling keeps its cadence.
func (s *Scheduler) update(fn func(*model.ViewContext)) {
	s.mu.Lock()
	fn(&s.vc)
	s.armDebounceLocked()
	s.mu.Unlock()
	s.notify()
}

// Refresh issues a fetch now. Mutation callbacks use background=true.
func (s *Scheduler) Refresh(background bool) error {
	kind := Foreground
	if background {
		kind = Background
	}
	return s.issue(kind)
}

func (s *Scheduler) armDebounceLocked() {
	if s.ctx == nil || s.stopped {
		return
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounceEpoch++
	epoch := s.debounceEpoch
	d := s.policy(s.vc.Role, s.vc.Tab).Debounce
	s.debounce = s.clock.AfterFunc(d, func() { s.onDebounce(epoch) })
}

func (s *Scheduler) onDebounce(epoch uint64) {
	s.mu.Lock()
	if epoch != s.debounceEpoch || s.stopped {
		s.mu.Unlock()
		return
	}
	s.debounce = nil
	s.mu.Unlock()
	_ = s.issue(Foreground)
}

func (s *Scheduler) armPollLocked() {
	if s.ctx == nil || s.stopped {
		return
	}
	if s.poll != nil {
		s.poll.Stop()
		s.poll = nil
	}
	s.pollEpoch++
	s.pollEvery = s.policy(s.vc.Role, s.vc.Tab).Poll
	if s.pollEvery <= 0 {
		return
	}
	epoch := s.pollEpoch
	s.poll = s.clock.AfterFunc(s.pollEvery, func() { s.onPoll(epoch) })
}

func (s *Scheduler) onPoll(epoch uint64) {
	s.mu.Lock()
	if epoch != s.pollEpoch || s.stopped {
		s.mu.Unlock()
		return
	}
	s.poll = s.clock.AfterFunc(s.pollEvery, func() { s.onPoll(epoch) })
	s.mu.Unlock()
	_ = s.issue(Background)
}

func (s *Scheduler) issue(kind Kind) error {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.stopped {
		s.mu.Unlock()
		return context.Canceled
	}
	s.latest++
	gen := s.latest
	params := query.FromContext(s.vc)
	ctx := s.ctx
	if kind == Foreground {
		s.loading = true
	}
	s.inflight++
	s.mu.Unlock()

	if kind == Foreground {
		s.notify()
	}

	go func() {
		defer s.done()
		start := s.clock.Now()
		rows, err := s.fetcher.ListExpenses(ctx, params)
		s.complete(kind, gen, rows, err, s.clock.Now().Sub(start))
	}()
	return nil
}

func (s *Scheduler) done() {
	s.mu.Lock()
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Scheduler) complete(kind Kind, gen uint64, rows []model.Expense, err error, took time.Duration) {
	s.mu.Lock()
	applied := !s.stopped && gen == s.latest
	if applied {
		s.loading = false
		switch {
		case err == nil:
			if rows == nil {
				rows = []model.Expense{}
			}
			s.rows = rows
			s.err = nil
		case kind == Foreground:
			s.err = err
		}
	}
	s.mu.Unlock()

	if err != nil && applied {
		if kind == Background {
			s.log.Warn("background refresh failed", zap.Uint64("generation", gen), zap.Error(err))
		} else {
			s.log.Info("refresh failed", zap.Uint64("generation", gen), zap.Error(err))
		}
	}
	if !applied {
		s.log.Debug("discarding superseded fetch", zap.Stringer("kind", kind), zap.Uint64("generation", gen))
	}
	if s.onFetch != nil {
		s.onFetch(FetchEvent{Kind: kind, Generation: gen, Took: took, Err: err, Applied: applied})
	}
	if applied {
		s.notify()
	}
}

func (s *Scheduler) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.Snapshot())
}
