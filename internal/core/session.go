package core

// session.go runs one editing session.
//
// A session is one goroutine owning one Reconciler. Inbound messages, host
// commands, timer fires and lookup completions are all events on that loop,
// handled in receipt order. Only backend calls run elsewhere, and they post
// their completion back as an event. Outbound messages fan out to
// subscribers over buffered channels.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/gridhost/internal/protocol"
	"github.com/JonMunkholm/gridhost/internal/resolve"
)

// DefaultDebounce is the coalescing delay of outbound snapshots.
const DefaultDebounce = 120 * time.Millisecond

// subscriberBuffer is the number of frames a slow subscriber may lag behind.
const subscriberBuffer = 16

// FrameKind tells subscribers how to render a frame.
type FrameKind string

const (
	FrameMessage  FrameKind = "message"
	FrameAdvisory FrameKind = "advisory"
)

// Frame is one item on a subscription: a host→surface message or an advisory.
type Frame struct {
	Kind     FrameKind
	Message  protocol.Message
	Advisory *Advisory
}

// SessionConfig configures a new session.
type SessionConfig struct {
	Mode       ModeDefinition
	Tenant     string
	Debounce   time.Duration
	Reconciler Options
	Pipeline   *resolve.Pipeline
	Catalog    resolve.Catalog // nil disables Load
	Logger     *slog.Logger
}

// Session is one editing context: one surface, one mode, one tenant.
type Session struct {
	ID        string
	Mode      string
	Tenant    string
	CreatedAt time.Time

	rec      *Reconciler
	pipeline *resolve.Pipeline
	catalog  resolve.Catalog
	debounce time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan func(*Reconciler)
	done   chan struct{}

	lookups    sync.WaitGroup
	lastActive atomic.Int64

	subMu   sync.Mutex
	subs    map[chan Frame]struct{}
	last    *protocol.ConfigureTable
	closing bool
}

// NewSession starts the session loop. The initial snapshot is sent as soon
// as the first debounce fires.
func NewSession(id string, cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id, "mode", cfg.Mode.Key)

	opts := cfg.Reconciler
	opts.Tenant = cfg.Tenant
	opts.Logger = logger

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		Mode:      cfg.Mode.Key,
		Tenant:    cfg.Tenant,
		CreatedAt: time.Now(),
		rec:       NewReconciler(cfg.Mode, opts),
		pipeline:  cfg.Pipeline,
		catalog:   cfg.Catalog,
		debounce:  debounce,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan func(*Reconciler)),
		done:      make(chan struct{}),
		subs:      make(map[chan Frame]struct{}),
	}
	s.lastActive.Store(s.CreatedAt.UnixNano())

	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.done)
	defer s.closeSubscribers()

	debounce := time.NewTimer(s.debounce)
	defer debounce.Stop()
	window := time.NewTimer(time.Hour)
	window.Stop()
	defer window.Stop()

	version := s.rec.Version()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("session loop stopped")
			return

		case ev := <-s.events:
			s.handle(ev)

		case <-debounce.C:
			s.emit(window)

		case <-window.C:
			s.emit(window)
		}

		s.publishOutbox()

		if s.rec.TakeFlushRequest() {
			debounce.Stop()
			s.emit(window)
			s.rec.OpenSuppressionWindow()
			if until, open := s.rec.SuppressedUntil(); open {
				resetTimer(window, time.Until(until))
			}
		}

		for _, job := range s.rec.TakeJobs() {
			s.startLookup(job)
		}

		if v := s.rec.Version(); v != version {
			version = v
			resetTimer(debounce, s.debounce)
		}
	}
}

// handle runs one event, keeping a panic inside the reconciler from taking
// the loop down.
func (s *Session) handle(ev func(*Reconciler)) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("session event panicked",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()
	ev(s.rec)
}

func (s *Session) emit(window *time.Timer) {
	res := s.rec.Emit()
	switch res.Outcome {
	case EmitSent:
		snap := res.Snapshot
		s.subMu.Lock()
		s.last = &snap
		s.subMu.Unlock()
		s.publish(Frame{Kind: FrameMessage, Message: snap})
		s.logger.Debug("snapshot sent", "rows", len(snap.Data), "loading", snap.LoadingData)
	case EmitSkipped:
		s.logger.Debug("snapshot skipped")
	case EmitDeferred:
		resetTimer(window, time.Until(res.Until))
		s.logger.Debug("snapshot deferred", "until", res.Until)
	}
}

func (s *Session) publishOutbox() {
	for _, m := range s.rec.TakeOutbox() {
		if _, ok := m.(protocol.ClearTable); ok {
			s.subMu.Lock()
			s.last = nil
			s.subMu.Unlock()
		}
		s.publish(Frame{Kind: FrameMessage, Message: m})
	}
	for _, a := range s.rec.TakeNewAdvisories() {
		s.publish(Frame{Kind: FrameAdvisory, Advisory: &a})
	}
}

func (s *Session) startLookup(job Job) {
	s.lookups.Add(1)
	go func() {
		defer s.lookups.Done()
		res, err := s.pipeline.Run(s.ctx, job.Request())
		s.post(func(r *Reconciler) { r.ApplyResolution(job, res, err) })
	}()
}

// post queues an event without waiting for it to run. Events posted after
// close are dropped.
func (s *Session) post(ev func(*Reconciler)) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// do runs fn on the loop and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func(*Reconciler)) error {
	s.lastActive.Store(time.Now().UnixNano())

	finished := make(chan struct{})
	ev := func(r *Reconciler) {
		defer close(finished)
		fn(r)
	}

	select {
	case s.events <- ev:
	case <-s.done:
		return fmt.Errorf("%w: %s", ErrSessionClosed, s.ID)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-s.done:
		return fmt.Errorf("%w: %s", ErrSessionClosed, s.ID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver hands one surface→host message to the reconciler.
func (s *Session) Deliver(ctx context.Context, m protocol.Message) error {
	var derr error
	if err := s.do(ctx, func(r *Reconciler) { derr = protocol.Dispatch(m, r) }); err != nil {
		return err
	}
	return derr
}

// DeliverFrame decodes a raw envelope and delivers it. Malformed frames are
// logged and returned without touching the session.
func (s *Session) DeliverFrame(ctx context.Context, data []byte) error {
	m, err := protocol.Decode(data, protocol.SurfaceToHost)
	if err != nil {
		s.logger.Warn("dropped malformed message", "error", err)
		return err
	}
	return s.Deliver(ctx, m)
}

// ApplyFormula evaluates src over the target rows.
func (s *Session) ApplyFormula(ctx context.Context, src string) (FormulaResult, error) {
	var (
		res  FormulaResult
		ferr error
	)
	if err := s.do(ctx, func(r *Reconciler) { res, ferr = r.ApplyFormula(src) }); err != nil {
		return res, err
	}
	return res, ferr
}

// Clear empties the table and reseeds blank rows.
func (s *Session) Clear(ctx context.Context) error {
	return s.do(ctx, func(r *Reconciler) { r.Clear() })
}

// Load replaces the rows with every catalog record of the session's tenant.
// The catalog is read off the loop.
func (s *Session) Load(ctx context.Context) (int, error) {
	if s.catalog == nil {
		return 0, ErrNoCatalog
	}
	recs, err := s.catalog.ListAll(ctx, s.Tenant, s.Mode)
	if err != nil {
		return 0, fmt.Errorf("load records: %w", err)
	}
	var n int
	if err := s.do(ctx, func(r *Reconciler) { n = r.LoadRecords(recs) }); err != nil {
		return 0, err
	}
	return n, nil
}

// Validate collects blocking errors and focuses the first one.
func (s *Session) Validate(ctx context.Context) ([]RowError, error) {
	var errs []RowError
	err := s.do(ctx, func(r *Reconciler) { errs = r.Validate() })
	return errs, err
}

// ChangedRows lists rows that differ from their baseline.
func (s *Session) ChangedRows(ctx context.Context) ([]ChangedRow, error) {
	var rows []ChangedRow
	err := s.do(ctx, func(r *Reconciler) { rows = r.ChangedRows() })
	return rows, err
}

// Advisories lists the advisories that have not expired.
func (s *Session) Advisories(ctx context.Context) ([]Advisory, error) {
	var out []Advisory
	err := s.do(ctx, func(r *Reconciler) { out = r.Advisories() })
	return out, err
}

// DismissAdvisories drops every advisory.
func (s *Session) DismissAdvisories(ctx context.Context) error {
	return s.do(ctx, func(r *Reconciler) { r.DismissAdvisories() })
}

// Snapshot builds the current snapshot without waiting for the debounce.
func (s *Session) Snapshot(ctx context.Context) (protocol.ConfigureTable, error) {
	var snap protocol.ConfigureTable
	err := s.do(ctx, func(r *Reconciler) { snap = r.Snapshot() })
	return snap, err
}

// Summary reports row counts and state.
func (s *Session) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.do(ctx, func(r *Reconciler) { sum = r.Summary() })
	return sum, err
}

// InvalidateCache drops the session's cached lookups.
func (s *Session) InvalidateCache() {
	if s.pipeline != nil {
		s.pipeline.Cache().Invalidate()
	}
}

// Subscribe returns a channel of outbound frames. The last snapshot sent, if
// any, is delivered first. The channel is closed when the session closes or
// cancel is called.
func (s *Session) Subscribe() (frames <-chan Frame, cancel func()) {
	ch := make(chan Frame, subscriberBuffer)

	s.subMu.Lock()
	if s.closing {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	if s.last != nil {
		ch <- Frame{Kind: FrameMessage, Message: *s.last}
	}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

// publish sends f to every subscriber. A full buffer loses its oldest frame:
// every snapshot is a full state, so only the newest matters.
func (s *Session) publish(f Frame) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- f:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- f:
		default:
			s.logger.Warn("subscriber too slow, frame dropped", "kind", f.Kind)
		}
	}
}

func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.closing = true
	for ch := range s.subs {
		close(ch)
	}
	s.subs = make(map[chan Frame]struct{})
}

// Subscribers returns the number of open subscriptions.
func (s *Session) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

// LastActive returns when the session last handled a request.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Done is closed once the loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the loop and waits for in-flight lookups to return.
func (s *Session) Close() {
	s.cancel()
	<-s.done
	s.lookups.Wait()
	s.logger.Info("session closed")
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}
