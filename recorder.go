package flame

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/peterbourgon/flame/flamebuf"
	"github.com/peterbourgon/flame/internal/flamepubsub"
	"go.uber.org/zap"
)

// State is the lifecycle state of a recorder.
type State uint8

const (
	// Idle recorders have never been started.
	Idle State = iota

	// Active recorders hold the call hook and record probe firings.
	Active

	// Stopped recorders keep the records of their most recent session.
	Stopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var sessionIDEntropy = ulid.DefaultEntropy()

// Recorder owns tracing sessions. Each call to Start begins a new session with
// an empty buffer, and each call to Stop ends it. The records of the most
// recent session remain available until the next Start.
//
// Recorders are safe for concurrent use. Probes firing on different goroutines
// are appended in arrival order.
type Recorder struct {
	name    string
	clock   func() int64
	exclude *exclusions
	logger  *zap.Logger
	broker  *flamepubsub.Broker[flamebuf.Record]

	mtx   sync.Mutex
	state State
	hook  *hook
	id    ulid.ULID
	buf   *flamebuf.Buffer
	begin int64
	end   int64
	last  int64
}

// Option configures a recorder.
type Option func(*Recorder)

// WithClock sets the clock used to timestamp records. The clock should return
// monotonic nanoseconds; the recorder clamps it so timestamps never decrease.
// By default, a monotonic clock anchored at process start is used.
func WithClock(clock func() int64) Option {
	return func(r *Recorder) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithExclude adds package import paths whose probes are ignored. A path
// ending in "/..." excludes the package and every package below it. Package
// flame itself is always excluded.
func WithExclude(pkgs ...string) Option {
	return func(r *Recorder) {
		r.exclude.add(pkgs...)
	}
}

// WithLogger sets the logger for session lifecycle events. Probes never log.
// By default, nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithName sets the profile name of exported sessions. By default, the
// session ID is used.
func WithName(name string) Option {
	return func(r *Recorder) {
		r.name = name
	}
}

// NewRecorder returns an idle recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		clock:   monotonicNanos,
		exclude: newExclusions(),
		logger:  zap.NewNop(),
		broker:  flamepubsub.NewBroker[flamebuf.Record](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins a new session: it takes the start timestamp, creates an empty
// buffer, and installs the global call hook. If the hook can't be installed,
// a *HookError is returned, and the previous session (if any) is retained.
func (r *Recorder) Start() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.state == Active {
		return ErrActive
	}

	var (
		id   = ulid.MustNew(ulid.Timestamp(time.Now()), sessionIDEntropy)
		name = r.name
		h    = &hook{rec: r}
	)
	if name == "" {
		name = id.String()
	}

	if err := installHook(h); err != nil {
		r.logger.Debug("session start failed", zap.String("session", id.String()), zap.Error(err))
		return &HookError{Op: "install", Err: err}
	}

	r.state = Active
	r.hook = h
	r.id = id
	r.buf = flamebuf.NewBuffer(name)
	r.begin = r.nanosLocked()
	r.end = 0

	r.logger.Debug("session started", zap.String("session", id.String()), zap.String("name", name))

	return nil
}

// Stop ends the current session: it uninstalls the global call hook and takes
// the end timestamp. No records are appended after Stop returns, even if
// instrumented functions keep running.
func (r *Recorder) Stop() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.state != Active {
		return ErrNotActive
	}

	if err := uninstallHook(r.hook); err != nil {
		r.logger.Warn("session stop failed", zap.String("session", r.id.String()), zap.Error(err))
		return &HookError{Op: "uninstall", Err: err}
	}

	r.state = Stopped
	r.hook = nil
	r.end = r.nanosLocked()

	r.logger.Debug("session stopped",
		zap.String("session", r.id.String()),
		zap.Int("records", r.buf.Len()),
		zap.Duration("took", time.Duration(r.end-r.begin)),
	)

	return nil
}

// append adds a record to the session bound to h. It returns false if that
// session is no longer active.
func (r *Recorder) append(h *hook, kind flamebuf.Kind, fr *frame) (flamebuf.Record, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.hook != h {
		return flamebuf.Record{}, false
	}

	at := r.nanosLocked()
	r.buf.Append(at, kind, fr.file, fr.line, fr.name)

	return flamebuf.Record{At: at, Kind: kind, File: fr.file, Line: fr.line, Name: fr.name}, true
}

// Nanos returns the current time of the recorder's clock in nanoseconds.
// Successive calls never return decreasing values.
func (r *Recorder) Nanos() int64 {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.nanosLocked()
}

func (r *Recorder) nanosLocked() int64 {
	now := r.clock()
	if now < r.last {
		now = r.last
	}
	r.last = now
	return now
}

// State returns the lifecycle state of the recorder.
func (r *Recorder) State() State {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.state
}

// ID returns the ULID of the current or most recent session, or the empty
// string if the recorder has never been started.
func (r *Recorder) ID() string {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.state == Idle {
		return ""
	}
	return r.id.String()
}

// Begin returns the start timestamp of the current or most recent session.
func (r *Recorder) Begin() int64 {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.begin
}

// End returns the stop timestamp of the most recent session, or zero if the
// session is still active.
func (r *Recorder) End() int64 {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.end
}

// Len returns the number of records in the current or most recent session.
func (r *Recorder) Len() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.buf == nil {
		return 0
	}
	return r.buf.Len()
}

// Records returns a copy of the records in the current or most recent session.
func (r *Recorder) Records() []flamebuf.Record {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.buf == nil {
		return nil
	}
	return r.buf.Records()
}

// Summary returns per-frame statistics for the current or most recent session.
func (r *Recorder) Summary() []flamebuf.FrameStats {
	return flamebuf.Summarize(r.Records())
}

// snapshot returns a copy of the session buffer, so that encoding and file
// I/O happen without holding the lock that probes contend on.
func (r *Recorder) snapshot() (*flamebuf.Buffer, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.buf == nil {
		return nil, ErrNoSession
	}
	return r.buf.Clone(), nil
}

// Export writes the current or most recent session to path as a speedscope
// profile, and returns the number of records written. Errors are of type
// *flamebuf.ExportError; the session is unaffected, and the export can be
// retried.
func (r *Recorder) Export(path string) (int, error) {
	return r.ExportFormat(path, flamebuf.FormatSpeedscope)
}

// ExportFormat is like Export, with a specific file format.
func (r *Recorder) ExportFormat(path string, f flamebuf.Format) (int, error) {
	buf, err := r.snapshot()
	if err != nil {
		return 0, &flamebuf.ExportError{Path: path, Err: err}
	}

	n, err := buf.ExportJSON(path, f)
	if err != nil {
		r.logger.Warn("export failed", zap.String("path", path), zap.Error(err))
		return 0, err
	}

	r.logger.Info("exported profile",
		zap.String("path", path),
		zap.String("format", string(f)),
		zap.Int("records", n),
	)

	return n, nil
}

// WriteSpeedscope writes the current or most recent session to w as a
// speedscope profile.
func (r *Recorder) WriteSpeedscope(w io.Writer) error {
	buf, err := r.snapshot()
	if err != nil {
		return err
	}
	return buf.WriteSpeedscope(w)
}

// WriteChromeTrace writes the current or most recent session to w in the
// Chrome trace event format.
func (r *Recorder) WriteChromeTrace(w io.Writer) error {
	buf, err := r.snapshot()
	if err != nil {
		return err
	}
	return buf.WriteChromeTrace(w)
}

// StreamStats describes a finished or ongoing Subscribe call.
type StreamStats struct {
	Skips uint64 `json:"skips"`
	Sends uint64 `json:"sends"`
	Drops uint64 `json:"drops"`
}

// Subscribe sends every record appended by the recorder to ch, until ctx is
// canceled. Sends never block: if ch is full, the record is dropped for this
// subscriber. The returned stats count what was sent and dropped.
func (r *Recorder) Subscribe(ctx context.Context, ch chan<- flamebuf.Record) (StreamStats, error) {
	stats, err := r.broker.Subscribe(ctx, nil, ch)
	return StreamStats(stats), err
}

// SubscribeStats returns the current stats of an ongoing Subscribe call.
func (r *Recorder) SubscribeStats(ch chan<- flamebuf.Record) (StreamStats, error) {
	stats, err := r.broker.Stats(ch)
	return StreamStats(stats), err
}
