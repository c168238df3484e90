// Package flameweb serves recorded profiles, and streams live records, over
// HTTP.
package flameweb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/peterbourgon/flame"
	"github.com/peterbourgon/flame/flamebuf"
	"github.com/peterbourgon/flame/internal/flameutil"
	"go.uber.org/zap"
)

// Profile is a source of records that can be encoded as a profile. Both
// [flame.Recorder] and [flamebuf.Buffer] implement it.
type Profile interface {
	Len() int
	Records() []flamebuf.Record
	WriteSpeedscope(io.Writer) error
	WriteChromeTrace(io.Writer) error
}

var (
	_ Profile = (*flame.Recorder)(nil)
	_ Profile = (*flamebuf.Buffer)(nil)
)

// ProfileServer serves a profile over HTTP.
//
// By default, the profile is returned in the speedscope format. The query
// parameter format=chrome selects the Chrome trace event format. The query
// parameter summary=N returns the top N frames by self time as JSON instead.
type ProfileServer struct {
	// Profile to serve. Required.
	Profile Profile

	// Logger for request errors. Optional.
	Logger *zap.Logger
}

// NewProfileServer returns a server for the given profile.
func NewProfileServer(p Profile, logger *zap.Logger) *ProfileServer {
	return &ProfileServer{
		Profile: p,
		Logger:  logger,
	}
}

// ServeHTTP implements http.Handler.
func (s *ProfileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("allow", "GET, HEAD")
		respondError(w, fmt.Errorf("method %s not allowed", r.Method), http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	var errs []error

	format, err := flamebuf.ParseFormat(query.Get("format"))
	if err != nil {
		errs = append(errs, err)
	}

	if v := query.Get("summary"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			errs = append(errs, fmt.Errorf("invalid summary %q", v))
		}
	}

	if len(errs) > 0 {
		err := fmt.Errorf("bad request: %s", strings.Join(flameutil.FlattenErrors(errs...), "; "))
		respondError(w, err, http.StatusBadRequest)
		return
	}

	if query.Has("summary") {
		s.serveSummary(w, r)
		return
	}

	var buf bytes.Buffer
	switch format {
	case flamebuf.FormatChrome:
		err = s.Profile.WriteChromeTrace(&buf)
	default:
		err = s.Profile.WriteSpeedscope(&buf)
	}
	switch {
	case errors.Is(err, flame.ErrNoSession):
		respondError(w, err, http.StatusNotFound)
		return
	case err != nil:
		logger.Error("write profile", zap.String("format", string(format)), zap.Error(err))
		respondError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("content-length", strconv.Itoa(buf.Len()))
	w.Header().Set("x-flame-format", string(format))
	w.Header().Set("x-flame-records", strconv.Itoa(s.Profile.Len()))
	if r.Method == http.MethodHead {
		return
	}
	w.Write(buf.Bytes())
}

// Summary is the response to a summary request.
type Summary struct {
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration"`
	Human    string        `json:"human"`
	Frames   []FrameStats  `json:"frames"`
}

// FrameStats is a single frame in a summary.
type FrameStats struct {
	flamebuf.FrameStats
	SelfPercent string `json:"self_percent"`
}

func (s *ProfileServer) serveSummary(w http.ResponseWriter, r *http.Request) {
	var (
		n       = parseRange(r.URL.Query().Get("summary"), strconv.Atoi, 1, 20, 1000)
		records = s.Profile.Records()
		stats   = flamebuf.Summarize(records)
	)

	var duration time.Duration
	if len(records) > 0 {
		duration = time.Duration(records[len(records)-1].At - records[0].At)
	}

	if len(stats) > n {
		stats = stats[:n]
	}

	frames := make([]FrameStats, 0, len(stats))
	for _, fs := range stats {
		frames = append(frames, FrameStats{
			FrameStats:  fs,
			SelfPercent: flameutil.HumanizePercent(fs.Self, duration),
		})
	}

	respondJSON(w, http.StatusOK, Summary{
		Records:  len(records),
		Duration: duration,
		Human:    flameutil.HumanizeDuration(duration),
		Frames:   frames,
	})
}
