package flameweb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bernerdschaefer/eventsource"
	"github.com/peterbourgon/flame"
	"github.com/peterbourgon/flame/flamebuf"
	"go.uber.org/zap"
)

// Subscriber is a source of live records. [flame.Recorder] implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, ch chan<- flamebuf.Record) (flame.StreamStats, error)
	SubscribeStats(ch chan<- flamebuf.Record) (flame.StreamStats, error)
}

var _ Subscriber = (*flame.Recorder)(nil)

// StreamServer streams live records as server-sent events. Requests must
// Accept: text/event-stream.
//
// Each record is sent as a "record" event with JSON data. An "init" event is
// sent first, and a "stats" event is sent periodically, reporting records
// sent and dropped for the connection. The query parameter sendbuf sets the
// number of records buffered for a slow client before records are dropped.
// If StatsInterval is zero, the query parameter stats sets the interval
// between stats events, from 1s to 1m, default 10s.
type StreamServer struct {
	// Subscriber to stream records from. Required.
	Subscriber Subscriber

	// StatsInterval between stats events. Optional.
	StatsInterval time.Duration

	// Logger for stream lifecycle events. Optional.
	Logger *zap.Logger
}

// NewStreamServer returns a stream server for the given subscriber.
func NewStreamServer(s Subscriber, logger *zap.Logger) *StreamServer {
	return &StreamServer{
		Subscriber: s,
		Logger:     logger,
	}
}

// ServeHTTP implements http.Handler.
func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if !RequestExplicitlyAccepts(r, "text/event-stream") {
		err := fmt.Errorf("invalid request Accept header (%s)", r.Header.Get("accept"))
		respondError(w, err, http.StatusBadRequest)
		return
	}

	var (
		interval = s.StatsInterval
		sendbuf  = parseRange(r.URL.Query().Get("sendbuf"), strconv.Atoi, 1, 1000, 100000)
		recordc  = make(chan flamebuf.Record, sendbuf)
		donec    = make(chan struct{})
	)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if interval <= 0 {
		interval = parseRange(r.URL.Query().Get("stats"), time.ParseDuration, time.Second, 10*time.Second, time.Minute)
	}

	logger = logger.With(zap.String("remote_addr", r.RemoteAddr))
	logger.Debug("stream started", zap.Int("sendbuf", sendbuf), zap.Duration("stats", interval))

	go func() {
		defer close(donec)
		stats, err := s.Subscriber.Subscribe(ctx, recordc)
		logger.Debug("stream done", zap.Any("stats", stats), zap.Error(err))
	}()
	defer func() {
		cancel()
		<-donec
	}()

	eventsource.Handler(func(lastID string, encoder *eventsource.Encoder, stop <-chan bool) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		send := func(eventType string, v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", eventType, err)
			}
			if err := encoder.Encode(eventsource.Event{Type: eventType, Data: data}); err != nil {
				return fmt.Errorf("encode %s: %w", eventType, err)
			}
			return nil
		}

		if err := send("init", map[string]any{"sendbuf": cap(recordc)}); err != nil {
			logger.Debug("stream init failed", zap.Error(err))
			return
		}

		for {
			select {
			case <-ticker.C:
				stats, err := s.Subscriber.SubscribeStats(recordc)
				if err != nil {
					continue // not yet subscribed
				}
				if err := send("stats", stats); err != nil {
					logger.Debug("stream stats failed", zap.Error(err))
					return
				}

			case rec := <-recordc:
				if err := send("record", rec); err != nil {
					logger.Debug("stream record failed", zap.Error(err))
					return
				}

			case <-donec:
				logger.Debug("stopping: subscription done")
				return

			case <-stop:
				logger.Debug("stopping: client went away")
				return

			case <-ctx.Done():
				logger.Debug("stopping: context done", zap.Error(ctx.Err()))
				return
			}
		}
	}).ServeHTTP(w, r)
}
