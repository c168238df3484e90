package flameweb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bernerdschaefer/eventsource"
	"github.com/peterbourgon/flame/flamebuf"
	"go.uber.org/zap"
)

// StreamClient reads live records from a remote StreamServer.
type StreamClient struct {
	// URI of the remote stream server. Required.
	URI string

	// SendBuffer requested from the server. Default 0, which means the
	// server's default. Max 100000.
	SendBuffer int

	// RetryInterval between reconnect attempts. Default 3s, min 1s, max 60s.
	RetryInterval time.Duration

	// StatsInterval requested from the server. Default 10s, min 1s, max 60s.
	StatsInterval time.Duration

	// OnStats is called for every stats event. Optional.
	OnStats func(StreamServerStats)

	// Logger for connection events. Optional.
	Logger *zap.Logger
}

// StreamServerStats is the data of a stats event.
type StreamServerStats struct {
	Skips uint64 `json:"skips"`
	Sends uint64 `json:"sends"`
	Drops uint64 `json:"drops"`
}

// NewStreamClient returns a stream client connecting to the given URI.
func NewStreamClient(uri string) *StreamClient {
	c := &StreamClient{URI: uri}
	c.initialize()
	return c
}

func (c *StreamClient) initialize() {
	if c.URI != "" && !strings.HasPrefix(c.URI, "http") {
		c.URI = "http://" + c.URI
	}

	if min, max := 0, 100000; c.SendBuffer < min {
		c.SendBuffer = min
	} else if c.SendBuffer > max {
		c.SendBuffer = max
	}

	if def, min, max := 3*time.Second, 1*time.Second, 60*time.Second; c.RetryInterval == 0 {
		c.RetryInterval = def
	} else if c.RetryInterval < min {
		c.RetryInterval = min
	} else if c.RetryInterval > max {
		c.RetryInterval = max
	}

	if def, min, max := 10*time.Second, 1*time.Second, 60*time.Second; c.StatsInterval == 0 {
		c.StatsInterval = def
	} else if c.StatsInterval < min {
		c.StatsInterval = min
	} else if c.StatsInterval > max {
		c.StatsInterval = max
	}

	if c.OnStats == nil {
		c.OnStats = func(StreamServerStats) {}
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Stream records from the remote server to ch. It returns nil when ctx is
// canceled or the server closes the stream, and an error otherwise.
func (c *StreamClient) Stream(ctx context.Context, ch chan<- flamebuf.Record) error {
	c.initialize()

	uri, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Errorf("parse URI: %w", err)
	}

	query := uri.Query()
	if c.SendBuffer > 0 {
		query.Set("sendbuf", strconv.Itoa(c.SendBuffer))
	}
	query.Set("stats", c.StatsInterval.String())
	uri.RawQuery = query.Encode()

	// The request deliberately has no context: the event source reuses it
	// across reconnects, and treats cancelation as a retryable error.
	req, err := http.NewRequest("GET", uri.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "text/event-stream")

	es := eventsource.New(req, c.RetryInterval)
	go func() {
		<-ctx.Done()
		es.Close()
	}()

	for {
		ev, err := es.Read()
		if errors.Is(err, eventsource.ErrClosed) {
			c.Logger.Debug("stream closed", zap.String("uri", uri.String()))
			return nil
		}
		if err != nil {
			return fmt.Errorf("read server-sent event: %w", err)
		}

		switch ev.Type {
		case "init":
			c.Logger.Debug("stream init", zap.ByteString("data", ev.Data))

		case "record":
			var rec flamebuf.Record
			if err := json.Unmarshal(ev.Data, &rec); err != nil {
				return fmt.Errorf("decode record event: %w", err)
			}
			select {
			case ch <- rec:
			case <-ctx.Done():
				return nil
			}

		case "stats":
			var stats StreamServerStats
			if err := json.Unmarshal(ev.Data, &stats); err != nil {
				return fmt.Errorf("decode stats event: %w", err)
			}
			c.OnStats(stats)

		default:
			c.Logger.Debug("unknown event type", zap.String("type", ev.Type))
		}
	}
}
