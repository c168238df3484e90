package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/flame"
	"github.com/peterbourgon/flame/flamebuf"
	"github.com/peterbourgon/flame/flameweb"
	"go.uber.org/zap"
)

type serveConfig struct {
	*rootConfig

	listenAddr string
	interval   time.Duration
	depth      int
}

func (cfg *serveConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "listen-addr" /* */, Value: ffval.NewValueDefault(&cfg.listenAddr, "localhost:8001") /* */, Usage: "HTTP listen address", Placeholder: "ADDR"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "interval" /*    */, Value: ffval.NewValueDefault(&cfg.interval, time.Second) /*         */, Usage: "time between live workload rounds, without FILE"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "depth" /*       */, Value: ffval.NewValueDefault(&cfg.depth, 4) /*                      */, Usage: "call tree depth of the live workload, without FILE"})
}

func (cfg *serveConfig) Exec(ctx context.Context, args []string) error {
	mux := http.NewServeMux()

	var g run.Group

	switch len(args) {
	case 0:
		if cfg.interval <= 0 {
			return fmt.Errorf("invalid interval %s", cfg.interval)
		}

		recorder := flame.NewRecorder(flame.WithName("flame serve"), flame.WithLogger(cfg.logger))
		mux.Handle("/profile", flameweb.NewProfileServer(recorder, cfg.logger))
		mux.Handle("/stream", flameweb.NewStreamServer(recorder, cfg.logger))

		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return cfg.runWorkload(ctx, recorder)
		}, func(error) {
			cancel()
		})

	case 1:
		buf, err := flamebuf.ReadFile(args[0])
		if err != nil {
			return err
		}
		cfg.logger.Info("loaded profile", zap.String("file", args[0]), zap.Int("records", buf.Len()))
		mux.Handle("/profile", flameweb.NewProfileServer(buf, cfg.logger))

	default:
		return fmt.Errorf("at most one FILE may be given")
	}

	ln, err := net.Listen("tcp", cfg.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	cfg.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	{
		server := &http.Server{Handler: mux}
		g.Add(func() error {
			if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			server.Shutdown(ctx)
		})
	}

	{
		g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	}

	return g.Run()
}

// runWorkload records one session per round, until ctx is canceled. The most
// recent session stays available to the profile server between rounds.
func (cfg *serveConfig) runWorkload(ctx context.Context, recorder *flame.Recorder) error {
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	for {
		if err := recorder.Start(); err != nil {
			return fmt.Errorf("start recorder: %w", err)
		}

		workload(cfg.depth)

		if err := recorder.Stop(); err != nil {
			return fmt.Errorf("stop recorder: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
