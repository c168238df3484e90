package main

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/flame/flamebuf"
	"github.com/peterbourgon/flame/flameweb"
	"go.uber.org/zap"
)

type streamConfig struct {
	*rootConfig

	sendBuf       int
	recvBuf       int
	statsInterval time.Duration
	retryInterval time.Duration
}

func (cfg *streamConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "send-buffer" /*    */, Value: ffval.NewValueDefault(&cfg.sendBuf, 1000) /*                 */, Usage: "remote send buffer size"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "recv-buffer" /*    */, Value: ffval.NewValueDefault(&cfg.recvBuf, 1000) /*                 */, Usage: "local receive buffer size"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "stats-interval" /* */, Value: ffval.NewValueDefault(&cfg.statsInterval, 10*time.Second) /* */, Usage: "stats reporting interval"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "retry-interval" /* */, Value: ffval.NewValueDefault(&cfg.retryInterval, 1*time.Second) /*  */, Usage: "connection retry interval"})
}

func (cfg *streamConfig) Exec(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("exactly one URL is required")
	}

	client := &flameweb.StreamClient{
		URI:           args[0],
		SendBuffer:    cfg.sendBuf,
		RetryInterval: cfg.retryInterval,
		StatsInterval: cfg.statsInterval,
		Logger:        cfg.logger,
		OnStats: func(stats flameweb.StreamServerStats) {
			cfg.logger.Info("stream stats", zap.Uint64("sends", stats.Sends), zap.Uint64("drops", stats.Drops))
		},
	}

	records := make(chan flamebuf.Record, cfg.recvBuf)

	var g run.Group

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return client.Stream(ctx, records)
		}, func(error) {
			cancel()
		})
	}

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case rec := <-records:
					fmt.Fprintln(cfg.stdout, rec)
				}
			}
		}, func(error) {
			cancel()
		})
	}

	{
		g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	}

	return g.Run()
}
