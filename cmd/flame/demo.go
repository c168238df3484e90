package main

import (
	"context"
	"fmt"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/flame"
	"github.com/peterbourgon/flame/flamebuf"
	"go.uber.org/zap"
)

type demoConfig struct {
	*rootConfig

	output string
	format string
	depth  int
}

func (cfg *demoConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'o', LongName: "output" /* */, Value: ffval.NewValueDefault(&cfg.output, "flame.json") /*                     */, Usage: "output file", Placeholder: "FILE"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "format" /* */, Value: ffval.NewEnum(&cfg.format, "speedscope", "chrome") /*                    */, Usage: "output format: speedscope, chrome", Placeholder: "FORMAT"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "depth" /*  */, Value: ffval.NewValueDefault(&cfg.depth, 4) /*                                 */, Usage: "call tree depth of the sample workload"})
}

func (cfg *demoConfig) Exec(ctx context.Context, args []string) error {
	format, err := flamebuf.ParseFormat(cfg.format)
	if err != nil {
		return err
	}

	if cfg.depth < 0 || cfg.depth > 16 {
		return fmt.Errorf("invalid depth %d (0..16)", cfg.depth)
	}

	recorder := flame.NewRecorder(flame.WithName("flame demo"), flame.WithLogger(cfg.logger))

	if err := recorder.Start(); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}

	report := workload(cfg.depth)

	if err := recorder.Stop(); err != nil {
		return fmt.Errorf("stop recorder: %w", err)
	}

	n, err := recorder.ExportFormat(cfg.output, format)
	if err != nil {
		return err
	}

	cfg.logger.Debug("workload finished", zap.Int("bytes", len(report)))
	fmt.Fprintf(cfg.stdout, "%s: %d records (%s)\n", cfg.output, n, format)

	return nil
}
