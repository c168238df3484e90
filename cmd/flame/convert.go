package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/flame/flamebuf"
	"github.com/peterbourgon/flame/internal/flameutil"
	"go.uber.org/zap"
)

type convertConfig struct {
	*rootConfig

	output string
	format string
}

func (cfg *convertConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'o', LongName: "output", Value: ffval.NewValue(&cfg.output), Usage: "output file (default: FILE with a .trace.json suffix)", Placeholder: "FILE"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "format", Value: ffval.NewEnum(&cfg.format, "chrome", "speedscope"), Usage: "output format: chrome, speedscope", Placeholder: "FORMAT"})
}

func (cfg *convertConfig) Exec(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("exactly one FILE is required")
	}

	input := args[0]

	format, err := flamebuf.ParseFormat(cfg.format)
	if err != nil {
		return err
	}

	output := cfg.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".trace.json"
	}
	if filepath.Clean(output) == filepath.Clean(input) {
		return fmt.Errorf("output would overwrite input %s", input)
	}

	buf, err := flamebuf.ReadFile(input)
	if err != nil {
		return err
	}

	n, err := buf.ExportJSON(output, format)
	if err != nil {
		return err
	}

	cfg.logger.Info("converted profile",
		zap.String("input", input),
		zap.String("output", output),
		zap.String("format", string(format)),
		zap.String("size", flameutil.HumanizeBytes(fileSize(output))),
	)
	fmt.Fprintf(cfg.stdout, "%s: %d records (%s)\n", output, n, format)

	return nil
}
