package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/peterbourgon/flame/flamebuf"
	"github.com/peterbourgon/flame/internal/flameutil"
)

type summaryConfig struct {
	*rootConfig

	limit int
}

func (cfg *summaryConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'n', LongName: "limit", Value: ffval.NewValueDefault(&cfg.limit, 10), Usage: "maximum number of frames to print"})
}

func (cfg *summaryConfig) Exec(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("exactly one FILE is required")
	}

	buf, err := flamebuf.ReadFile(args[0])
	if err != nil {
		return err
	}

	var (
		records     = buf.Records()
		stats       = flamebuf.Summarize(records)
		first, last = buf.Span()
		duration    = time.Duration(last - first)
	)

	if cfg.limit > 0 && len(stats) > cfg.limit {
		stats = stats[:cfg.limit]
	}

	fmt.Fprintf(cfg.stdout, "%s: %d records, %s\n\n", buf.Name(), len(records), flameutil.HumanizeDuration(duration))

	tw := tabwriter.NewWriter(cfg.stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "SELF\tSELF%%\tTOTAL\tCALLS\tFUNCTION\n")
	for _, fs := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			flameutil.HumanizeDuration(fs.Self),
			flameutil.HumanizePercent(fs.Self, duration),
			flameutil.HumanizeDuration(fs.Total),
			fs.Calls,
			fs.Name,
		)
	}
	return tw.Flush()
}
