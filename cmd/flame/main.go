// flame records call profiles and serves them over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

func main() {
	var (
		ctx    = context.Background()
		stdin  = os.Stdin
		stdout = os.Stdout
		stderr = os.Stderr
		args   = os.Args[1:]
	)
	err := exec(ctx, stdin, stdout, stderr, args)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.As(err, &(run.SignalError{})):
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func exec(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) (err error) {
	rootConfig := &rootConfig{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	rootFlags := ff.NewFlagSet("flame")
	rootConfig.register(rootFlags)

	rootCommand := &ff.Command{
		Name:      "flame",
		ShortHelp: "record and serve call profiles",
		Flags:     rootFlags,
	}

	// Config for `flame demo`.
	demoConfig := &demoConfig{rootConfig: rootConfig}
	demoFlags := ff.NewFlagSet("demo").SetParent(rootFlags)
	demoConfig.register(demoFlags)
	demoCommand := &ff.Command{
		Name:      "demo",
		ShortHelp: "record a sample workload",
		LongHelp:  "Run an instrumented sample workload under a recorder, and export the profile.",
		Flags:     demoFlags,
		Exec:      demoConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, demoCommand)

	// Config for `flame summary`.
	summaryConfig := &summaryConfig{rootConfig: rootConfig}
	summaryFlags := ff.NewFlagSet("summary").SetParent(rootFlags)
	summaryConfig.register(summaryFlags)
	summaryCommand := &ff.Command{
		Name:      "summary",
		Usage:     "flame summary [FLAGS] FILE",
		ShortHelp: "print the top frames of a profile by self time",
		Flags:     summaryFlags,
		Exec:      summaryConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, summaryCommand)

	// Config for `flame convert`.
	convertConfig := &convertConfig{rootConfig: rootConfig}
	convertFlags := ff.NewFlagSet("convert").SetParent(rootFlags)
	convertConfig.register(convertFlags)
	convertCommand := &ff.Command{
		Name:      "convert",
		Usage:     "flame convert [FLAGS] FILE",
		ShortHelp: "convert a speedscope profile to another format",
		Flags:     convertFlags,
		Exec:      convertConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, convertCommand)

	// Config for `flame serve`.
	serveConfig := &serveConfig{rootConfig: rootConfig}
	serveFlags := ff.NewFlagSet("serve").SetParent(rootFlags)
	serveConfig.register(serveFlags)
	serveCommand := &ff.Command{
		Name:      "serve",
		Usage:     "flame serve [FLAGS] [FILE]",
		ShortHelp: "serve a profile over HTTP",
		LongHelp:  "Serve FILE over HTTP. Without FILE, record the sample workload in a loop, and serve the live profile and record stream.",
		Flags:     serveFlags,
		Exec:      serveConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, serveCommand)

	// Config for `flame stream`.
	streamConfig := &streamConfig{rootConfig: rootConfig}
	streamFlags := ff.NewFlagSet("stream").SetParent(rootFlags)
	streamConfig.register(streamFlags)
	streamCommand := &ff.Command{
		Name:      "stream",
		Usage:     "flame stream [FLAGS] URL",
		ShortHelp: "print live records from a flame server",
		Flags:     streamFlags,
		Exec:      streamConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, streamCommand)

	// Print help when appropriate.
	showHelp := true
	defer func() {
		errHelp := errors.Is(err, ff.ErrHelp) || errors.Is(err, ff.ErrNoExec)
		if showHelp || errHelp {
			fmt.Fprintf(stderr, "\n%s\n", ffhelp.Command(rootCommand))
		}
		if errHelp {
			err = nil
		}
	}()

	// Initial parsing.
	if err := rootCommand.Parse(args, ff.WithEnvVarPrefix("FLAME")); err != nil {
		return err
	}

	// Validation and set-up.
	logger, err := newLogger(rootConfig.logLevel, stderr)
	if err != nil {
		return err
	}
	defer logger.Sync()
	rootConfig.logger = logger

	// Run errors shouldn't show help by default.
	showHelp = false

	// Run the selected command.
	return rootCommand.Run(ctx)
}
