package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterbourgon/flame/flamebuf"
)

func TestDemoSummaryConvert(t *testing.T) {
	var (
		ctx     = context.Background()
		dir     = t.TempDir()
		profile = filepath.Join(dir, "demo.json")
		trace   = filepath.Join(dir, "demo.trace.json")
	)

	{
		var stdout, stderr bytes.Buffer
		if err := exec(ctx, nil, &stdout, &stderr, []string{"demo", "-o", profile, "--depth", "2", "--log", "none"}); err != nil {
			t.Fatalf("demo: %v (%s)", err, stderr.String())
		}
		if want, have := profile+": 80 records (speedscope)", strings.TrimSpace(stdout.String()); want != have {
			t.Errorf("demo: want %q, have %q", want, have)
		}

		buf, err := flamebuf.ReadFile(profile)
		if err != nil {
			t.Fatal(err)
		}
		if want, have := "flame demo", buf.Name(); want != have {
			t.Errorf("profile name: want %q, have %q", want, have)
		}
		if want, have := 80, buf.Len(); want != have {
			t.Errorf("profile records: want %d, have %d", want, have)
		}
	}

	{
		var stdout, stderr bytes.Buffer
		if err := exec(ctx, nil, &stdout, &stderr, []string{"summary", "-n", "3", profile}); err != nil {
			t.Fatalf("summary: %v (%s)", err, stderr.String())
		}
		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		if want, have := 1+1+1+3, len(lines); want != have {
			t.Fatalf("summary: want %d lines, have %d:\n%s", want, have, stdout.String())
		}
		if !strings.Contains(stdout.String(), "main.walk") {
			t.Errorf("summary doesn't mention main.walk:\n%s", stdout.String())
		}
	}

	{
		var stdout, stderr bytes.Buffer
		if err := exec(ctx, nil, &stdout, &stderr, []string{"convert", profile}); err != nil {
			t.Fatalf("convert: %v (%s)", err, stderr.String())
		}
		data, err := os.ReadFile(trace)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Contains(data, []byte(`"traceEvents"`)) {
			t.Errorf("converted file isn't a Chrome trace")
		}
	}
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{"depth", []string{"demo", "--depth", "99"}, "invalid depth"},
		{"summary args", []string{"summary"}, "exactly one FILE"},
		{"summary missing", []string{"summary", "/does/not/exist.json"}, "exist.json"},
		{"convert overwrite", []string{"convert", "-o", "x.json", "x.json"}, "overwrite"},
		{"stream args", []string{"stream"}, "exactly one URL"},
		{"stream flags", []string{"stream", "--send-buffer", "5", "--recv-buffer", "5", "--stats-interval", "2s"}, "exactly one URL"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := exec(ctx, nil, &stdout, &stderr, tc.args)
			if err == nil {
				t.Fatalf("want error, have none")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("want error containing %q, have %q", tc.want, err.Error())
			}
		})
	}
}

func TestHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := exec(context.Background(), nil, &stdout, &stderr, []string{"--help"}); err != nil {
		t.Fatalf("want no error, have %v", err)
	}
	for _, want := range []string{"demo", "summary", "convert", "serve", "stream"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("help doesn't mention %s", want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"d", "debug", "i", "info", "w", "warn", "e", "error", "n", "none"} {
		if _, err := newLogger(level, &bytes.Buffer{}); err != nil {
			t.Errorf("%s: %v", level, err)
		}
	}

	if _, err := newLogger("verbose", &bytes.Buffer{}); err == nil {
		t.Errorf("verbose: want error, have none")
	}

	var buf bytes.Buffer
	logger, err := newLogger("warn", &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("visible")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "visible") {
		t.Errorf("unexpected log output %q", buf.String())
	}
}
