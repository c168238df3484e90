package flamebuf_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/peterbourgon/flame/flamebuf"
)

func makeBuffer(t *testing.T) *flamebuf.Buffer {
	t.Helper()

	b := flamebuf.NewBuffer("test")
	b.Append(100, flamebuf.Open, "main.go", 10, "main.f")
	b.Append(110, flamebuf.Open, "main.go", 20, "main.g")
	b.Append(140, flamebuf.Close, "main.go", 20, "main.g")
	b.Append(150, flamebuf.Open, "main.go", 20, "main.g")
	b.Append(160, flamebuf.Close, "main.go", 20, "main.g")
	b.Append(200, flamebuf.Close, "main.go", 10, "main.f")
	return b
}

func TestBufferRecords(t *testing.T) {
	t.Parallel()

	b := makeBuffer(t)

	if want, have := 6, b.Len(); want != have {
		t.Fatalf("Len: want %d, have %d", want, have)
	}

	records := b.Records()
	want := []flamebuf.Record{
		{At: 100, Kind: flamebuf.Open, File: "main.go", Line: 10, Name: "main.f"},
		{At: 110, Kind: flamebuf.Open, File: "main.go", Line: 20, Name: "main.g"},
		{At: 140, Kind: flamebuf.Close, File: "main.go", Line: 20, Name: "main.g"},
		{At: 150, Kind: flamebuf.Open, File: "main.go", Line: 20, Name: "main.g"},
		{At: 160, Kind: flamebuf.Close, File: "main.go", Line: 20, Name: "main.g"},
		{At: 200, Kind: flamebuf.Close, File: "main.go", Line: 10, Name: "main.f"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("Records: %s", diff)
	}

	records[0].Name = "mutated"
	if want, have := "main.f", b.Records()[0].Name; want != have {
		t.Errorf("Records didn't return a copy: want %q, have %q", want, have)
	}

	first, last := b.Span()
	if want, have := [2]int64{100, 200}, [2]int64{first, last}; want != have {
		t.Errorf("Span: want %v, have %v", want, have)
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		kind  flamebuf.Kind
		want  string
		valid bool
	}{
		{flamebuf.Open, "O", true},
		{flamebuf.Close, "C", true},
		{0, "Kind(0)", false},
		{7, "Kind(7)", false},
	} {
		if want, have := tc.want, tc.kind.String(); want != have {
			t.Errorf("String: want %q, have %q", want, have)
		}
		if want, have := tc.valid, tc.kind.Valid(); want != have {
			t.Errorf("%s: Valid: want %v, have %v", tc.want, want, have)
		}
	}
}

func TestWriteSpeedscope(t *testing.T) {
	t.Parallel()

	b := makeBuffer(t)

	var buf bytes.Buffer
	if err := b.WriteSpeedscope(&buf); err != nil {
		t.Fatal(err)
	}

	var file struct {
		Schema string `json:"$schema"`
		Shared struct {
			Frames []struct {
				Name string `json:"name"`
				File string `json:"file"`
				Line int    `json:"line"`
				Col  int    `json:"col"`
			} `json:"frames"`
		} `json:"shared"`
		Profiles []struct {
			Type       string `json:"type"`
			Name       string `json:"name"`
			Unit       string `json:"unit"`
			StartValue int64  `json:"startValue"`
			EndValue   int64  `json:"endValue"`
			Events     []struct {
				Type  string `json:"type"`
				At    int64  `json:"at"`
				Frame int    `json:"frame"`
			} `json:"events"`
		} `json:"profiles"`
	}
	if err := json.Unmarshal(buf.Bytes(), &file); err != nil {
		t.Fatal(err)
	}

	if want, have := flamebuf.SpeedscopeSchema, file.Schema; want != have {
		t.Errorf("schema: want %q, have %q", want, have)
	}

	if want, have := 2, len(file.Shared.Frames); want != have {
		t.Fatalf("frames: want %d, have %d", want, have)
	}
	if want, have := "main.g", file.Shared.Frames[1].Name; want != have {
		t.Errorf("frame 1: want %q, have %q", want, have)
	}

	if want, have := 1, len(file.Profiles); want != have {
		t.Fatalf("profiles: want %d, have %d", want, have)
	}

	p := file.Profiles[0]
	if want, have := "evented", p.Type; want != have {
		t.Errorf("type: want %q, have %q", want, have)
	}
	if want, have := "nanoseconds", p.Unit; want != have {
		t.Errorf("unit: want %q, have %q", want, have)
	}
	if want, have := int64(100), p.StartValue; want != have {
		t.Errorf("startValue: want %d, have %d", want, have)
	}
	if want, have := int64(200), p.EndValue; want != have {
		t.Errorf("endValue: want %d, have %d", want, have)
	}
	if want, have := b.Len(), len(p.Events); want != have {
		t.Fatalf("events: want %d, have %d", want, have)
	}

	var types []string
	var frames []int
	for _, ev := range p.Events {
		types = append(types, ev.Type)
		frames = append(frames, ev.Frame)
	}
	if diff := cmp.Diff([]string{"O", "O", "C", "O", "C", "C"}, types); diff != "" {
		t.Errorf("event types: %s", diff)
	}
	if diff := cmp.Diff([]int{0, 1, 1, 1, 1, 0}, frames); diff != "" {
		t.Errorf("event frames: %s", diff)
	}
}

func TestWriteSpeedscopeEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := flamebuf.NewBuffer("empty").WriteSpeedscope(&buf); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{`"frames":[]`, `"events":[]`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output doesn't contain %s: %s", want, buf.String())
		}
	}
}

func TestReadSpeedscope(t *testing.T) {
	t.Parallel()

	b := makeBuffer(t)

	var buf bytes.Buffer
	if err := b.WriteSpeedscope(&buf); err != nil {
		t.Fatal(err)
	}

	decoded, err := flamebuf.ReadSpeedscope(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if want, have := b.Name(), decoded.Name(); want != have {
		t.Errorf("Name: want %q, have %q", want, have)
	}
	if diff := cmp.Diff(b.Records(), decoded.Records()); diff != "" {
		t.Errorf("Records: %s", diff)
	}
}

func TestReadSpeedscopeErrors(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "invalid JSON",
			input: `{`,
			want:  "decode speedscope",
		},
		{
			name:  "no evented profile",
			input: `{"shared":{"frames":[]},"profiles":[{"type":"sampled"}]}`,
			want:  "no evented profile",
		},
		{
			name:  "bad event type",
			input: `{"shared":{"frames":[{"name":"f"}]},"profiles":[{"type":"evented","events":[{"type":"X","at":1,"frame":0}]}]}`,
			want:  `invalid event type "X"`,
		},
		{
			name:  "frame out of range",
			input: `{"shared":{"frames":[{"name":"f"}]},"profiles":[{"type":"evented","events":[{"type":"O","at":1,"frame":3}]}]}`,
			want:  "frame 3 out of range",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := flamebuf.ReadSpeedscope(strings.NewReader(tc.input))
			if err == nil {
				t.Fatalf("want error, have none")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("want error containing %q, have %q", tc.want, err.Error())
			}
		})
	}
}

func TestExportJSON(t *testing.T) {
	t.Parallel()

	var (
		b   = makeBuffer(t)
		dir = t.TempDir()
		p1  = filepath.Join(dir, "one.json")
		p2  = filepath.Join(dir, "two.json")
	)

	n, err := b.ExportJSON(p1, flamebuf.FormatSpeedscope)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := b.Len(), n; want != have {
		t.Errorf("ExportJSON count: want %d, have %d", want, have)
	}

	if _, err := b.ExportJSON(p2, flamebuf.FormatSpeedscope); err != nil {
		t.Fatal(err)
	}

	d1, err := os.ReadFile(p1)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := os.ReadFile(p2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(d1, d2) {
		t.Errorf("exports differ:\n%s\n%s", d1, d2)
	}

	decoded, err := flamebuf.ReadFile(p1)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := b.Len(), decoded.Len(); want != have {
		t.Errorf("decoded Len: want %d, have %d", want, have)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 2, len(entries); want != have {
		t.Errorf("directory entries: want %d, have %d (temp files left behind?)", want, have)
	}
}

func TestExportJSONError(t *testing.T) {
	t.Parallel()

	var (
		b    = makeBuffer(t)
		path = filepath.Join(t.TempDir(), "missing", "out.json")
	)

	n, err := b.ExportJSON(path, flamebuf.FormatSpeedscope)
	if err == nil {
		t.Fatalf("want error, have none")
	}
	if want, have := 0, n; want != have {
		t.Errorf("count: want %d, have %d", want, have)
	}

	var exportErr *flamebuf.ExportError
	if !errors.As(err, &exportErr) {
		t.Fatalf("want *ExportError, have %T", err)
	}
	if want, have := path, exportErr.Path; want != have {
		t.Errorf("Path: want %q, have %q", want, have)
	}

	if want, have := 6, b.Len(); want != have {
		t.Errorf("Len after failed export: want %d, have %d", want, have)
	}

	retry := filepath.Join(filepath.Dir(filepath.Dir(path)), "out.json")
	if _, err := b.ExportJSON(retry, flamebuf.FormatSpeedscope); err != nil {
		t.Errorf("retry: %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		input string
		want  flamebuf.Format
		err   bool
	}{
		{"", flamebuf.FormatSpeedscope, false},
		{"speedscope", flamebuf.FormatSpeedscope, false},
		{" Chrome ", flamebuf.FormatChrome, false},
		{"perfetto", flamebuf.FormatChrome, false},
		{"pprof", "", true},
	} {
		have, err := flamebuf.ParseFormat(tc.input)
		if want, have := tc.err, err != nil; want != have {
			t.Errorf("%q: want error %v, have %v", tc.input, want, err)
		}
		if want := tc.want; want != have {
			t.Errorf("%q: want %q, have %q", tc.input, want, have)
		}
	}
}

func TestRecordJSON(t *testing.T) {
	t.Parallel()

	rec := flamebuf.Record{At: 42, Kind: flamebuf.Close, File: "a.go", Line: 7, Name: "pkg.f"}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if want, have := `{"at":42,"type":"C","file":"a.go","line":7,"name":"pkg.f"}`, string(data); want != have {
		t.Errorf("want %s, have %s", want, have)
	}

	var decoded flamebuf.Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if want, have := rec, decoded; want != have {
		t.Errorf("want %v, have %v", want, have)
	}

	if _, err := json.Marshal(flamebuf.Record{}); err == nil {
		t.Errorf("want error marshaling zero kind, have none")
	}
}

func TestWriteSpeedscopeUnbalanced(t *testing.T) {
	t.Parallel()

	b := flamebuf.NewBuffer("unbalanced")
	b.Append(10, flamebuf.Open, "main.go", 10, "main.f")
	b.Append(20, flamebuf.Open, "main.go", 20, "main.boom")
	b.Append(30, flamebuf.Close, "main.go", 10, "main.f")

	var buf bytes.Buffer
	if err := b.WriteSpeedscope(&buf); err != nil {
		t.Fatal(err)
	}

	decoded, err := flamebuf.ReadSpeedscope(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(b.Records(), decoded.Records()); diff != "" {
		t.Errorf("records weren't written verbatim: %s", diff)
	}
}
