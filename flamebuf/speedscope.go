package flamebuf

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// SpeedscopeSchema is the JSON schema URL written to every speedscope file.
const SpeedscopeSchema = "https://www.speedscope.app/file-format-schema.json"

const speedscopeExporter = "flame"

// The speedscope file format, restricted to what an evented profile needs.
// See https://github.com/jlfwong/speedscope/wiki/Importing-from-custom-sources.

type speedscopeFile struct {
	Schema             string              `json:"$schema"`
	Shared             speedscopeShared    `json:"shared"`
	Profiles           []speedscopeProfile `json:"profiles"`
	Name               string              `json:"name,omitempty"`
	ActiveProfileIndex int                 `json:"activeProfileIndex"`
	Exporter           string              `json:"exporter,omitempty"`
}

type speedscopeShared struct {
	Frames []speedscopeFrame `json:"frames"`
}

type speedscopeFrame struct {
	Name string `json:"name"`
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
}

type speedscopeProfile struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Unit       string            `json:"unit"`
	StartValue int64             `json:"startValue"`
	EndValue   int64             `json:"endValue"`
	Events     []speedscopeEvent `json:"events"`
}

type speedscopeEvent struct {
	Type  string `json:"type"`
	At    int64  `json:"at"`
	Frame int    `json:"frame"`
}

// frameKey identifies a frame by file, line, and function name.
func frameKey(r *Record) string {
	return r.File + "-" + strconv.Itoa(r.Line) + "-" + r.Name
}

func (b *Buffer) makeSpeedscopeFile() speedscopeFile {
	var (
		frames = make([]speedscopeFrame, 0, 16)
		events = make([]speedscopeEvent, 0, len(b.records))
		index  = map[string]int{}
	)

	for i := range b.records {
		r := &b.records[i]
		key := frameKey(r)
		idx, ok := index[key]
		if !ok {
			idx = len(frames)
			index[key] = idx
			frames = append(frames, speedscopeFrame{
				Name: r.Name,
				File: r.File,
				Line: r.Line,
				Col:  1,
			})
		}
		events = append(events, speedscopeEvent{
			Type:  r.Kind.String(),
			At:    r.At,
			Frame: idx,
		})
	}

	first, last := b.Span()

	return speedscopeFile{
		Schema: SpeedscopeSchema,
		Shared: speedscopeShared{Frames: frames},
		Profiles: []speedscopeProfile{{
			Type:       "evented",
			Name:       b.name,
			Unit:       "nanoseconds",
			StartValue: first,
			EndValue:   last,
			Events:     events,
		}},
		Name:               b.name,
		ActiveProfileIndex: 0,
		Exporter:           speedscopeExporter,
	}
}

// WriteSpeedscope writes the buffer to w as a speedscope evented profile.
// Frames are interned in first-seen order, and every record becomes exactly
// one event, so the output is a pure function of the buffer contents.
//
// Records are written verbatim, without balancing. A buffer with an open that
// is never closed, like one from a function that panicked, or with records
// interleaved from several goroutines, produces a file that speedscope's
// evented importer may reject, because it requires every close to match the
// innermost open frame and every frame to be closed by the end. Summarize
// handles such buffers, and the Chrome trace format is more lenient.
func (b *Buffer) WriteSpeedscope(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(b.makeSpeedscopeFile()); err != nil {
		return fmt.Errorf("encode speedscope: %w", err)
	}
	return nil
}

// ReadSpeedscope decodes a speedscope file and returns a buffer containing the
// events of its active profile, or of its first evented profile if the active
// profile is not evented.
func ReadSpeedscope(r io.Reader) (*Buffer, error) {
	var f speedscopeFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode speedscope: %w", err)
	}

	p, err := f.eventedProfile()
	if err != nil {
		return nil, fmt.Errorf("decode speedscope: %w", err)
	}

	b := NewBuffer(p.Name)
	b.records = make([]Record, 0, len(p.Events))
	for i, ev := range p.Events {
		kind, err := parseKind(ev.Type)
		if err != nil {
			return nil, fmt.Errorf("decode speedscope: event %d: %w", i, err)
		}
		if ev.Frame < 0 || ev.Frame >= len(f.Shared.Frames) {
			return nil, fmt.Errorf("decode speedscope: event %d: frame %d out of range", i, ev.Frame)
		}
		fr := f.Shared.Frames[ev.Frame]
		b.Append(ev.At, kind, fr.File, fr.Line, fr.Name)
	}

	return b, nil
}

func (f *speedscopeFile) eventedProfile() (*speedscopeProfile, error) {
	if i := f.ActiveProfileIndex; i >= 0 && i < len(f.Profiles) && f.Profiles[i].Type == "evented" {
		return &f.Profiles[i], nil
	}
	for i := range f.Profiles {
		if f.Profiles[i].Type == "evented" {
			return &f.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf("no evented profile")
}
