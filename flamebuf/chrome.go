package flamebuf

import (
	"encoding/json"
	"fmt"
	"io"
)

// The Chrome trace event format, duration events only. See
// https://docs.google.com/document/d/1CvAClvFfyA5R-PhYUmn5OOQtYMH4h6I0nSsKchNAySU.

type chromeFile struct {
	TraceEvents     []chromeEvent     `json:"traceEvents"`
	DisplayTimeUnit string            `json:"displayTimeUnit"`
	OtherData       map[string]string `json:"otherData,omitempty"`
}

type chromeEvent struct {
	Name string         `json:"name"`
	Cat  string         `json:"cat"`
	Ph   string         `json:"ph"`
	Ts   float64        `json:"ts"` // microseconds
	Pid  int            `json:"pid"`
	Tid  int            `json:"tid"`
	Args chromeEventArg `json:"args"`
}

type chromeEventArg struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

func chromePhase(k Kind) string {
	if k == Open {
		return "B"
	}
	return "E"
}

// WriteChromeTrace writes the buffer to w in the Chrome trace event format, as
// consumed by chrome://tracing and Perfetto. Open records become "B" events,
// Close records become "E" events.
func (b *Buffer) WriteChromeTrace(w io.Writer) error {
	events := make([]chromeEvent, 0, len(b.records))
	for _, r := range b.records {
		events = append(events, chromeEvent{
			Name: r.Name,
			Cat:  "function",
			Ph:   chromePhase(r.Kind),
			Ts:   float64(r.At) / 1e3,
			Pid:  1,
			Tid:  1,
			Args: chromeEventArg{File: r.File, Line: r.Line},
		})
	}

	f := chromeFile{
		TraceEvents:     events,
		DisplayTimeUnit: "ns",
	}
	if b.name != "" {
		f.OtherData = map[string]string{"name": b.name}
	}

	if err := json.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("encode chrome trace: %w", err)
	}
	return nil
}
