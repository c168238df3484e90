// Package flamebuf accumulates ordered call/return records and encodes them
// as flamegraph-compatible JSON profiles.
//
// A [Buffer] is a plain append-only slice of [Record] values. It does no
// validation and no synchronization; callers that append from multiple
// goroutines, like [github.com/peterbourgon/flame.Recorder], must serialize
// access themselves.
package flamebuf

import (
	"fmt"
)

// Kind tags a record as a function entry or exit.
type Kind uint8

const (
	// Open marks a function call.
	Open Kind = iota + 1

	// Close marks a function return.
	Close
)

// Valid returns true for Open and Close.
func (k Kind) Valid() bool {
	return k == Open || k == Close
}

// String returns the speedscope event type for the kind, "O" or "C".
func (k Kind) String() string {
	switch k {
	case Open:
		return "O"
	case Close:
		return "C"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	kind, err := parseKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "O":
		return Open, nil
	case "C":
		return Close, nil
	default:
		return 0, fmt.Errorf("invalid event type %q", s)
	}
}

// Record is a single observed call or return.
type Record struct {
	At   int64  `json:"at"`   // nanoseconds, monotonic
	Kind Kind   `json:"type"` // "O" or "C" in JSON
	File string `json:"file"` // source file of the function
	Line int    `json:"line"` // first line of the function
	Name string `json:"name"` // fully qualified function name
}

// String implements fmt.Stringer.
func (r Record) String() string {
	return fmt.Sprintf("%d %s %s (%s:%d)", r.At, r.Kind, r.Name, r.File, r.Line)
}

// Buffer is an ordered sequence of records with a profile name.
type Buffer struct {
	name    string
	records []Record
}

// NewBuffer returns an empty buffer. The name is used as the profile name in
// exported files.
func NewBuffer(name string) *Buffer {
	return &Buffer{
		name: name,
	}
}

// Name returns the profile name.
func (b *Buffer) Name() string {
	return b.name
}

// Append adds a record to the end of the buffer.
func (b *Buffer) Append(at int64, kind Kind, file string, line int, name string) {
	b.records = append(b.records, Record{
		At:   at,
		Kind: kind,
		File: file,
		Line: line,
		Name: name,
	})
}

// Len returns the number of records in the buffer.
func (b *Buffer) Len() int {
	return len(b.records)
}

// Records returns a copy of the records in the buffer.
func (b *Buffer) Records() []Record {
	records := make([]Record, len(b.records))
	copy(records, b.records)
	return records
}

// Span returns the first and last timestamps in the buffer, or zeroes if the
// buffer is empty.
func (b *Buffer) Span() (first, last int64) {
	if len(b.records) <= 0 {
		return 0, 0
	}
	return b.records[0].At, b.records[len(b.records)-1].At
}

// Clone returns a copy of the buffer that shares no state with the original.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		name:    b.name,
		records: b.Records(),
	}
}
