package flamebuf

import (
	"fmt"
	"sort"
	"time"
)

// FrameStats summarizes the time spent in a single frame.
type FrameStats struct {
	Name  string        `json:"name"`
	File  string        `json:"file"`
	Line  int           `json:"line"`
	Calls int           `json:"calls"`
	Total time.Duration `json:"total"`
	Self  time.Duration `json:"self"`
}

// String implements fmt.Stringer.
func (fs FrameStats) String() string {
	return fmt.Sprintf("%s calls=%d total=%s self=%s", fs.Name, fs.Calls, fs.Total, fs.Self)
}

type openFrame struct {
	key   int
	at    int64
	child int64
}

// Summarize computes per-frame statistics from an ordered record sequence,
// sorted by self time, descending. Records are treated as a single call
// stack. Opens without a matching close are closed at the final timestamp,
// and closes without a matching open are ignored. Recursive frames count
// toward total time only once, for the outermost call.
func Summarize(records []Record) []FrameStats {
	var (
		stats   []FrameStats
		index   = map[string]int{}
		stack   []openFrame
		onstack = map[int]int{}
		last    int64
	)

	pop := func(at int64) {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		took := at - top.at
		if took < 0 {
			took = 0
		}
		self := took - top.child
		if self < 0 {
			self = 0
		}

		onstack[top.key]--
		fs := &stats[top.key]
		fs.Calls++
		fs.Self += time.Duration(self)
		if onstack[top.key] <= 0 {
			fs.Total += time.Duration(took)
		}

		if len(stack) > 0 {
			stack[len(stack)-1].child += took
		}
	}

	for i := range records {
		r := &records[i]
		last = r.At

		key := frameKey(r)
		idx, ok := index[key]
		if !ok {
			idx = len(stats)
			index[key] = idx
			stats = append(stats, FrameStats{Name: r.Name, File: r.File, Line: r.Line})
		}

		switch r.Kind {
		case Open:
			stack = append(stack, openFrame{key: idx, at: r.At})
			onstack[idx]++

		case Close:
			depth := -1
			for j := len(stack) - 1; j >= 0; j-- {
				if stack[j].key == idx {
					depth = j
					break
				}
			}
			if depth < 0 {
				continue // stray close
			}
			for len(stack) > depth {
				pop(r.At)
			}
		}
	}

	for len(stack) > 0 {
		pop(last)
	}

	result := stats[:0]
	for _, fs := range stats {
		if fs.Calls > 0 {
			result = append(result, fs)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		switch {
		case result[i].Self != result[j].Self:
			return result[i].Self > result[j].Self
		case result[i].Total != result[j].Total:
			return result[i].Total > result[j].Total
		default:
			return result[i].Name < result[j].Name
		}
	})

	return result
}
