package flame

import (
	"github.com/go-stack/stack"
	"github.com/peterbourgon/flame/flamebuf"
	"github.com/peterbourgon/flame/internal/flamedebug"
)

// frame is the metadata of an instrumented function.
type frame struct {
	pkg  string
	file string
	line int
	name string
}

// Span is returned by Enter and closed by Exit. The zero value is valid and
// does nothing.
type Span struct {
	h  *hook
	fr frame
}

// Enter reports a call of the calling function to the installed hook, if any,
// and returns a span whose Exit method reports the matching return. It's meant
// to be used as the first statement of an instrumented function.
//
//	defer flame.Enter().Exit()
//
//go:noinline
func Enter() Span {
	h := installed.Load()
	if h == nil {
		return Span{}
	}

	flamedebug.Hook.Fired.Add(1)

	fr, ok := callerFrame(2)
	if !ok {
		flamedebug.Hook.Recovered.Add(1)
		return Span{}
	}

	if !h.fire(flamebuf.Open, &fr) {
		return Span{}
	}

	return Span{h: h, fr: fr}
}

// Exit reports the return of the function that called Enter. It must be
// deferred directly, as in the Enter example. If the function is panicking,
// no return is recorded, and the panic continues with its original value.
// Exit does this by recovering and panicking again, so crash output shows the
// panic as "[recovered]" and re-raised from Exit. The frames of the function
// that originally panicked remain in the goroutine trace, below Exit.
//
// A span outlives its session when the recorder is stopped before the
// function returns; in that case, Exit does nothing.
func (s Span) Exit() {
	if s.h == nil {
		return
	}

	if r := recover(); r != nil {
		panic(r)
	}

	if installed.Load() != s.h {
		flamedebug.Hook.Stale.Add(1)
		return
	}

	flamedebug.Hook.Fired.Add(1)

	s.h.fire(flamebuf.Close, &s.fr)
}

// callerFrame resolves the frame skip levels above it. Any failure is
// reported as !ok, never as a panic.
func callerFrame(skip int) (fr frame, ok bool) {
	defer func() {
		if recover() != nil {
			fr, ok = frame{}, false
		}
	}()

	rf := stack.Caller(skip).Frame()
	if rf.Function == "" {
		return frame{}, false
	}

	line := rf.Line
	if rf.Func != nil {
		if _, first := rf.Func.FileLine(rf.Entry); first > 0 {
			line = first
		}
	}

	return frame{
		pkg:  packagePath(rf.Function),
		file: rf.File,
		line: line,
		name: rf.Function,
	}, true
}
