package flame

import (
	"go.uber.org/multierr"
)

// Track records a session around fn, and exports it to path as a speedscope
// profile when fn returns. The session is stopped and exported even if fn
// panics, in which case the panic continues after the export.
//
// The returned error combines the error from fn with any error from stopping
// or exporting the session.
//
//	err := flame.Track("profile.json", func() error {
//	    return run(ctx)
//	})
func Track(path string, fn func() error, opts ...Option) (err error) {
	r := NewRecorder(opts...)
	if err := r.Start(); err != nil {
		return err
	}

	defer func() {
		stopErr := r.Stop()
		_, exportErr := r.Export(path)
		err = multierr.Combine(err, stopErr, exportErr)
	}()

	return fn()
}
