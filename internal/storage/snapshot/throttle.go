package snapshot

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// rateWriter paces writes to w through limiter, one burst at a time.
type rateWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

func (r *rateWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), r.limiter.Burst())
		if err := r.limiter.WaitN(r.ctx, n); err != nil {
			return written, err
		}
		m, err := r.w.Write(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
