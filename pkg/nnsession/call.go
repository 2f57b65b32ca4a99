package nnsession

import (
	"context"
	"time"

	"github.com/psichix/opennn-go/pkg/nnwire"
)

// Call is one in-flight request. It settles exactly once: with the server's
// response, the server's error, or a local failure such as a timeout or the
// connection closing.
type Call struct {
	Token string
	Type  string

	s       *Session
	started time.Time
	timer   *time.Timer
	done    chan struct{}
	resp    *nnwire.Response
	err     error
}

// Done is closed when the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the settled outcome. It must only be called after Done is
// closed.
func (c *Call) Result() (*nnwire.Response, error) {
	return c.resp, c.err
}

// Wait blocks until the call settles. If ctx ends first the call is abandoned
// with ctx's error, unless a response won the race.
func (c *Call) Wait(ctx context.Context) (*nnwire.Response, error) {
	select {
	case <-c.done:
		return c.resp, c.err
	case <-ctx.Done():
		c.s.fail(c.Token, ctx.Err())
		<-c.done
		return c.resp, c.err
	}
}

// stopTimer must be called with the session lock held.
func (c *Call) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
	}
}
