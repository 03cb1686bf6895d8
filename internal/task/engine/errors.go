package engine

import "errors"

var (
	ErrDisabled    = errors.New("task engine disabled")
	ErrStopped     = errors.New("task engine stopped")
	ErrQueueFull   = errors.New("task engine queue full")
	ErrOverlapSkip = errors.New("task already queued or running")
)

// NoRetry makes the engine give up on err after the current attempt. The
// recorded error is err itself.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err}
}

func IsNoRetry(err error) bool {
	var p *permanent
	return errors.As(err, &p)
}

type permanent struct{ error }

func (p *permanent) Unwrap() error { return p.error }
