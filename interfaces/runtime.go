package interfaces

import (
	"context"
	"time"
)

// RuntimeChannel executes one command against a running instance's command
// socket and returns the raw response lines. Each call is a short blocking
// request/response bounded by the context deadline; a deadline overrun
// surfaces as ErrChannelTimeout, never as an instance rejection.
type RuntimeChannel interface {
	Exec(ctx context.Context, instance InstanceInfo, command string) ([]string, error)
}

// KeyEntry is one key identifier an instance self-reports as tracked,
// together with the instance's own description of it.
type KeyEntry struct {
	KeyID       KeyID
	Description string
}

// Clock supplies the current time to components whose behavior is
// time-gated. Injecting it keeps the rotation cooldown deterministically
// testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside of tests.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
