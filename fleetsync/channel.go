package fleetsync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// DefaultExecTimeout bounds a single command round trip when the caller's
// context carries no deadline of its own.
const DefaultExecTimeout = 5 * time.Second

// responseTerminator ends every response; payload lines never contain it.
const responseTerminator = "."

// Dialer opens a connection to an instance's command socket.
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// TextChannel speaks the line-oriented command protocol over a fresh
// connection per call. A request is a single line; the response is a
// status line followed by zero or more payload lines and a terminating
// "." line.
type TextChannel struct {
	dial    Dialer
	timeout time.Duration
	log     *slog.Logger
}

// NewTextChannel creates a channel dialing with the standard net.Dialer.
func NewTextChannel(timeout time.Duration, log *slog.Logger) *TextChannel {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	d := &net.Dialer{}
	return &TextChannel{dial: d.DialContext, timeout: timeout, log: log}
}

// NewTextChannelWithDialer creates a channel with a custom dialer.
func NewTextChannelWithDialer(dial Dialer, timeout time.Duration, log *slog.Logger) *TextChannel {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	return &TextChannel{dial: dial, timeout: timeout, log: log}
}

// Exec sends one command line to the instance and returns the response
// lines up to, but not including, the terminator. The first returned line
// is the status line. Deadline overruns surface as ErrChannelTimeout so
// callers can always tell a dead or slow instance from one that answered
// with a rejection.
func (c *TextChannel) Exec(ctx context.Context, instance interfaces.InstanceInfo, command string) ([]string, error) {
	if err := instance.Validate(); err != nil {
		return nil, err
	}
	if command == "" {
		return nil, fmt.Errorf("%w: empty command", interfaces.ErrInvalidArgument)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	conn, err := c.dial(ctx, instance.Network, instance.Addr)
	if err != nil {
		return nil, c.mapNetErr(instance, "dial", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline on %s: %w", instance.Name, err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return nil, c.mapNetErr(instance, "write", err)
	}

	var lines []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == responseTerminator {
			return lines, nil
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, c.mapNetErr(instance, "read", err)
	}
	return nil, fmt.Errorf("instance %s closed the channel mid-response", instance.Name)
}

func (c *TextChannel) mapNetErr(instance interfaces.InstanceInfo, op string, err error) error {
	var nerr net.Error
	timedOut := errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &nerr) && nerr.Timeout())
	if timedOut {
		c.log.Debug("command channel timeout",
			slog.String("instance", instance.Name),
			slog.String("op", op))
		return fmt.Errorf("%w: %s %s: %v", interfaces.ErrChannelTimeout, op, instance.Name, err)
	}
	return fmt.Errorf("%s %s: %w", op, instance.Name, err)
}
