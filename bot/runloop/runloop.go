// Package runloop serializes mutating supervisor operations onto a single
// goroutine. Telegram handlers, the watchdog and the HTTP surface all submit
// closures here instead of taking locks on shared session state.
package runloop

import (
	"context"
	"errors"
	"time"

	"github.com/telefoot/telefoot-bot/core/logger"
	"log/slog"
)

// ErrStopped reports a submit against a loop that is no longer running.
var ErrStopped = errors.New("runloop: loop stopped")

type command struct {
	name string
	fn   func(context.Context) error
	done chan error
}

// Loop is the single-writer command loop. One goroutine calls Run; any number
// of goroutines call Submit and block until their closure has executed.
type Loop struct {
	cmds    chan command
	stopped chan struct{}
}

func New(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 16
	}
	return &Loop{
		cmds:    make(chan command, buffer),
		stopped: make(chan struct{}),
	}
}

// Run executes submitted commands in arrival order until ctx is cancelled.
// stopped is closed before the final drain so that a Submit racing the
// shutdown either gets drained or observes the closed channel; commands
// already queued at cancellation are failed with ErrStopped so their
// submitters unblock.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(l.stopped)
			l.drain()
			return
		case cmd := <-l.cmds:
			l.execute(ctx, cmd)
		}
	}
}

func (l *Loop) execute(ctx context.Context, cmd command) {
	start := time.Now()
	err := cmd.fn(ctx)
	if err != nil {
		logger.Warn(ctx, "runloop", "runloop.command_failed",
			slog.String("command", cmd.name),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
			slog.String("err", err.Error()),
		)
	} else {
		logger.Debug(ctx, "runloop", "runloop.command_done",
			slog.String("command", cmd.name),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	cmd.done <- err
}

func (l *Loop) drain() {
	for {
		select {
		case cmd := <-l.cmds:
			cmd.done <- ErrStopped
		default:
			return
		}
	}
}

// Submit runs fn on the loop goroutine and waits for its result. It returns
// ctx.Err when the caller gives up first and ErrStopped when the loop has
// shut down.
func (l *Loop) Submit(ctx context.Context, name string, fn func(context.Context) error) error {
	cmd := command{name: name, fn: fn, done: make(chan error, 1)}
	select {
	case l.cmds <- cmd:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-l.stopped:
		// The loop shut down after the enqueue won the race above. The
		// command may still have been executed or drained, so prefer its
		// result when one is already there.
		select {
		case err := <-cmd.done:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
