package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// Schedule yields successive fire times.
type Schedule interface {
	Next(after time.Time) (time.Time, error)
}

type cronSchedule struct {
	expr string
}

// Cron parses a standard cron expression.
func Cron(expr string) (Schedule, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	return cronSchedule{expr: expr}, nil
}

func (c cronSchedule) Next(after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(c.expr, after, false)
}

func (c cronSchedule) String() string { return c.expr }

// Interval fires at a fixed period.
type Interval time.Duration

func (i Interval) Next(after time.Time) (time.Time, error) {
	return after.Add(time.Duration(i)), nil
}

// Every calls fn at each fire time of sched until ctx is cancelled or fn
// returns an error.
func Every(ctx context.Context, sched Schedule, fn func(ctx context.Context, now time.Time) error) error {
	for {
		next, err := sched.Next(time.Now())
		if err != nil {
			return fmt.Errorf("next tick: %w", err)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case now := <-timer.C:
			if err := fn(ctx, now); err != nil {
				return err
			}
		}
	}
}
