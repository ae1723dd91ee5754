package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"dmvScheduler/internal/finder"
	"dmvScheduler/pkg/notify"
	"dmvScheduler/pkg/scraper"
)

const (
	// DefaultCooldown rate limits requests to the scheduler between checks.
	DefaultCooldown = 30 * time.Second

	maxBackoff = 5 * time.Minute
)

// Finder is the part of finder.Finder the loop drives.
type Finder interface {
	FindAppointments(ctx context.Context) ([]scraper.Appointment, error)
	Decide(ctx context.Context, appointments []scraper.Appointment, best *time.Time, commit bool) (finder.Outcome, error)
}

// Runner repeats check and booking until told to stop
type Runner struct {
	Finder   Finder
	Notifier notify.Notifier
	Loop     bool
	Commit   bool
	Cooldown time.Duration

	// Sleep pauses between iterations; defaults to a ctx aware time.After.
	Sleep func(ctx context.Context, d time.Duration) error
	// BeforeIteration runs at the start of every iteration.
	BeforeIteration func()

	lastFound time.Time
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run checks for appointments, once or until ctx is cancelled when looping,
// and returns the best known date. Without Loop the first error is returned.
// When looping, failed iterations are retried with a growing backoff.
func (r *Runner) Run(ctx context.Context, best *time.Time) (*time.Time, error) {
	if r.Sleep == nil {
		r.Sleep = sleep
	}
	if r.Notifier == nil {
		r.Notifier = notify.Nop{}
	}
	if r.Cooldown == 0 {
		r.Cooldown = DefaultCooldown
	}

	consecutiveErrors := 0
	for {
		if r.BeforeIteration != nil {
			r.BeforeIteration()
		}

		var err error
		best, err = r.iterate(ctx, best)
		if err != nil {
			if !r.Loop {
				return best, err
			}
			if ctx.Err() != nil {
				log.Printf("Stopped during check: %v", err)
				return best, nil
			}
			consecutiveErrors++
			log.Printf("❌ Error during check: %v", err)
			backoff := time.Duration(consecutiveErrors*consecutiveErrors) * time.Second
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			log.Printf("Waiting %d seconds before retry (consecutive errors: %d)", int(backoff.Seconds()), consecutiveErrors)
			if err := r.Sleep(ctx, backoff); err != nil {
				return best, nil
			}
			continue
		}
		consecutiveErrors = 0

		if !r.Loop {
			return best, nil
		}

		next := time.Now().Add(r.Cooldown)
		log.Printf("✓ Check complete. Next check in %s at %s", r.Cooldown, next.Format("15:04:05"))
		if err := r.Sleep(ctx, r.Cooldown); err != nil {
			return best, nil
		}
	}
}

func (r *Runner) iterate(ctx context.Context, best *time.Time) (*time.Time, error) {
	appointments, err := r.Finder.FindAppointments(ctx)
	if err != nil {
		return best, fmt.Errorf("find appointments: %w", err)
	}

	out, err := r.Finder.Decide(ctx, appointments, best, r.Commit)
	if err != nil {
		return out.Best, err
	}

	var event *notify.Event
	switch out.Action {
	case finder.ActionDryRun:
		// only report a sooner date once while it stays unbooked
		if !out.Earliest.Date.Equal(r.lastFound) {
			r.lastFound = out.Earliest.Date
			event = &notify.Event{Kind: notify.Found, Appointment: *out.Earliest, Previous: best}
		}
	case finder.ActionBooked:
		event = &notify.Event{Kind: notify.Booked, Appointment: *out.Earliest, Previous: best}
	}
	if event != nil {
		if err := r.Notifier.Notify(ctx, *event); err != nil {
			log.Printf("⚠️ Notification failed: %v", err)
		}
	}
	return out.Best, nil
}
