// Package notify tells the user about sooner appointments.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dmvScheduler/pkg/scraper"
)

// Kind of event
type Kind int

const (
	// Found means a sooner appointment is available but was not booked.
	Found Kind = iota
	// Booked means a sooner appointment was booked.
	Booked
)

// Event describes a sooner appointment
type Event struct {
	Kind        Kind
	Appointment scraper.Appointment
	// Previous is the best known date before the event, nil when none was held.
	Previous *time.Time
}

// Title is a one line summary of the event.
func (e Event) Title() string {
	if e.Kind == Booked {
		return "Booked a sooner DPS appointment"
	}
	return "Found a sooner DPS appointment"
}

// Body describes the appointment in plain text.
func (e Event) Body() string {
	a := e.Appointment
	body := fmt.Sprintf("%s\n%s\n%.1f miles\n%s", a.Office, a.Address, a.Distance, scraper.FormatDate(a.Date))
	if e.Previous != nil {
		body += fmt.Sprintf("\n(previously %s)", scraper.FormatDate(*e.Previous))
	}
	return body
}

// Notifier delivers events
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi fans an event out to every notifier, joining their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
