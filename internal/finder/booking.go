package finder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dmvScheduler/internal/browser"
	"dmvScheduler/pkg/scraper"
)

// ErrSlotNotFound is returned when the booking page does not offer the chosen date.
var ErrSlotNotFound = errors.New("appointment slot not found")

// Action is what Decide did with the earliest appointment.
type Action int

const (
	ActionNone Action = iota
	ActionDryRun
	ActionBooked
)

func (a Action) String() string {
	switch a {
	case ActionDryRun:
		return "dry-run"
	case ActionBooked:
		return "booked"
	default:
		return "none"
	}
}

// Outcome of a booking decision
type Outcome struct {
	Action   Action
	Earliest *scraper.Appointment
	// Best is the best known date after the decision.
	Best *time.Time
}

// ShouldBook reports whether found improves on the best known date.
func ShouldBook(best *time.Time, found time.Time) bool {
	return best == nil || found.Before(*best)
}

// Book clicks through the booking flow for appt.
func (f *Finder) Book(ctx context.Context, appt scraper.Appointment) error {
	s := f.session

	cards, err := s.CSS(ctx, ".card.blue")
	if err != nil {
		return err
	}
	// A card naming the office wins over one that only shows the date.
	var card, dateOnly browser.Element
	for _, c := range cards {
		text, err := c.Text(ctx)
		if err != nil {
			return err
		}
		log.Printf("🗂️ %s", strings.ReplaceAll(text, "\n", " | "))
		if !strings.Contains(text, scraper.FormatDate(appt.Date)) &&
			(appt.RawDate == "" || !strings.Contains(text, appt.RawDate)) {
			continue
		}
		if appt.Office != "" && strings.Contains(text, appt.Office) {
			card = c
			break
		}
		if dateOnly == nil {
			dateOnly = c
		}
	}
	if card == nil {
		card = dateOnly
	}
	if card == nil {
		return fmt.Errorf("%w: no card for %s", ErrSlotNotFound, appt.RawDate)
	}
	if err := card.Click(ctx); err != nil {
		return fmt.Errorf("select %s: %w", appt.Office, err)
	}

	var slots []browser.Element
	err = browser.WaitUntil(ctx, browser.WaitTimeout, func(ctx context.Context) (bool, error) {
		var err error
		slots, err = s.CSS(ctx, ".slot-card.blue-grey")
		return len(slots) > 0, err
	})
	if err != nil {
		return fmt.Errorf("%w: no time slot on %s: %v", ErrSlotNotFound, appt.RawDate, err)
	}
	if err := slots[0].Click(ctx); err != nil {
		return fmt.Errorf("select time slot: %w", err)
	}

	if err := clickContaining(ctx, s, ".button", "NEXT"); err != nil {
		return err
	}
	return s.Click(ctx, "Confirm")
}

// Decide books the earliest appointment when it is sooner than best and
// commit allows it. appointments must be sorted by date.
func (f *Finder) Decide(ctx context.Context, appointments []scraper.Appointment, best *time.Time, commit bool) (Outcome, error) {
	out := Outcome{Best: best}
	if len(appointments) == 0 {
		log.Println("✓ No appointments listed")
		return out, nil
	}

	earliest := appointments[0]
	out.Earliest = &earliest
	if !ShouldBook(best, earliest.Date) {
		log.Printf("✓ Didn't find anything sooner than %s (earliest %s)", scraper.FormatDate(*best), earliest)
		return out, nil
	}

	if !commit {
		log.Printf("🎯 Found a sooner appointment: %s (not booking, commit disabled)", earliest)
		out.Action = ActionDryRun
		return out, nil
	}

	log.Printf("🎯 Booking %s", earliest)
	if err := f.Book(ctx, earliest); err != nil {
		return out, fmt.Errorf("book %s: %w", earliest, err)
	}
	out.Action = ActionBooked
	out.Best = &earliest.Date
	log.Printf("🎉 Booked %s", earliest)
	return out, nil
}
