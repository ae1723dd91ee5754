// Package finder walks the Texas DPS scheduler form to list the earliest
// appointment per office and to book one.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"dmvScheduler/internal/browser"
	"dmvScheduler/pkg/config"
	"dmvScheduler/pkg/scraper"
)

const (
	textNotificationsLabel = "I prefer to receive notifications via text message"
	disabledClass          = "v-btn--disabled"
	locationTables         = 2
)

// ErrUnexpectedLayout is returned when the page does not have the structure
// the scraper relies on.
var ErrUnexpectedLayout = errors.New("unexpected page layout")

// Identity is the personal data typed into the scheduler form
type Identity struct {
	FirstName string
	LastName  string
	BirthDate []string // month, day, year
	SSNLast4  string
	Cell      []string
	Email     string
	ZipCode   string
}

// IdentityFromConfig extracts the form data from cfg.
func IdentityFromConfig(cfg config.Config) Identity {
	return Identity{
		FirstName: cfg.FirstName,
		LastName:  cfg.LastName,
		BirthDate: cfg.BirthDateParts(),
		SSNLast4:  cfg.SSNLast4,
		Cell:      cfg.CellParts(),
		Email:     cfg.Email,
		ZipCode:   cfg.ZipCode,
	}
}

// Finder drives a browser session through the scheduler
type Finder struct {
	session  browser.Session
	identity Identity
	url      string
}

// New creates a finder for the public scheduler.
func New(session browser.Session, identity Identity) *Finder {
	return &Finder{
		session:  session,
		identity: identity,
		url:      config.SchedulerURL,
	}
}

// FindAppointments logs on, starts a new appointment and returns the offices'
// earliest appointments sorted by date.
func (f *Finder) FindAppointments(ctx context.Context) ([]scraper.Appointment, error) {
	s := f.session
	id := f.identity

	if err := s.Load(ctx, f.url); err != nil {
		return nil, err
	}
	if err := s.Click(ctx, "English"); err != nil {
		return nil, fmt.Errorf("select language: %w", err)
	}

	fields := []struct {
		label  string
		values []string
	}{
		{"First Name", []string{id.FirstName}},
		{"Last Name", []string{id.LastName}},
		{"Date of Birth (mm/dd/yyyy)", id.BirthDate},
		{"Last four of SSN", []string{id.SSNLast4}},
	}
	for _, field := range fields {
		if err := s.Fill(ctx, field.label, field.values...); err != nil {
			return nil, fmt.Errorf("log on form: %w", err)
		}
	}

	if err := f.waitLogOnEnabled(ctx); err != nil {
		return nil, fmt.Errorf("log on form: %w", err)
	}
	if err := s.Click(ctx, "Log On"); err != nil {
		return nil, fmt.Errorf("log on: %w", err)
	}
	if err := s.Click(ctx, "New Appointment"); err != nil {
		return nil, fmt.Errorf("new appointment: %w", err)
	}

	// The confirmation dialog only shows up for some accounts.
	ok, err := s.ButtonExists(ctx, "OK")
	if err != nil {
		return nil, fmt.Errorf("new appointment: %w", err)
	}
	if ok {
		if err := s.Click(ctx, "OK"); err != nil {
			return nil, fmt.Errorf("new appointment: %w", err)
		}
	}

	if err := s.Click(ctx, config.ApplicationType); err != nil {
		return nil, fmt.Errorf("application type: %w", err)
	}

	fields = []struct {
		label  string
		values []string
	}{
		{"Cell Phone", id.Cell},
		{"Email", []string{id.Email}},
		{"Verify Email", []string{id.Email}},
	}
	for _, field := range fields {
		if err := s.Fill(ctx, field.label, field.values...); err != nil {
			return nil, fmt.Errorf("contact form: %w", err)
		}
	}
	if err := f.toggleTextNotifications(ctx); err != nil {
		return nil, fmt.Errorf("contact form: %w", err)
	}
	if err := s.Fill(ctx, "Zip Code", id.ZipCode); err != nil {
		return nil, fmt.Errorf("contact form: %w", err)
	}
	if err := clickContaining(ctx, s, ".button", "NEXT"); err != nil {
		return nil, fmt.Errorf("contact form: %w", err)
	}

	appointments, err := f.scrapeLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}
	log.Printf("📋 Found %d offices: %s", len(appointments), strings.Join(scraper.Dates(appointments), ", "))
	return appointments, nil
}

// waitLogOnEnabled waits for form validation to enable the Log On button.
func (f *Finder) waitLogOnEnabled(ctx context.Context) error {
	return browser.WaitUntil(ctx, browser.WaitTimeout, func(ctx context.Context) (bool, error) {
		btn, err := f.session.Button(ctx, "Log On")
		if errors.Is(err, browser.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		class, err := btn.Attribute(ctx, "class")
		if err != nil {
			return false, err
		}
		return !strings.Contains(class, disabledClass), nil
	})
}

func (f *Finder) toggleTextNotifications(ctx context.Context) error {
	slots, err := f.session.CSS(ctx, ".v-input__slot")
	if err != nil {
		return err
	}
	toggled := false
	for _, slot := range slots {
		text, err := slot.Text(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) != textNotificationsLabel {
			continue
		}
		if err := slot.Click(ctx); err != nil {
			return fmt.Errorf("text notifications: %w", err)
		}
		toggled = true
	}
	if !toggled {
		log.Printf("⚠️ Text notification preference not found")
	}
	return nil
}

func (f *Finder) scrapeLocations(ctx context.Context) ([]scraper.Appointment, error) {
	var tables []browser.Element
	err := browser.WaitUntil(ctx, browser.WaitTimeout, func(ctx context.Context) (bool, error) {
		var err error
		tables, err = f.session.CSS(ctx, ".locations")
		return len(tables) > 0, err
	})
	if err != nil {
		return nil, err
	}
	if len(tables) != locationTables {
		return nil, fmt.Errorf("%w: expected %d location tables, found %d", ErrUnexpectedLayout, locationTables, len(tables))
	}

	var appointments []scraper.Appointment
	for i, table := range tables {
		text, err := table.Text(ctx)
		if err != nil {
			return nil, err
		}
		parsed, err := scraper.ParseTable(text)
		if err != nil {
			return nil, fmt.Errorf("table %d: %w", i, err)
		}
		appointments = append(appointments, parsed...)
	}
	scraper.SortByDate(appointments)
	return appointments, nil
}

// clickContaining clicks the first element matching selector whose text contains substr.
func clickContaining(ctx context.Context, s browser.Session, selector, substr string) error {
	elements, err := s.CSS(ctx, selector)
	if err != nil {
		return err
	}
	for _, el := range elements {
		text, err := el.Text(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(text, substr) {
			return el.Click(ctx)
		}
	}
	return fmt.Errorf("%s containing %q: %w", selector, substr, browser.ErrNotFound)
}
