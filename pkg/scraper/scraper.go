package scraper

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Separator is the text the results table renders for the "next" arrow icon
// that closes every office row group.
const Separator = "double_arrow"

// DateLayout is the canonical date format used by the scheduler site.
const DateLayout = "01/02/2006"

// headerLines is the number of table header lines preceding the row groups.
const headerLines = 2

// ErrMalformedRow is returned when a row group does not have the expected shape.
var ErrMalformedRow = errors.New("malformed appointment row")

// Appointment represents the earliest slot an office offers
type Appointment struct {
	Office   string    `json:"office"`
	Address  string    `json:"address"`
	Distance float64   `json:"distance"`
	Date     time.Time `json:"date"`
	RawDate  string    `json:"raw_date"`
}

func (a Appointment) String() string {
	return fmt.Sprintf("%s (%s, %.1f mi) %s", a.Office, a.Address, a.Distance, FormatDate(a.Date))
}

// ParseDate parses M/D/YYYY or MM/DD/YYYY.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("1/2/2006", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected MM/DD/YYYY", s)
	}
	return t, nil
}

// FormatDate renders t as MM/DD/YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// NormalizeDate rewrites a M/D/YYYY date into canonical MM/DD/YYYY form.
func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return FormatDate(t), nil
}

// ParseTable parses the text rendering of a `.locations` table.
//
// The first two lines are the table header. The remaining lines form groups
// closed by the Separator line; every group holds the office name, its address
// and a "<distance> miles <date>" line. A last group without a closing
// separator is still returned.
func ParseTable(text string) ([]Appointment, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) <= headerLines {
		return nil, nil
	}
	body := lines[headerLines:]

	var groups [][]string
	var current []string
	for _, line := range body {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == Separator {
			groups = append(groups, current)
			current = nil
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	appointments := make([]Appointment, 0, len(groups))
	for i, group := range groups {
		if len(group) == 0 {
			continue
		}
		appt, err := parseRow(group)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		appointments = append(appointments, appt)
	}
	return appointments, nil
}

func parseRow(row []string) (Appointment, error) {
	if len(row) < 3 {
		return Appointment{}, fmt.Errorf("%w: expected 3 lines, got %d", ErrMalformedRow, len(row))
	}

	fields := strings.Fields(row[2])
	if len(fields) == 0 {
		return Appointment{}, fmt.Errorf("%w: empty distance/date line", ErrMalformedRow)
	}

	distance, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Appointment{}, fmt.Errorf("%w: distance %q", ErrMalformedRow, fields[0])
	}

	raw := fields[len(fields)-1]
	date, err := ParseDate(raw)
	if err != nil {
		return Appointment{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}

	return Appointment{
		Office:   row[0],
		Address:  row[1],
		Distance: distance,
		Date:     date,
		RawDate:  raw,
	}, nil
}

// SortByDate orders appointments by date, keeping the table order for equal dates.
func SortByDate(appointments []Appointment) {
	slices.SortStableFunc(appointments, func(a, b Appointment) int {
		return a.Date.Compare(b.Date)
	})
}

// Dates extracts the formatted dates from appointments
func Dates(appointments []Appointment) []string {
	dates := make([]string, len(appointments))
	for i, appt := range appointments {
		dates[i] = FormatDate(appt.Date)
	}
	return dates
}
