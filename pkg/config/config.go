package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"dmvScheduler/pkg/scraper"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

const (
	// SchedulerURL is the Texas DPS public scheduler.
	SchedulerURL = "https://public.txdpsscheduler.com/"

	// ApplicationType is the only application flow the scheduler walks through.
	ApplicationType = "Apply for first time Texas DL/Permit"
)

// Browser names a supported browser variant
type Browser string

const (
	Firefox Browser = "firefox"
	Chrome  Browser = "chrome"
)

// Settings controls how the scheduler runs
type Settings struct {
	GUI      bool    `json:"gui"`
	Browser  Browser `json:"browser"`
	Commit   bool    `json:"commit"`
	Loop     bool    `json:"loop"`
	Interval string  `json:"interval"`

	// Firefox is driven through a local geckodriver.
	Geckodriver     string `json:"geckodriver"`
	GeckodriverPort int    `json:"geckodriver-port"`
}

// Notify holds optional notification credentials
type Notify struct {
	LineChannelToken string `json:"line-channel-token"`
	LineUserID       string `json:"line-user-id"`
	SendGridAPIKey   string `json:"sendgrid-api-key"`
	EmailFrom        string `json:"email-from"`
	EmailTo          string `json:"email-to"`
}

// Config holds the application configuration
type Config struct {
	Settings Settings `json:"settings"`
	Notify   Notify   `json:"notify"`

	FirstName          string `json:"first-name"`
	LastName           string `json:"last-name"`
	BirthDate          string `json:"birth-date"`
	SSNLast4           string `json:"last-4-ssn"`
	Cell               string `json:"cell"`
	Email              string `json:"email"`
	ZipCode            string `json:"zipcode"`
	CurrentAppointment string `json:"current-appointment"`
}

// Error reports an invalid or missing configuration key.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// Default returns the settings applied before a file is read.
func Default() Config {
	return Config{
		Settings: Settings{
			Browser:         Firefox,
			Interval:        "30s",
			Geckodriver:     "geckodriver",
			GeckodriverPort: 4444,
		},
	}
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

// Load reads the configuration at path, merges `<name>.local.<ext>` over it
// when present, applies environment fallbacks and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	var file Config
	if err := json5.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := mergo.Merge(&cfg, file, mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	prefix, ext := splitExt(filepath.Base(path))
	localPath := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s.local.%s", prefix, ext))
	local, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if len(local) > 0 {
		var override Config
		if err := json5.Unmarshal(local, &override); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", localPath, err)
		}
		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		log.Printf("⚙️ Merged local overrides from %s", localPath)
	}

	cfg.applyEnv()
	cfg.Settings.Browser = Browser(strings.ToLower(strings.TrimSpace(string(cfg.Settings.Browser))))

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Notify.LineChannelToken == "" {
		c.Notify.LineChannelToken = os.Getenv("LINE_CHANNEL_TOKEN")
	}
	if c.Notify.LineUserID == "" {
		c.Notify.LineUserID = os.Getenv("LINE_USER_ID")
	}
	if c.Notify.SendGridAPIKey == "" {
		c.Notify.SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	}
}

var (
	ssnPattern  = regexp.MustCompile(`^\d{4}$`)
	cellPattern = regexp.MustCompile(`^\d+-\d+-\d+$`)
)

// Validate checks every field needed to fill the scheduler form.
func (c Config) Validate() error {
	required := []struct {
		key, value string
	}{
		{"first-name", c.FirstName},
		{"last-name", c.LastName},
		{"birth-date", c.BirthDate},
		{"last-4-ssn", c.SSNLast4},
		{"cell", c.Cell},
		{"email", c.Email},
		{"zipcode", c.ZipCode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &Error{Key: r.key, Reason: "missing"}
		}
	}

	if _, err := scraper.ParseDate(c.BirthDate); err != nil {
		return &Error{Key: "birth-date", Reason: err.Error()}
	}
	if !ssnPattern.MatchString(c.SSNLast4) {
		return &Error{Key: "last-4-ssn", Reason: "must be exactly 4 digits"}
	}
	if !cellPattern.MatchString(c.Cell) {
		return &Error{Key: "cell", Reason: "must be three dash separated groups, e.g. 512-555-0100"}
	}
	if c.CurrentAppointment != "" {
		if _, err := scraper.ParseDate(c.CurrentAppointment); err != nil {
			return &Error{Key: "current-appointment", Reason: err.Error()}
		}
	}

	switch c.Settings.Browser {
	case Firefox, Chrome:
	default:
		return &Error{Key: "settings.browser", Reason: fmt.Sprintf("unsupported browser %q", c.Settings.Browser)}
	}
	if _, err := c.CheckInterval(); err != nil {
		return &Error{Key: "settings.interval", Reason: err.Error()}
	}
	if c.Settings.Browser == Firefox && c.Settings.GeckodriverPort <= 0 {
		return &Error{Key: "settings.geckodriver-port", Reason: "must be positive"}
	}
	return nil
}

// FullName joins first and last name
func (c Config) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// BirthDateParts returns the month, day and year of the normalized birth
// date, as typed into the segmented date of birth field.
func (c Config) BirthDateParts() []string {
	normalized, err := scraper.NormalizeDate(c.BirthDate)
	if err != nil {
		return strings.Split(c.BirthDate, "/")
	}
	return strings.Split(normalized, "/")
}

// CellParts splits the cell phone number into its dash separated groups.
func (c Config) CellParts() []string {
	return strings.Split(c.Cell, "-")
}

// CurrentBest returns the already held appointment date, or nil.
func (c Config) CurrentBest() *time.Time {
	if c.CurrentAppointment == "" {
		return nil
	}
	t, err := scraper.ParseDate(c.CurrentAppointment)
	if err != nil {
		return nil
	}
	return &t
}

// CheckInterval returns the cooldown between checks.
func (c Config) CheckInterval() (time.Duration, error) {
	if c.Settings.Interval == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Settings.Interval)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative interval %s", d)
	}
	return d, nil
}
