package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dmvScheduler/pkg/config"
)

const (
	// WaitTimeout bounds every explicit wait for an element.
	WaitTimeout = 10 * time.Second

	// ClickAttempts is how often an intercepted click is retried.
	ClickAttempts = 5

	// RetryDelay is the pause between intercepted click attempts.
	RetryDelay = 2 * time.Second

	pollInterval = 250 * time.Millisecond
)

var (
	ErrNotFound              = errors.New("element not found")
	ErrTimeout               = errors.New("timed out waiting for condition")
	ErrClickIntercepted      = errors.New("click intercepted")
	ErrClickRetriesExhausted = errors.New("click retries exhausted")
	ErrUnsupportedBrowser    = errors.New("unsupported browser")
)

// Element is a handle to a DOM element of the current page.
type Element interface {
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Click(ctx context.Context) error
}

// Session is the capability set the scheduler needs from a browser.
type Session interface {
	// Load navigates to url.
	Load(ctx context.Context, url string) error
	// Click waits for a button labelled text and clicks it, retrying
	// intercepted clicks.
	Click(ctx context.Context, text string) error
	// Fill types every value, in order, into the input following label.
	Fill(ctx context.Context, label string, values ...string) error
	// CSS returns every element matching selector, possibly none.
	CSS(ctx context.Context, selector string) ([]Element, error)
	// Button returns the button labelled text without waiting.
	Button(ctx context.Context, text string) (Element, error)
	// ButtonExists reports whether a button labelled text is present, without waiting.
	ButtonExists(ctx context.Context, text string) (bool, error)
	// Quit releases the browser.
	Quit() error
}

// Options configures a new session
type Options struct {
	Browser config.Browser
	GUI     bool

	Geckodriver     string
	GeckodriverPort int
}

// OptionsFromConfig builds session options from the loaded configuration.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Browser:         cfg.Settings.Browser,
		GUI:             cfg.Settings.GUI,
		Geckodriver:     cfg.Settings.Geckodriver,
		GeckodriverPort: cfg.Settings.GeckodriverPort,
	}
}

// New opens a session for the configured browser.
func New(ctx context.Context, opts Options) (Session, error) {
	switch opts.Browser {
	case config.Chrome:
		return NewChrome(ctx, opts.GUI)
	case config.Firefox:
		return NewFirefox(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBrowser, opts.Browser)
	}
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}

// ButtonXPath matches a button by its whitespace normalized text.
func ButtonXPath(text string) string {
	return fmt.Sprintf("//button[normalize-space()=%s]", xpathLiteral(text))
}

// LabelInputXPath matches the first input after a label with the given text.
func LabelInputXPath(label string) string {
	return fmt.Sprintf("//label[normalize-space()=%s]/following::input[1]", xpathLiteral(label))
}

// WaitUntil polls cond until it reports true, timeout elapses or ctx is done.
func WaitUntil(ctx context.Context, timeout time.Duration, cond func(ctx context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				if lastErr != nil {
					return fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, lastErr)
				}
				return fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Retry runs attempt up to attempts times. Only ErrClickIntercepted is
// retried, after delay; any other error is returned at once.
func Retry(ctx context.Context, attempts int, delay time.Duration, what string, attempt func(ctx context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = attempt(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrClickIntercepted) {
			return err
		}
		log.Printf("⚠️ Click on %q intercepted (attempt %d/%d), waiting to try again", what, i+1, attempts)
	}
	return fmt.Errorf("%w: %q after %d attempts: %v", ErrClickRetriesExhausted, what, attempts, err)
}

// ClickButton is the Click policy shared by every variant: wait for the
// button to exist, then click it, retrying intercepted clicks after delay.
func ClickButton(ctx context.Context, s Session, text string, delay time.Duration) error {
	err := WaitUntil(ctx, WaitTimeout, func(ctx context.Context) (bool, error) {
		return s.ButtonExists(ctx, text)
	})
	if err != nil {
		return fmt.Errorf("button %q: %w", text, err)
	}

	err = Retry(ctx, ClickAttempts, delay, text, func(ctx context.Context) error {
		btn, err := s.Button(ctx, text)
		if err != nil {
			return err
		}
		return btn.Click(ctx)
	})
	if err != nil {
		return err
	}
	log.Printf("🖱️ Clicked %s", text)
	return nil
}
