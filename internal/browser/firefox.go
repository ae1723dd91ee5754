package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/firefox"
)

// Firefox drives Firefox through a local geckodriver
type Firefox struct {
	service *selenium.Service
	driver  selenium.WebDriver
}

// NewFirefox starts geckodriver and opens a Firefox session.
func NewFirefox(opts Options) (*Firefox, error) {
	service, err := selenium.NewGeckoDriverService(opts.Geckodriver, opts.GeckodriverPort, selenium.Output(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to start geckodriver: %w", err)
	}

	ffCaps := firefox.Capabilities{}
	if !opts.GUI {
		ffCaps.Args = append(ffCaps.Args, "-headless")
	}
	caps := selenium.Capabilities{"browserName": "firefox", "pageLoadStrategy": "normal"}
	caps.AddFirefox(ffCaps)

	driver, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d", opts.GeckodriverPort))
	if err != nil {
		if stopErr := service.Stop(); stopErr != nil {
			log.Printf("⚠️ Failed to stop geckodriver: %v", stopErr)
		}
		return nil, fmt.Errorf("failed to open firefox: %w", err)
	}

	return &Firefox{service: service, driver: driver}, nil
}

// seleniumErr maps webdriver errors onto the session errors.
func seleniumErr(err error) error {
	if err == nil {
		return nil
	}
	var serr *selenium.Error
	if errors.As(err, &serr) {
		switch serr.Err {
		case "element click intercepted":
			return fmt.Errorf("%w: %s", ErrClickIntercepted, serr.Message)
		case "no such element", "stale element reference":
			return fmt.Errorf("%w: %s", ErrNotFound, serr.Message)
		}
	}
	if strings.Contains(err.Error(), "click intercepted") {
		return fmt.Errorf("%w: %v", ErrClickIntercepted, err)
	}
	return err
}

// Load navigates to url.
func (f *Firefox) Load(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf("🔄 Loading %s", url)
	if err := f.driver.Get(url); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// Click waits for the button labelled text and clicks it.
func (f *Firefox) Click(ctx context.Context, text string) error {
	return ClickButton(ctx, f, text, RetryDelay)
}

// Fill types values into the input following label.
func (f *Firefox) Fill(ctx context.Context, label string, values ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	field, err := f.driver.FindElement(selenium.ByXPATH, LabelInputXPath(label))
	if err != nil {
		return fmt.Errorf("field %q: %w", label, seleniumErr(err))
	}
	for _, v := range values {
		if err := field.SendKeys(v); err != nil {
			return fmt.Errorf("field %q: %w", label, seleniumErr(err))
		}
	}
	return nil
}

// CSS returns the elements matching selector.
func (f *Firefox) CSS(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := f.driver.FindElements(selenium.ByCSSSelector, selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, seleniumErr(err))
	}
	elements := make([]Element, len(found))
	for i, el := range found {
		elements[i] = firefoxElement{el}
	}
	return elements, nil
}

// Button returns the first button labelled text.
func (f *Firefox) Button(ctx context.Context, text string) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := f.driver.FindElements(selenium.ByXPATH, ButtonXPath(text))
	if err != nil {
		return nil, fmt.Errorf("button %q: %w", text, seleniumErr(err))
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("button %q: %w", text, ErrNotFound)
	}
	return firefoxElement{found[0]}, nil
}

// ButtonExists reports whether a button labelled text is on the page.
func (f *Firefox) ButtonExists(ctx context.Context, text string) (bool, error) {
	_, err := f.Button(ctx, text)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Quit ends the webdriver session and stops geckodriver
func (f *Firefox) Quit() error {
	err := f.driver.Quit()
	if stopErr := f.service.Stop(); stopErr != nil {
		log.Printf("⚠️ Failed to stop geckodriver: %v", stopErr)
	}
	return err
}

type firefoxElement struct {
	el selenium.WebElement
}

func (e firefoxElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.el.Text()
	return text, seleniumErr(err)
}

func (e firefoxElement) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, err := e.el.GetAttribute(name)
	return value, seleniumErr(err)
}

func (e firefoxElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return seleniumErr(e.el.Click())
}
