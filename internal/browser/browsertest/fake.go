// Package browsertest provides a scripted in-memory browser.Session.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dmvScheduler/internal/browser"
)

// Element is a fake DOM element.
type Element struct {
	// Name identifies the element in the action log.
	Name      string
	TextValue string
	Attrs     map[string]string

	// OnClick runs before the click is recorded; a returned error fails the click.
	OnClick func() error

	Clicks int
	fake   *Fake
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.TextValue, ctx.Err()
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	return e.Attrs[name], ctx.Err()
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.OnClick != nil {
		if err := e.OnClick(); err != nil {
			return err
		}
	}
	e.Clicks++
	if e.fake != nil {
		e.fake.record("click " + e.Name)
	}
	return nil
}

// Fake is a browser.Session whose page is a set of buttons, labelled fields
// and CSS selector results that tests mutate directly.
type Fake struct {
	Buttons  map[string]*Element
	Elements map[string][]*Element
	Fields   map[string][]string

	// Labels, when non-nil, restricts Fill to the listed labels.
	Labels map[string]bool

	LoadErr    error
	RetryDelay time.Duration

	Actions []string
	Quits   int
}

// New returns an empty page.
func New() *Fake {
	return &Fake{
		Buttons:    map[string]*Element{},
		Elements:   map[string][]*Element{},
		Fields:     map[string][]string{},
		RetryDelay: time.Millisecond,
	}
}

func (f *Fake) record(action string) {
	f.Actions = append(f.Actions, action)
}

// AddButton places a button labelled text on the page.
func (f *Fake) AddButton(text string) *Element {
	el := &Element{Name: text, TextValue: text, Attrs: map[string]string{}, fake: f}
	f.Buttons[text] = el
	return el
}

// AddElement appends an element matched by selector.
func (f *Fake) AddElement(selector, name, text string) *Element {
	el := &Element{Name: name, TextValue: text, Attrs: map[string]string{}, fake: f}
	f.Elements[selector] = append(f.Elements[selector], el)
	return el
}

func (f *Fake) Load(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.record("load " + url)
	return f.LoadErr
}

func (f *Fake) Click(ctx context.Context, text string) error {
	return browser.ClickButton(ctx, f, text, f.RetryDelay)
}

func (f *Fake) Fill(ctx context.Context, label string, values ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.Labels != nil && !f.Labels[label] {
		return fmt.Errorf("field %q: %w", label, browser.ErrNotFound)
	}
	f.Fields[label] = append(f.Fields[label], values...)
	f.record(fmt.Sprintf("fill %s=%s", label, strings.Join(values, "|")))
	return nil
}

func (f *Fake) CSS(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found := f.Elements[selector]
	elements := make([]browser.Element, len(found))
	for i, el := range found {
		elements[i] = el
	}
	return elements, nil
}

func (f *Fake) Button(ctx context.Context, text string) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el, ok := f.Buttons[text]
	if !ok {
		return nil, fmt.Errorf("button %q: %w", text, browser.ErrNotFound)
	}
	return el, nil
}

func (f *Fake) ButtonExists(ctx context.Context, text string) (bool, error) {
	_, ok := f.Buttons[text]
	return ok, ctx.Err()
}

func (f *Fake) Quit() error {
	f.Quits++
	return nil
}

var _ browser.Session = (*Fake)(nil)
