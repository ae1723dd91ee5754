package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// interceptedJS reports whether the element's center is covered by another
// element, which is what makes a real mouse click land elsewhere.
const interceptedJS = `function() {
	this.scrollIntoView({block: "center", inline: "center"});
	const r = this.getBoundingClientRect();
	const top = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
	return top !== null && top !== this && !this.contains(top);
}`

// Chrome drives Chrome through the DevTools protocol
type Chrome struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	tabCtx      context.Context
	cancelTab   context.CancelFunc
}

// NewChrome starts a Chrome instance, headless unless gui is set.
func NewChrome(ctx context.Context, gui bool) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1920, 1080),
		chromedp.NoSandbox,
		chromedp.Flag("disable-features", "SameSiteByDefaultCookies,CookiesWithoutSameSiteMustBeSecure"),
		chromedp.Flag("headless", !gui),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, cancelTab := chromedp.NewContext(
		allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			msg := fmt.Sprintf(format, args...)
			if (strings.Contains(msg, "error") || strings.Contains(msg, "failed")) &&
				!strings.Contains(msg, "cookiePart") &&
				!strings.Contains(msg, "unmarshal event") {
				log.Printf("🌐 %s", msg)
			}
		}),
	)

	// starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &Chrome{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
	}, nil
}

// run executes actions on the browser tab, bounded by ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Load navigates the tab to url.
func (c *Chrome) Load(ctx context.Context, url string) error {
	log.Printf("🔄 Loading %s", url)
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// Click waits for the button labelled text and clicks it.
func (c *Chrome) Click(ctx context.Context, text string) error {
	return ClickButton(ctx, c, text, RetryDelay)
}

func (c *Chrome) nodes(ctx context.Context, sel string, by chromedp.QueryOption) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(sel, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Fill types values into the input following label.
func (c *Chrome) Fill(ctx context.Context, label string, values ...string) error {
	nodes, err := c.nodes(ctx, LabelInputXPath(label), chromedp.BySearch)
	if err != nil {
		return fmt.Errorf("field %q: %w", label, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("field %q: %w", label, ErrNotFound)
	}

	ids := []cdp.NodeID{nodes[0].NodeID}
	for _, v := range values {
		if err := c.run(ctx, chromedp.SendKeys(ids, v, chromedp.ByNodeID)); err != nil {
			return fmt.Errorf("field %q: %w", label, err)
		}
	}
	return nil
}

// CSS returns the elements matching selector.
func (c *Chrome) CSS(ctx context.Context, selector string) ([]Element, error) {
	nodes, err := c.nodes(ctx, selector, chromedp.ByQueryAll)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	elements := make([]Element, len(nodes))
	for i, n := range nodes {
		elements[i] = &chromeElement{chrome: c, node: n}
	}
	return elements, nil
}

// Button returns the button labelled text.
func (c *Chrome) Button(ctx context.Context, text string) (Element, error) {
	nodes, err := c.nodes(ctx, ButtonXPath(text), chromedp.BySearch)
	if err != nil {
		return nil, fmt.Errorf("button %q: %w", text, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("button %q: %w", text, ErrNotFound)
	}
	return &chromeElement{chrome: c, node: nodes[0]}, nil
}

// ButtonExists reports whether a button labelled text is on the page.
func (c *Chrome) ButtonExists(ctx context.Context, text string) (bool, error) {
	nodes, err := c.nodes(ctx, ButtonXPath(text), chromedp.BySearch)
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// Quit closes the tab and the browser allocator
func (c *Chrome) Quit() error {
	c.cancelTab()
	c.cancelAlloc()
	return nil
}

type chromeElement struct {
	chrome *Chrome
	node   *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

// Text returns the element's rendered text.
func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.chrome.run(ctx, chromedp.Text(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}

// Attribute returns the named attribute, empty when unset.
func (e *chromeElement) Attribute(ctx context.Context, name string) (string, error) {
	var (
		value string
		ok    bool
	)
	if err := e.chrome.run(ctx, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return value, nil
}

// Click clicks the element, or returns ErrClickIntercepted when another
// element covers it.
func (e *chromeElement) Click(ctx context.Context) error {
	var intercepted bool
	err := e.chrome.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(ctx)
		}()

		res, exc, err := runtime.CallFunctionOn(interceptedJS).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		intercepted, err = decodeBool(res, exc)
		return err
	}))
	if err != nil {
		return err
	}
	if intercepted {
		return ErrClickIntercepted
	}
	return e.chrome.run(ctx, chromedp.MouseClickNode(e.node))
}

// decodeBool reads the boolean returned by a by-value function call.
func decodeBool(res *runtime.RemoteObject, exc *runtime.ExceptionDetails) (bool, error) {
	if exc != nil {
		return false, exc
	}
	if res == nil {
		return false, errors.New("empty script result")
	}
	var b bool
	if err := json.Unmarshal(res.Value, &b); err != nil {
		return false, fmt.Errorf("decode script result: %w", err)
	}
	return b, nil
}
