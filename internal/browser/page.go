// Package browser defines the abstract browser-driver surface the rest of
// the core depends on. Any backend providing this surface — Playwright,
// chromedp, a test double — is acceptable.
package browser

import "context"

// WaitUntil names a navigation completion condition.
type WaitUntil string

const (
	WaitUntilLoad      WaitUntil = "load"
	WaitUntilDOMReady  WaitUntil = "domcontentloaded"
	WaitUntilNetworkIdle WaitUntil = "networkidle"
)

// Element is a handle to a located DOM node.
type Element interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Type(ctx context.Context, text string) error
	Screenshot(ctx context.Context) ([]byte, error)
	GetAttribute(ctx context.Context, name string) (string, error)
	InnerText(ctx context.Context) (string, error)
}

// Page is the minimal browser-driver surface the core depends on.
type Page interface {
	Navigate(ctx context.Context, url string, waitUntil WaitUntil) error
	GoBack(ctx context.Context) error
	Reload(ctx context.Context) error

	WaitForSelector(ctx context.Context, selector string, timeoutMs int) (Element, error)
	QuerySelector(ctx context.Context, selector string) (Element, error)
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)

	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Type(ctx context.Context, selector, text string) error

	Evaluate(ctx context.Context, js string) (interface{}, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)

	SwitchToFrame(ctx context.Context, selector string) error
	SwitchToMainFrame(ctx context.Context) error

	ScrollToBottom(ctx context.Context, stepPx int) error
	ScrollToElement(ctx context.Context, selector string) error
	DragAndDrop(ctx context.Context, srcSelector, dstSelector string) error

	MouseWheel(ctx context.Context, dx, dy float64) error
	Hover(ctx context.Context, selector string) error

	URL() string
	Close(ctx context.Context) error
}
