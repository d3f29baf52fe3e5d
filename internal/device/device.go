// Package device drives a remote cloud phone over the DuoPlus command
// API. The phone exposes no UI tree; everything is raw input and screen
// capture.
package device

import "context"

// Controller is the capability surface one action invocation needs.
// Implementations are synchronous round trips; retries belong to the
// caller's budget, not here.
type Controller interface {
	// OpenURL navigates Chrome on the device to url.
	OpenURL(ctx context.Context, url string) error
	// Screenshot returns the current screen as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Tap injects a tap at device pixel coordinates.
	Tap(ctx context.Context, x, y int) error
	// SwipeDown scrolls the feed down by the profile's fixed gesture.
	SwipeDown(ctx context.Context) error
	// Swipe injects an arbitrary gesture.
	Swipe(ctx context.Context, fromX, fromY, toX, toY, millis int) error
	// InputText types into the currently focused input via ADBKeyboard.
	InputText(ctx context.Context, text string) error
}
