// Package aicomment generates reply text for a pictured post. The
// orchestrator hands it the first screenshot of the opened post; the
// generator reads the post from the image and writes a short reply in
// the configured persona's voice.
package aicomment

import (
	"context"
	"errors"
)

// ErrNoComment is returned when the model answered but produced no
// usable text. The comment action treats it the same as a transport
// failure: nothing to post, fail fast.
var ErrNoComment = errors.New("no comment generated")

// Generator produces one reply for one frame. Implementations are
// synchronous; the single call happens before the localization loop, so
// a failure costs no device work.
type Generator interface {
	Generate(ctx context.Context, framePNG []byte, persona string) (string, error)
}
