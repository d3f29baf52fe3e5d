// Package vision locates UI controls on captured phone screens by
// template matching. It is the perception half of feedtap: callers hand
// it a frame and a control name and get back a single tap point, or a
// best-confidence diagnostic when nothing clears the threshold.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"

	"gocv.io/x/gocv"
)

// Control names, matching the template_<name>.png files on disk.
const (
	LikeButton    = "like_button"
	CommentButton = "comment_button"
	RetweetButton = "retweet_button"
	RepostOption  = "repost_option"
	FollowButton  = "follow_button"
)

// ErrImageLoad marks a frame or template that could not be decoded. It is
// deliberately distinct from a not-found result: an unreadable image says
// nothing about whether the control is on screen.
var ErrImageLoad = errors.New("unreadable image")

// ErrUnknownControl is returned when no template is loaded for a name.
var ErrUnknownControl = errors.New("unknown control")

// Policy picks one candidate out of the deduplicated set.
type Policy int

const (
	// Topmost takes the smallest vertical coordinate. Used on feed pages
	// so the post's own button wins over the same button on replies
	// further down.
	Topmost Policy = iota
	// HighestConfidence takes the best match score. Used on menus where
	// the option's position varies but the label itself should win.
	HighestConfidence
)

func (p Policy) String() string {
	switch p {
	case Topmost:
		return "topmost"
	case HighestConfidence:
		return "highest_confidence"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy accepts the forms used on the command line.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "topmost", "top":
		return Topmost, nil
	case "highest_confidence", "confidence":
		return HighestConfidence, nil
	}
	return Topmost, fmt.Errorf("unknown selection policy %q", s)
}

// DecodeFrame turns PNG bytes from a screen capture into a matchable Mat.
// The caller owns the Mat and must Close it.
func DecodeFrame(data []byte) (gocv.Mat, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	return mat, nil
}

// ReadFrame loads a capture from disk, for the locate command and tests.
func ReadFrame(path string) (gocv.Mat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	return DecodeFrame(data)
}

// SaveFrame writes a frame to disk. The orchestrator keeps the last
// frame of an exhausted locate loop this way so operators can see what
// the matcher saw.
func SaveFrame(path string, frame gocv.Mat) error {
	if frame.Empty() {
		return fmt.Errorf("%w: empty frame", ErrImageLoad)
	}
	if ok := gocv.IMWrite(path, frame); !ok {
		return fmt.Errorf("write frame %s failed", path)
	}
	return nil
}
