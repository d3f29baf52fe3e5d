// Package actions runs one engagement action end to end against a
// remote phone: open the target, find the control on screen, tap it,
// and finish the action-specific continuation. Localization failures
// are recovered by scrolling and retrying under a fixed budget; every
// run terminates in a structured Outcome, never a panic.
package actions

import (
	"time"

	"gocv.io/x/gocv"

	"feedtap/internal/vision"
)

// ErrorCode identifies the terminal failure of an action run. Codes are
// part of the machine-readable output contract and never change shape.
type ErrorCode string

const (
	FailedToOpenURL        ErrorCode = "FAILED_TO_OPEN_URL"
	ScreenshotFailed       ErrorCode = "SCREENSHOT_FAILED"
	LikeButtonNotFound     ErrorCode = "LIKE_BUTTON_NOT_FOUND"
	CommentButtonNotFound  ErrorCode = "COMMENT_BUTTON_NOT_FOUND"
	RetweetButtonNotFound  ErrorCode = "RETWEET_BUTTON_NOT_FOUND"
	FollowButtonNotFound   ErrorCode = "FOLLOW_BUTTON_NOT_FOUND"
	TapFailed              ErrorCode = "TAP_FAILED"
	TapRetweetButtonFailed ErrorCode = "TAP_RETWEET_BUTTON_FAILED"
	TapFollowButtonFailed  ErrorCode = "TAP_FOLLOW_BUTTON_FAILED"
	ScreenshotMenuFailed   ErrorCode = "SCREENSHOT_MENU_FAILED"
	InputFailed            ErrorCode = "INPUT_FAILED"
	PostTapFailed          ErrorCode = "POST_TAP_FAILED"
	TapRepostOptionFailed  ErrorCode = "TAP_REPOST_OPTION_FAILED"
	CommentGenFailed       ErrorCode = "COMMENT_GENERATION_FAILED"
)

// Action names, used in outcomes, logs and metric labels.
const (
	ActionLike    = "like"
	ActionComment = "comment"
	ActionRetweet = "retweet"
	ActionFollow  = "follow"
)

// Outcome is the sole externally visible artifact of one action run.
// Partial results survive failure: a generated comment is reported even
// when posting it failed, and a not-found error still carries the best
// confidence seen and the retries consumed.
type Outcome struct {
	RunID    string `json:"run_id"`
	DeviceID string `json:"device_id"`
	Action   string `json:"action"`
	Target   string `json:"target"`

	Success bool      `json:"success"`
	Error   ErrorCode `json:"error,omitempty"`

	X          int     `json:"x"`
	Y          int     `json:"y"`
	Confidence float32 `json:"confidence"`
	RetryCount int     `json:"retry_count"`

	Comment        string `json:"comment,omitempty"`
	TargetUsername string `json:"target_username,omitempty"`

	// Retweet second pass. MenuConfidence zero marks the coordinate
	// fallback rather than a visual match.
	MenuX          int     `json:"menu_x,omitempty"`
	MenuY          int     `json:"menu_y,omitempty"`
	MenuConfidence float32 `json:"menu_confidence,omitempty"`

	DebugScreenshot string `json:"debug_screenshot,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Finder is the perception dependency: match a named control against a
// frame. *vision.Registry satisfies it.
type Finder interface {
	Locate(frame gocv.Mat, control string, policy vision.Policy) (vision.Result, error)
}
