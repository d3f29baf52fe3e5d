package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feedtap/internal/aicomment"
	"feedtap/internal/config"
	"feedtap/internal/device"
	"feedtap/internal/metrics"
	"feedtap/internal/vision"
)

// DefaultMaxRetry bounds the capture-locate loop of every action.
const DefaultMaxRetry = 3

// Options wire one Orchestrator to its collaborators. Generator is only
// needed for the comment action; Metrics may be nil.
type Options struct {
	Device    device.Controller
	Finder    Finder
	Generator aicomment.Generator

	Profile  config.DeviceProfile
	Delays   config.Delays
	MaxRetry int
	DebugDir string
	DeviceID string

	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Orchestrator drives the shared state machine: open, settle, a bounded
// capture-locate-scroll loop, tap, an action-specific continuation, and
// a best-effort confirmation. It holds no cross-run state; concurrent
// runs against different devices are fine.
type Orchestrator struct {
	device   device.Controller
	finder   Finder
	gen      aicomment.Generator
	profile  config.DeviceProfile
	delays   config.Delays
	maxRetry int
	debugDir string
	deviceID string
	metrics  *metrics.Collector
	log      *zap.Logger
}

func New(opts Options) *Orchestrator {
	if opts.MaxRetry < 1 {
		opts.MaxRetry = DefaultMaxRetry
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		device:   opts.Device,
		finder:   opts.Finder,
		gen:      opts.Generator,
		profile:  opts.Profile,
		delays:   opts.Delays,
		maxRetry: opts.MaxRetry,
		debugDir: opts.DebugDir,
		deviceID: opts.DeviceID,
		metrics:  opts.Metrics,
		log:      logger.With(zap.String("component", "actions"), zap.String("device_id", opts.DeviceID)),
	}
}

// variant is one action's slot-in behavior for the shared protocol.
type variant struct {
	action   string
	control  string
	policy   vision.Policy
	openWait time.Duration
	notFound ErrorCode
	tapError ErrorCode

	// fixed skips localization and taps a configured coordinate.
	fixed *config.Coord

	// before runs after the open settle, ahead of the locate loop.
	// after runs once the control tap landed. Both return false to
	// terminate with whatever the hook put on the outcome.
	before func(ctx context.Context, out *Outcome) bool
	after  func(ctx context.Context, out *Outcome) bool
}

func (o *Orchestrator) run(ctx context.Context, v variant, target string) (out Outcome) {
	out = Outcome{
		RunID:     uuid.NewString(),
		DeviceID:  o.deviceID,
		Action:    v.action,
		Target:    target,
		StartedAt: time.Now().UTC(),
	}
	start := time.Now()
	defer func() {
		out.DurationMs = time.Since(start).Milliseconds()
		o.metrics.ObserveAction(out.Action, out.Success, string(out.Error), time.Since(start))
		if out.Success {
			o.log.Info("action done",
				zap.String("action", out.Action),
				zap.String("run_id", out.RunID),
				zap.Int("x", out.X), zap.Int("y", out.Y),
				zap.Float32("confidence", out.Confidence),
				zap.Int("retry_count", out.RetryCount))
		} else {
			o.log.Warn("action failed",
				zap.String("action", out.Action),
				zap.String("run_id", out.RunID),
				zap.String("error", string(out.Error)),
				zap.Int("retry_count", out.RetryCount))
		}
	}()

	if err := o.device.OpenURL(ctx, target); err != nil {
		o.log.Warn("open url failed", zap.String("url", target), zap.Error(err))
		out.Error = FailedToOpenURL
		return out
	}
	o.settle(v.openWait)

	if v.before != nil && !v.before(ctx, &out) {
		return out
	}

	if v.fixed != nil {
		// Stable-layout path: the operator trusts the profile geometry
		// over matching. Confidence zero marks the coordinate origin.
		out.X, out.Y = v.fixed.X, v.fixed.Y
		out.Confidence = 0
		out.RetryCount = 1
	} else if !o.locateLoop(ctx, v, &out) {
		return out
	}

	if err := o.device.Tap(ctx, out.X, out.Y); err != nil {
		o.log.Warn("tap failed", zap.Int("x", out.X), zap.Int("y", out.Y), zap.Error(err))
		out.Error = v.tapError
		return out
	}

	if v.after != nil && !v.after(ctx, &out) {
		return out
	}

	// Best effort: the confirmation capture exists for operators, its
	// failure never fails the action.
	o.settle(o.delays.Confirm)
	if _, err := o.device.Screenshot(ctx); err != nil {
		o.log.Debug("confirmation screenshot failed", zap.Error(err))
	}

	out.Success = true
	return out
}

// locateLoop is the bounded retry protocol: capture, locate, and on any
// failed attempt scroll and settle before the next one. Capture failures
// and clean non-detections spend the same budget. Returns false with the
// control's not-found code after the last attempt, leaving the best
// confidence seen on the outcome so callers can tell a near-miss from a
// control that never rendered.
func (o *Orchestrator) locateLoop(ctx context.Context, v variant, out *Outcome) bool {
	var best float32
	for attempt := 1; attempt <= o.maxRetry; attempt++ {
		out.RetryCount = attempt

		res, found := o.attempt(ctx, v, attempt == o.maxRetry, out)
		if found {
			out.X, out.Y, out.Confidence = res.X, res.Y, res.Confidence
			o.metrics.ObserveLocate(res.Confidence)
			return true
		}
		if res.BestConfidence > best {
			best = res.BestConfidence
		}

		if attempt < o.maxRetry {
			if err := o.device.SwipeDown(ctx); err != nil {
				o.log.Warn("scroll failed", zap.Error(err))
			}
			o.settle(o.delays.Scroll)
		}
	}

	out.Error = v.notFound
	out.Confidence = best
	return false
}

func (o *Orchestrator) attempt(ctx context.Context, v variant, last bool, out *Outcome) (vision.Result, bool) {
	shot, err := o.device.Screenshot(ctx)
	if err != nil {
		o.log.Warn("screenshot failed", zap.Int("attempt", out.RetryCount), zap.Error(err))
		return vision.Result{}, false
	}

	frame, err := vision.DecodeFrame(shot)
	if err != nil {
		o.log.Warn("frame undecodable", zap.Int("attempt", out.RetryCount), zap.Error(err))
		return vision.Result{}, false
	}
	defer frame.Close()

	res, err := o.finder.Locate(frame, v.control, v.policy)
	if err != nil {
		o.log.Warn("locate failed", zap.String("control", v.control), zap.Error(err))
		return vision.Result{}, false
	}
	if res.Found {
		return res, true
	}

	o.log.Debug("control not on screen",
		zap.String("control", v.control),
		zap.Int("attempt", out.RetryCount),
		zap.Float32("best_confidence", res.BestConfidence))

	if last && o.debugDir != "" {
		path := filepath.Join(o.debugDir, fmt.Sprintf("%s_%s.png", v.action, out.RunID))
		if werr := vision.SaveFrame(path, frame); werr != nil {
			o.log.Debug("debug frame not saved", zap.Error(werr))
		} else {
			out.DebugScreenshot = path
		}
	}
	return res, false
}

// settle is the blind render wait. The device gives no readiness
// signal; zero durations turn the waits off in tests.
func (o *Orchestrator) settle(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
