package actions

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"feedtap/internal/config"
	"feedtap/internal/vision"
)

// framePNG is a small but valid capture payload; every attempt decodes
// it into a real frame before the finder runs.
var framePNG = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 16), uint8(y * 16), 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

type tapPoint struct{ X, Y int }

// fakeDevice records every collaborator call and fails the ones the
// test arms.
type fakeDevice struct {
	openErr  error
	shotErr  error
	inputErr error
	// failTapAt fails the nth Tap call, 1-based; zero never fails.
	failTapAt int

	opened []string
	shots  int
	taps   []tapPoint
	swipes int
	inputs []string
}

func (d *fakeDevice) OpenURL(_ context.Context, url string) error {
	d.opened = append(d.opened, url)
	return d.openErr
}

func (d *fakeDevice) Screenshot(_ context.Context) ([]byte, error) {
	d.shots++
	if d.shotErr != nil {
		return nil, d.shotErr
	}
	return framePNG, nil
}

func (d *fakeDevice) Tap(_ context.Context, x, y int) error {
	d.taps = append(d.taps, tapPoint{x, y})
	if d.failTapAt == len(d.taps) {
		return errors.New("tap rejected")
	}
	return nil
}

func (d *fakeDevice) SwipeDown(_ context.Context) error {
	d.swipes++
	return nil
}

func (d *fakeDevice) Swipe(_ context.Context, _, _, _, _, _ int) error { return nil }

func (d *fakeDevice) InputText(_ context.Context, text string) error {
	d.inputs = append(d.inputs, text)
	return d.inputErr
}

// fakeFinder answers from a scripted queue per control; an exhausted or
// missing queue means not found.
type fakeFinder struct {
	results  map[string][]vision.Result
	calls    []string
	policies []vision.Policy
}

func (f *fakeFinder) Locate(_ gocv.Mat, control string, policy vision.Policy) (vision.Result, error) {
	f.calls = append(f.calls, control)
	f.policies = append(f.policies, policy)
	q := f.results[control]
	if len(q) == 0 {
		return vision.Result{}, nil
	}
	res := q[0]
	f.results[control] = q[1:]
	return res, nil
}

type fakeGen struct {
	comment string
	err     error
	calls   int
}

func (g *fakeGen) Generate(_ context.Context, _ []byte, _ string) (string, error) {
	g.calls++
	return g.comment, g.err
}

func found(x, y int, conf float32) vision.Result {
	return vision.Result{Found: true, X: x, Y: y, Confidence: conf, Count: 1, BestConfidence: conf}
}

func notFound(best float32) vision.Result {
	return vision.Result{BestConfidence: best}
}

func newOrchestrator(dev *fakeDevice, f *fakeFinder, g *fakeGen) *Orchestrator {
	opts := Options{
		Device:   dev,
		Finder:   f,
		Profile:  config.FHD,
		MaxRetry: 3,
		DeviceID: "dev-1",
	}
	if g != nil {
		opts.Generator = g
	}
	return New(opts)
}

func TestLikeOpenURLFailureStopsEverything(t *testing.T) {
	dev := &fakeDevice{openErr: errors.New("navigation rejected")}
	f := &fakeFinder{}

	out := newOrchestrator(dev, f, nil).Like(context.Background(), "https://x.com/user/status/1")

	assert.False(t, out.Success)
	assert.Equal(t, FailedToOpenURL, out.Error)
	assert.Equal(t, 0, out.RetryCount)
	assert.Zero(t, dev.shots)
	assert.Empty(t, dev.taps)
	assert.Zero(t, dev.swipes)
	assert.Empty(t, f.calls)
}

func TestLikeFirstAttemptSuccess(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.LikeButton: {found(540, 930, 0.94)},
	}}

	out := newOrchestrator(dev, f, nil).Like(context.Background(), "https://x.com/user/status/1")

	assert.True(t, out.Success)
	assert.Empty(t, out.Error)
	assert.Equal(t, 540, out.X)
	assert.Equal(t, 930, out.Y)
	assert.InDelta(t, 0.94, float64(out.Confidence), 1e-6)
	assert.Equal(t, 1, out.RetryCount)
	assert.Equal(t, ActionLike, out.Action)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "dev-1", out.DeviceID)

	assert.Equal(t, []tapPoint{{540, 930}}, dev.taps)
	assert.Zero(t, dev.swipes)
	// locate shot plus the best-effort confirmation
	assert.Equal(t, 2, dev.shots)
}

func TestLikeRetryBudgetExhausted(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.LikeButton: {notFound(0.31), notFound(0.42), notFound(0.17)},
	}}

	out := newOrchestrator(dev, f, nil).Like(context.Background(), "https://x.com/user/status/1")

	assert.False(t, out.Success)
	assert.Equal(t, LikeButtonNotFound, out.Error)
	assert.Equal(t, 3, out.RetryCount)
	assert.InDelta(t, 0.42, float64(out.Confidence), 1e-6, "best confidence across attempts")

	assert.Equal(t, 3, dev.shots, "exactly MAX_RETRY localization attempts")
	assert.Equal(t, 2, dev.swipes, "scroll between attempts, not after the last")
	assert.Empty(t, dev.taps)
}

func TestLikeScreenshotFailureSpendsBudget(t *testing.T) {
	dev := &fakeDevice{shotErr: errors.New("screencap broken")}
	f := &fakeFinder{}

	out := newOrchestrator(dev, f, nil).Like(context.Background(), "https://x.com/user/status/1")

	assert.False(t, out.Success)
	assert.Equal(t, LikeButtonNotFound, out.Error, "capture failure surfaces as not found, not a capture error")
	assert.Equal(t, 3, out.RetryCount)
	assert.Equal(t, 2, dev.swipes)
	assert.Empty(t, f.calls, "nothing to match without a frame")
}

func TestLikeTapFailure(t *testing.T) {
	dev := &fakeDevice{failTapAt: 1}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.LikeButton: {found(540, 930, 0.9)},
	}}

	out := newOrchestrator(dev, f, nil).Like(context.Background(), "https://x.com/user/status/1")

	assert.False(t, out.Success)
	assert.Equal(t, TapFailed, out.Error)
	assert.Equal(t, 540, out.X)
	assert.Equal(t, 930, out.Y)
	assert.Equal(t, 1, out.RetryCount)
}

func TestLikeDebugScreenshotOnExhaustion(t *testing.T) {
	dir := t.TempDir()
	dev := &fakeDevice{}
	f := &fakeFinder{}

	o := New(Options{
		Device:   dev,
		Finder:   f,
		Profile:  config.FHD,
		MaxRetry: 3,
		DebugDir: dir,
	})
	out := o.Like(context.Background(), "https://x.com/user/status/1")

	assert.False(t, out.Success)
	require.NotEmpty(t, out.DebugScreenshot)
	_, err := os.Stat(out.DebugScreenshot)
	assert.NoError(t, err, "last frame kept for diagnosis")
}

func TestCommentGenerationFailFast(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{}
	gen := &fakeGen{err: errors.New("model unavailable")}

	out := newOrchestrator(dev, f, gen).Comment(context.Background(), "https://x.com/user/status/1", "persona")

	assert.False(t, out.Success)
	assert.Equal(t, CommentGenFailed, out.Error)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, dev.shots, "only the generation frame, nothing after the failure")
	assert.Empty(t, dev.taps)
	assert.Empty(t, f.calls)
}

func TestCommentGenerationScreenshotFailure(t *testing.T) {
	dev := &fakeDevice{shotErr: errors.New("screencap broken")}
	gen := &fakeGen{comment: "never reached"}

	out := newOrchestrator(dev, &fakeFinder{}, gen).Comment(context.Background(), "https://x.com/user/status/1", "persona")

	assert.False(t, out.Success)
	assert.Equal(t, ScreenshotFailed, out.Error)
	assert.Zero(t, gen.calls)
}

func TestCommentFullFlow(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.CommentButton: {found(480, 940, 0.88)},
	}}
	gen := &fakeGen{comment: "素敵な景色ですね！どこですか？"}

	out := newOrchestrator(dev, f, gen).Comment(context.Background(), "https://x.com/user/status/1", "persona")

	assert.True(t, out.Success)
	assert.Equal(t, "素敵な景色ですね！どこですか？", out.Comment)
	assert.Equal(t, []string{"素敵な景色ですね！どこですか？"}, dev.inputs)
	// comment control first, then the composer submit coordinate
	require.Len(t, dev.taps, 2)
	assert.Equal(t, tapPoint{480, 940}, dev.taps[0])
	assert.Equal(t, tapPoint{config.FHD.PostSubmit.X, config.FHD.PostSubmit.Y}, dev.taps[1])
}

func TestCommentInputFailureCarriesComment(t *testing.T) {
	dev := &fakeDevice{inputErr: errors.New("keyboard missing")}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.CommentButton: {found(480, 940, 0.88)},
	}}
	gen := &fakeGen{comment: "いいですね！"}

	out := newOrchestrator(dev, f, gen).Comment(context.Background(), "https://x.com/user/status/1", "persona")

	assert.False(t, out.Success)
	assert.Equal(t, InputFailed, out.Error)
	assert.Equal(t, "いいですね！", out.Comment, "partial result survives the failure")
}

func TestCommentPostTapFailure(t *testing.T) {
	dev := &fakeDevice{failTapAt: 2}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.CommentButton: {found(480, 940, 0.88)},
	}}
	gen := &fakeGen{comment: "いいですね！"}

	out := newOrchestrator(dev, f, gen).Comment(context.Background(), "https://x.com/user/status/1", "persona")

	assert.False(t, out.Success)
	assert.Equal(t, PostTapFailed, out.Error)
	assert.Equal(t, "いいですね！", out.Comment)
}

func TestRetweetMenuLocated(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.RetweetButton: {found(400, 930, 0.86)},
		vision.RepostOption:  {found(240, 1430, 0.91)},
	}}

	out := newOrchestrator(dev, f, nil).Retweet(context.Background(), "https://x.com/user/status/1")

	assert.True(t, out.Success)
	assert.Equal(t, 240, out.MenuX)
	assert.Equal(t, 1430, out.MenuY)
	assert.InDelta(t, 0.91, float64(out.MenuConfidence), 1e-6)

	require.Len(t, f.policies, 2)
	assert.Equal(t, vision.Topmost, f.policies[0])
	assert.Equal(t, vision.HighestConfidence, f.policies[1], "menu pass selects on best match")
	assert.Equal(t, []tapPoint{{400, 930}, {240, 1430}}, dev.taps)
}

func TestRetweetMenuFallbackCoordinate(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.RetweetButton: {found(400, 930, 0.86)},
	}}

	out := newOrchestrator(dev, f, nil).Retweet(context.Background(), "https://x.com/user/status/1")

	assert.True(t, out.Success, "fallback tap still completes the action")
	assert.Equal(t, config.FHD.RepostOption.X, out.MenuX)
	assert.Equal(t, config.FHD.RepostOption.Y, out.MenuY)
	assert.Zero(t, out.MenuConfidence, "zero confidence marks the coordinate fallback")
	assert.Equal(t, []tapPoint{{400, 930}, {config.FHD.RepostOption.X, config.FHD.RepostOption.Y}}, dev.taps)
}

func TestRetweetMenuScreenshotFailure(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.RetweetButton: {found(400, 930, 0.86)},
	}}
	o := newOrchestrator(dev, f, nil)

	// Arm the capture failure only after the locate loop's shot.
	wrapped := &failAfterDevice{fakeDevice: dev, failFrom: 2}
	o.device = wrapped

	out := o.Retweet(context.Background(), "https://x.com/user/status/1")

	assert.False(t, out.Success)
	assert.Equal(t, ScreenshotMenuFailed, out.Error)
	assert.Equal(t, 400, out.X)
	assert.Equal(t, 930, out.Y)
}

// failAfterDevice fails Screenshot from the nth call on.
type failAfterDevice struct {
	*fakeDevice
	failFrom int
}

func (d *failAfterDevice) Screenshot(ctx context.Context) ([]byte, error) {
	if d.fakeDevice.shots+1 >= d.failFrom {
		d.fakeDevice.shots++
		return nil, errors.New("screencap broken")
	}
	return d.fakeDevice.Screenshot(ctx)
}

func TestFollowBuildsProfileURL(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.FollowButton: {found(985, 905, 0.9)},
	}}

	out := newOrchestrator(dev, f, nil).Follow(context.Background(), "@some_user")

	assert.True(t, out.Success)
	assert.Equal(t, "some_user", out.TargetUsername)
	assert.Equal(t, []string{"https://x.com/some_user"}, dev.opened)
	assert.Equal(t, []tapPoint{{985, 905}}, dev.taps)
}

func TestFollowButtonNotFound(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{}

	out := newOrchestrator(dev, f, nil).Follow(context.Background(), "some_user")

	assert.False(t, out.Success)
	assert.Equal(t, FollowButtonNotFound, out.Error)
	assert.Equal(t, "some_user", out.TargetUsername)
	assert.Equal(t, 3, out.RetryCount)
}

func TestFollowFixedSkipsLocalization(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{}

	out := newOrchestrator(dev, f, nil).FollowFixed(context.Background(), "@some_user")

	assert.True(t, out.Success)
	assert.Equal(t, "some_user", out.TargetUsername)
	assert.Equal(t, config.FHD.FollowButton.X, out.X)
	assert.Equal(t, config.FHD.FollowButton.Y, out.Y)
	assert.Zero(t, out.Confidence, "fixed coordinate, not a match score")
	assert.Equal(t, 1, out.RetryCount)
	assert.Empty(t, f.calls, "no matching on the fixed path")
}

func TestConfirmationScreenshotFailureIsIgnored(t *testing.T) {
	dev := &fakeDevice{}
	f := &fakeFinder{results: map[string][]vision.Result{
		vision.LikeButton: {found(540, 930, 0.94)},
	}}
	o := newOrchestrator(dev, f, nil)
	o.device = &failAfterDevice{fakeDevice: dev, failFrom: 2}

	out := o.Like(context.Background(), "https://x.com/user/status/1")

	assert.True(t, out.Success, "confirmation capture is best effort")
}
