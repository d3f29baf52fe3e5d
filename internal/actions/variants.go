package actions

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"feedtap/internal/vision"
)

// Like taps the post's like control. Topmost selection keeps the
// post's own button ahead of the same button on replies further down.
func (o *Orchestrator) Like(ctx context.Context, postURL string) Outcome {
	return o.run(ctx, variant{
		action:   ActionLike,
		control:  vision.LikeButton,
		policy:   vision.Topmost,
		openWait: o.delays.Open,
		notFound: LikeButtonNotFound,
		tapError: TapFailed,
	}, postURL)
}

// Comment generates a reply for the pictured post and types it into the
// composer. Generation runs against the first frame, before the locate
// loop: an empty reply means there is nothing worth any device work.
func (o *Orchestrator) Comment(ctx context.Context, postURL, persona string) Outcome {
	return o.run(ctx, variant{
		action:   ActionComment,
		control:  vision.CommentButton,
		policy:   vision.Topmost,
		openWait: o.delays.Open,
		notFound: CommentButtonNotFound,
		tapError: TapFailed,
		before: func(ctx context.Context, out *Outcome) bool {
			shot, err := o.device.Screenshot(ctx)
			if err != nil {
				o.log.Warn("screenshot for generation failed", zap.Error(err))
				out.Error = ScreenshotFailed
				return false
			}
			comment, err := o.gen.Generate(ctx, shot, persona)
			if err != nil {
				o.log.Warn("comment generation failed", zap.Error(err))
				out.Error = CommentGenFailed
				return false
			}
			out.Comment = comment
			return true
		},
		after: func(ctx context.Context, out *Outcome) bool {
			o.settle(o.delays.Compose)
			if err := o.device.InputText(ctx, out.Comment); err != nil {
				o.log.Warn("comment input failed", zap.Error(err))
				out.Error = InputFailed
				return false
			}
			o.settle(o.delays.Input)
			// The composer's submit button sits at a stable position,
			// so the profile coordinate beats a second matching pass.
			submit := o.profile.PostSubmit
			if err := o.device.Tap(ctx, submit.X, submit.Y); err != nil {
				o.log.Warn("post tap failed", zap.Int("x", submit.X), zap.Int("y", submit.Y), zap.Error(err))
				out.Error = PostTapFailed
				return false
			}
			return true
		},
	}, postURL)
}

// Retweet taps the retweet control, then confirms on the repost bottom
// sheet. The sheet is localized with HighestConfidence since its
// position varies less than its rendering; when matching misses, the
// profile's fallback coordinate is tapped instead of aborting, reported
// with menu confidence zero.
func (o *Orchestrator) Retweet(ctx context.Context, postURL string) Outcome {
	return o.run(ctx, variant{
		action:   ActionRetweet,
		control:  vision.RetweetButton,
		policy:   vision.Topmost,
		openWait: o.delays.Open,
		notFound: RetweetButtonNotFound,
		tapError: TapRetweetButtonFailed,
		after: func(ctx context.Context, out *Outcome) bool {
			o.settle(o.delays.Menu)

			shot, err := o.device.Screenshot(ctx)
			if err != nil {
				o.log.Warn("menu screenshot failed", zap.Error(err))
				out.Error = ScreenshotMenuFailed
				return false
			}

			menu := o.profile.RepostOption
			menuX, menuY := menu.X, menu.Y
			var menuConf float32
			if frame, derr := vision.DecodeFrame(shot); derr == nil {
				res, lerr := o.finder.Locate(frame, vision.RepostOption, vision.HighestConfidence)
				frame.Close()
				if lerr == nil && res.Found {
					menuX, menuY, menuConf = res.X, res.Y, res.Confidence
				} else {
					o.log.Debug("repost option not matched, using fallback",
						zap.Int("x", menuX), zap.Int("y", menuY))
				}
			}

			out.MenuX, out.MenuY, out.MenuConfidence = menuX, menuY, menuConf
			if err := o.device.Tap(ctx, menuX, menuY); err != nil {
				o.log.Warn("repost option tap failed", zap.Int("x", menuX), zap.Int("y", menuY), zap.Error(err))
				out.Error = TapRepostOptionFailed
				return false
			}
			return true
		},
	}, postURL)
}

// Follow opens the profile page for a handle and taps the follow
// control, located visually with the standard loop.
func (o *Orchestrator) Follow(ctx context.Context, username string) Outcome {
	handle, url := profileURL(username)
	out := o.run(ctx, variant{
		action:   ActionFollow,
		control:  vision.FollowButton,
		policy:   vision.Topmost,
		openWait: o.delays.OpenProfile,
		notFound: FollowButtonNotFound,
		tapError: TapFollowButtonFailed,
	}, url)
	out.TargetUsername = handle
	return out
}

// FollowFixed follows using the profile's fixed button coordinate,
// skipping localization. For operators whose template set does not
// match the device resolution.
func (o *Orchestrator) FollowFixed(ctx context.Context, username string) Outcome {
	handle, url := profileURL(username)
	fixed := o.profile.FollowButton
	out := o.run(ctx, variant{
		action:   ActionFollow,
		openWait: o.delays.OpenProfile,
		tapError: TapFollowButtonFailed,
		fixed:    &fixed,
	}, url)
	out.TargetUsername = handle
	return out
}

func profileURL(username string) (handle, url string) {
	handle = strings.TrimPrefix(username, "@")
	return handle, "https://x.com/" + handle
}
