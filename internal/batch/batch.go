// Package batch runs a list of engagement targets through the action
// orchestrator: a bounded worker pool with pacing between action
// starts, a progress bar for the operator, and optional outcome
// persistence. Targets are independent; one failure never stops the
// rest.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"feedtap/internal/actions"
	"feedtap/internal/store"
)

// Target is one line of the batch file.
type Target struct {
	Action   string `json:"action"`
	URL      string `json:"url,omitempty"`
	Username string `json:"username,omitempty"`
	Persona  string `json:"persona,omitempty"`
}

// Validate checks the action name and its required field.
func (t Target) Validate() error {
	switch t.Action {
	case actions.ActionLike, actions.ActionComment, actions.ActionRetweet:
		if t.URL == "" {
			return fmt.Errorf("action %s needs a url", t.Action)
		}
	case actions.ActionFollow:
		if t.Username == "" {
			return fmt.Errorf("action %s needs a username", t.Action)
		}
	default:
		return fmt.Errorf("unknown action %q", t.Action)
	}
	if t.Action == actions.ActionComment && t.Persona == "" {
		return fmt.Errorf("action %s needs a persona", t.Action)
	}
	return nil
}

// ReadTargets parses a JSON-lines batch file. Blank lines and lines
// starting with # are skipped.
func ReadTargets(path string) ([]Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	var targets []Target
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var t Target
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			return nil, fmt.Errorf("batch file line %d: %w", lineNo, err)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("batch file line %d: %w", lineNo, err)
		}
		targets = append(targets, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("batch file %s holds no targets", path)
	}
	return targets, nil
}

// ActionRunner is the slice of the orchestrator the batch needs.
type ActionRunner interface {
	Like(ctx context.Context, postURL string) actions.Outcome
	Comment(ctx context.Context, postURL, persona string) actions.Outcome
	Retweet(ctx context.Context, postURL string) actions.Outcome
	Follow(ctx context.Context, username string) actions.Outcome
}

// Options configure one batch run. Store may be nil; Interval zero
// disables pacing; Workers below one means one.
type Options struct {
	Runner   ActionRunner
	Store    *store.Store
	Workers  int
	Interval time.Duration
	Progress bool
	Logger   *zap.Logger
}

// Summary is the terminal report of one batch run.
type Summary struct {
	BatchID   string            `json:"batch_id"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Outcomes  []actions.Outcome `json:"outcomes"`
}

// Run works through targets until done or the context is cancelled.
// Cancellation takes effect between targets; in-flight actions run to
// their own terminal outcome.
func Run(ctx context.Context, targets []Target, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("component", "batch"))

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.NewOptions64(int64(len(targets)),
			progressbar.OptionSetDescription("Running actions"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
	}

	batchID := uuid.NewString()
	log.Info("batch started",
		zap.String("batch_id", batchID),
		zap.Int("targets", len(targets)),
		zap.Int("workers", workers))

	results := make([]actions.Outcome, len(targets))
	done := make([]bool, len(targets))
	var storeMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, target := range targets {
		if gctx.Err() != nil {
			break
		}
		i, target := i, target
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				// Cancelled while pacing; the target stays skipped.
				return nil
			}

			out := dispatch(gctx, opts.Runner, target)
			results[i] = out
			done[i] = true

			if opts.Store != nil {
				storeMu.Lock()
				if err := opts.Store.Append(batchID, out); err != nil {
					log.Warn("outcome not stored", zap.String("run_id", out.RunID), zap.Error(err))
				}
				storeMu.Unlock()
			}
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{BatchID: batchID, Total: len(targets)}
	for i := range targets {
		if !done[i] {
			summary.Skipped++
			continue
		}
		summary.Outcomes = append(summary.Outcomes, results[i])
		if results[i].Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	log.Info("batch done",
		zap.String("batch_id", batchID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

func dispatch(ctx context.Context, runner ActionRunner, t Target) actions.Outcome {
	switch t.Action {
	case actions.ActionLike:
		return runner.Like(ctx, t.URL)
	case actions.ActionComment:
		return runner.Comment(ctx, t.URL, t.Persona)
	case actions.ActionRetweet:
		return runner.Retweet(ctx, t.URL)
	case actions.ActionFollow:
		return runner.Follow(ctx, t.Username)
	}
	// Unreachable for validated targets.
	return actions.Outcome{Action: t.Action, Target: t.URL}
}
