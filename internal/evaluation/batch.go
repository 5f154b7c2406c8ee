package evaluation

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
)

// Scorer grades one submission.
type Scorer interface {
	Score(ctx context.Context, in ScoreInput) (Result, error)
}

// BatchItem is one submission queued for evaluation.
type BatchItem struct {
	SubmissionID uint
	Label        string
	Text         string
}

// BatchRequest groups the items of one assignment with its reference data.
type BatchRequest struct {
	Keywords  KeywordSet
	MaxPoints float64
	Items     []BatchItem
}

// BatchConfig tunes the batch runner.
type BatchConfig struct {
	// Concurrency caps in-flight evaluations; 1 or less runs sequentially.
	Concurrency int
	// MaxAttempts bounds tries per submission for retryable upstream failures.
	MaxAttempts int
	RetryDelay  time.Duration
}

// BatchRunner evaluates submissions one by one or through a bounded pool.
// A single failure never stops the batch.
type BatchRunner struct {
	scorer   Scorer
	detector LowEffortDetector
	cfg      BatchConfig
	logger   zerolog.Logger
}

// NewBatchRunner constructs a runner.
func NewBatchRunner(scorer Scorer, detector LowEffortDetector, cfg BatchConfig, logger zerolog.Logger) *BatchRunner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &BatchRunner{
		scorer:   scorer,
		detector: detector,
		cfg:      cfg,
		logger:   logger.With().Str("component", "batch_runner").Logger(),
	}
}

// Detector returns the low-effort detector applied before scoring.
func (r *BatchRunner) Detector() LowEffortDetector {
	return r.detector
}

// EvaluateOne runs detection and scoring for a single item.
func (r *BatchRunner) EvaluateOne(ctx context.Context, keywords KeywordSet, maxPoints float64, item BatchItem) (outcome Outcome) {
	outcome = Outcome{SubmissionID: item.SubmissionID, Label: item.Label}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Interface("panic", p).Uint("submission_id", item.SubmissionID).Msg("evaluation panicked")
			outcome.Result = nil
			outcome.Err = fmt.Errorf("evaluation panicked: %v", p)
		}
	}()

	input := ScoreInput{
		Text:      item.Text,
		Keywords:  keywords,
		LowEffort: r.detector.Detect(item.Text, keywords),
		MaxPoints: maxPoints,
	}

	for attempt := 1; ; attempt++ {
		result, err := r.scorer.Score(ctx, input)
		if err == nil {
			outcome.Result = &result
			return outcome
		}

		upstream, ok := ai.AsUpstreamError(err)
		if !ok || !upstream.Retryable() || attempt >= r.cfg.MaxAttempts || ctx.Err() != nil {
			outcome.Err = err
			return outcome
		}

		delay := r.cfg.RetryDelay * time.Duration(attempt)
		r.logger.Warn().Err(err).Uint("submission_id", item.SubmissionID).Int("attempt", attempt).Dur("delay", delay).Msg("retrying evaluation")
		if !sleepContext(ctx, delay) {
			outcome.Err = err
			return outcome
		}
	}
}

// Stream lazily yields one outcome per item. Sequential runs preserve item
// order; pooled runs yield in completion order. Stopping the iteration or
// cancelling ctx stops new evaluations; outcomes left unfinished by
// cancellation are not yielded.
func (r *BatchRunner) Stream(ctx context.Context, req BatchRequest) iter.Seq[Outcome] {
	if r.cfg.Concurrency <= 1 {
		return func(yield func(Outcome) bool) {
			for _, item := range req.Items {
				if ctx.Err() != nil {
					return
				}
				outcome := r.EvaluateOne(ctx, req.Keywords, req.MaxPoints, item)
				if abandoned(ctx, outcome) {
					return
				}
				if !yield(outcome) {
					return
				}
			}
		}
	}

	return func(yield func(Outcome) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		outcomes := make(chan Outcome, len(req.Items))
		go func() {
			var group errgroup.Group
			group.SetLimit(r.cfg.Concurrency)
			for _, item := range req.Items {
				if ctx.Err() != nil {
					break
				}
				group.Go(func() error {
					outcomes <- r.EvaluateOne(ctx, req.Keywords, req.MaxPoints, item)
					return nil
				})
			}
			_ = group.Wait()
			close(outcomes)
		}()

		for outcome := range outcomes {
			if abandoned(ctx, outcome) {
				continue
			}
			if !yield(outcome) {
				cancel()
				for range outcomes {
				}
				return
			}
		}
	}
}

// Run drains Stream into a ResultSet, calling observe after each outcome.
func (r *BatchRunner) Run(ctx context.Context, req BatchRequest, observe func(Outcome)) *ResultSet {
	results := NewResultSet(req.Items)
	for outcome := range r.Stream(ctx, req) {
		results.Append(outcome)
		if observe != nil {
			observe(outcome)
		}
	}
	return results
}

func abandoned(ctx context.Context, outcome Outcome) bool {
	return ctx.Err() != nil && !outcome.Succeeded()
}

func sleepContext(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// ResultSet collects outcomes keyed by submission id. Appending is safe from
// multiple goroutines; a later outcome for the same id replaces the earlier one.
type ResultSet struct {
	mu       sync.RWMutex
	rank     map[uint]int
	outcomes map[uint]Outcome
	next     int
}

// NewResultSet orders outcomes like items; unknown ids sort after them.
func NewResultSet(items []BatchItem) *ResultSet {
	rank := make(map[uint]int, len(items))
	for i, item := range items {
		if _, exists := rank[item.SubmissionID]; !exists {
			rank[item.SubmissionID] = i
		}
	}
	return &ResultSet{rank: rank, outcomes: make(map[uint]Outcome, len(items)), next: len(items)}
}

// Append records an outcome.
func (s *ResultSet) Append(outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rank[outcome.SubmissionID]; !ok {
		s.rank[outcome.SubmissionID] = s.next
		s.next++
	}
	s.outcomes[outcome.SubmissionID] = outcome
}

// Get returns the outcome recorded for a submission.
func (s *ResultSet) Get(id uint) (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	outcome, ok := s.outcomes[id]
	return outcome, ok
}

// Len returns the number of recorded outcomes.
func (s *ResultSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outcomes)
}

// Outcomes returns recorded outcomes in item order.
func (s *ResultSet) Outcomes() []Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Outcome, 0, len(s.outcomes))
	for _, outcome := range s.outcomes {
		out = append(out, outcome)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.rank[out[i].SubmissionID] < s.rank[out[j].SubmissionID]
	})
	return out
}

// Report aggregates the recorded outcomes.
func (s *ResultSet) Report() Report {
	return Aggregate(s.Outcomes())
}
