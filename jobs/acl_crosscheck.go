package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/lingvodoc/lingvodoc/internal/acl"
	jobmetrics "github.com/lingvodoc/lingvodoc/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ACLCrossCheckJob evaluates a sampled decision through the direct and the
// generic path and reports any disagreement.
type ACLCrossCheckJob struct {
	Engine     *acl.Engine
	Reader     acl.Reader
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	ACLMetrics *acl.Metrics
}

// NewACLCrossCheckJob wires dependencies for the cross-check handler.
func NewACLCrossCheckJob(engine *acl.Engine, reader acl.Reader, logger *slog.Logger, metrics *jobmetrics.Metrics, aclMetrics *acl.Metrics) *ACLCrossCheckJob {
	return &ACLCrossCheckJob{Engine: engine, Reader: reader, Logger: logger, Metrics: metrics, ACLMetrics: aclMetrics}
}

// CrossCheckResult is the outcome of one replay.
type CrossCheckResult struct {
	Direct  bool
	Generic bool
}

// Agree reports whether both paths reached the same decision.
func (r CrossCheckResult) Agree() bool { return r.Direct == r.Generic }

// Handle processes TaskACLCrossCheck tasks.
func (j *ACLCrossCheckJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Engine == nil || j.Reader == nil {
		return errors.New("acl crosscheck: handler not configured")
	}
	var check acl.CrossCheck
	if err := json.Unmarshal(t.Payload(), &check); err != nil {
		return fmt.Errorf("acl crosscheck: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskACLCrossCheck)
	_, err := j.Run(ctx, check)
	return tracker.End(err)
}

// Run evaluates check through both paths concurrently, each in its own snapshot.
func (j *ACLCrossCheckJob) Run(ctx context.Context, check acl.CrossCheck) (CrossCheckResult, error) {
	logger := j.logger().With(
		slog.Int64("client_id", check.ClientID),
		slog.String("action", check.Action),
		slog.String("subject", check.Subject),
		slog.String("subject_id", check.Ref.String()),
	)

	var result CrossCheckResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return j.Reader.Read(gctx, func(st acl.Store) error {
			var err error
			result.Direct, err = j.Engine.CheckDirect(gctx, st, nil, check.ClientID, check.Action, check.Subject, check.Ref)
			return err
		})
	})
	g.Go(func() error {
		return j.Reader.Read(gctx, func(st acl.Store) error {
			var err error
			result.Generic, err = j.Engine.Check(gctx, st, nil, check.ClientID, check.Action, check.Subject, check.Ref)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, acl.ErrUnsupportedSubjectID) {
			logger.Error("acl crosscheck unsupported subject id", slog.Any("error", err))
			return result, fmt.Errorf("acl crosscheck: %v: %w", err, asynq.SkipRetry)
		}
		logger.Error("acl crosscheck", slog.Any("error", err))
		return result, err
	}

	if !result.Agree() {
		j.ACLMetrics.Mismatch(check.Subject)
		logger.Error("acl decision paths disagree", slog.Bool("direct", result.Direct), slog.Bool("generic", result.Generic))
		return result, nil
	}
	logger.Debug("acl crosscheck agreed", slog.Bool("allowed", result.Direct))
	return result, nil
}

func (j *ACLCrossCheckJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskACLCrossCheck))
	}
	return slog.Default().With(slog.String("job", TaskACLCrossCheck))
}

func (j *ACLCrossCheckJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
