package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	day = 24 * time.Hour

	defaultOutboxRetentionDays = 30
	defaultDLQRetentionDays    = 90
	defaultOutboxMaxAttempts   = 10
)

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    outboxRetentionRepo
	DLQ           dlqRetentionRepo
	RetentionDays int
	// DLQRetentionDays bounds how long dead letters stay replayable.
	DLQRetentionDays int
	MaxAttempts      int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBeforeTx(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob prunes relayed outbox rows, rows that exhausted their
// attempts and, when a DLQ repository is given, old dead letters.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		outbox:       params.Repository,
		dlq:          params.DLQ,
		retention:    time.Duration(orDefault(params.RetentionDays, defaultOutboxRetentionDays)) * day,
		dlqRetention: time.Duration(orDefault(params.DLQRetentionDays, defaultDLQRetentionDays)) * day,
		maxAttempts:  orDefault(params.MaxAttempts, defaultOutboxMaxAttempts),
		now:          time.Now,
	}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	outbox       outboxRetentionRepo
	dlq          dlqRetentionRepo
	retention    time.Duration
	dlqRetention time.Duration
	maxAttempts  int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes both tables in one transaction.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	outboxCutoff := now.Add(-j.retention)
	dlqCutoff := now.Add(-j.dlqRetention)

	var outboxDeleted, dlqDeleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if outboxDeleted, err = j.outbox.DeletePublishedBefore(ctx, tx, outboxCutoff, j.maxAttempts); err != nil {
			return fmt.Errorf("outbox: %w", err)
		}
		if j.dlq == nil {
			return nil
		}
		if dlqDeleted, err = j.dlq.DeleteFailedBeforeTx(tx, dlqCutoff); err != nil {
			return fmt.Errorf("dlq: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff":  outboxCutoff,
		"dlq_cutoff":     dlqCutoff,
		"max_attempts":   j.maxAttempts,
		"outbox_deleted": outboxDeleted,
		"dlq_deleted":    dlqDeleted,
	}), "outbox retention cleanup complete")
	return nil
}
