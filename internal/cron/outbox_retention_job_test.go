package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestOutboxRetentionJobDeletesPastCutoff(t *testing.T) {
	now := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{}
	job := newOutboxRetentionJob(t, repo, 7, 4)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-7 * 24 * time.Hour); !repo.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.lastCutoff)
	}
	if repo.minAttempts != 4 {
		t.Fatalf("expected attempts threshold 4, got %d", repo.minAttempts)
	}
}

func TestOutboxRetentionJobPrunesDeadLetters(t *testing.T) {
	now := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{}
	job := newOutboxRetentionJob(t, repo, 7, 4)
	job.dlq = repo
	job.dlqRetention = 60 * day
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-60 * day); !repo.dlqCutoff.Equal(want) {
		t.Fatalf("expected dlq cutoff %s, got %s", want, repo.dlqCutoff)
	}
}

func TestOutboxRetentionJobDefaults(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{}
	job := newOutboxRetentionJob(t, repo, 0, 0)
	if job.retention != defaultOutboxRetentionDays*day || job.maxAttempts != defaultOutboxMaxAttempts {
		t.Fatalf("unexpected defaults %s/%d", job.retention, job.maxAttempts)
	}
	if job.dlqRetention != defaultDLQRetentionDays*day {
		t.Fatalf("unexpected dlq retention %s", job.dlqRetention)
	}
	if job.dlq != nil {
		t.Fatal("dlq pruning should be off without a repository")
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{err: errors.New("boom")}
	job := newOutboxRetentionJob(t, repo, 0, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newOutboxRetentionJob(t *testing.T, repo *fakeOutboxRetentionRepo, days, attempts int) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:        logger.Nop(),
		DB:            passthroughTx{},
		Repository:    repo,
		RetentionDays: days,
		MaxAttempts:   attempts,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	return jobIface.(*outboxRetentionJob)
}

type fakeOutboxRetentionRepo struct {
	lastCutoff  time.Time
	dlqCutoff   time.Time
	minAttempts int
	err         error
}

func (f *fakeOutboxRetentionRepo) DeleteFailedBeforeTx(_ *gorm.DB, cutoff time.Time) (int64, error) {
	f.dlqCutoff = cutoff
	return 2, nil
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.lastCutoff = cutoff
	f.minAttempts = minAttemptCount
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
