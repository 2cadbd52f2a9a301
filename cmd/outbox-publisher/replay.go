package main

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Replay moves up to limit replayable dead-letter entries back onto the
// outbox with a fresh attempt budget and returns how many moved.
func (s *Service) Replay(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = s.batchSize
	}
	replayed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		entries, err := s.dlq.ListReplayableTx(tx, limit)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := s.repo.RequeueTx(tx, entry); err != nil {
				return fmt.Errorf("requeue %s: %w", entry.EventID, err)
			}
			if err := s.dlq.DeleteTx(tx, entry.ID); err != nil {
				return fmt.Errorf("delete dlq %s: %w", entry.ID, err)
			}
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"outbox_id":    entry.EventID.String(),
				"event_type":   entry.EventType,
				"error_reason": entry.ErrorReason,
			}), "outbox event requeued from dlq")
		}
		replayed = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.Replayed(replayed)
	return replayed, nil
}
