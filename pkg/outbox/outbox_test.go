package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestServiceEmitWritesEnvelopeInsideTx(t *testing.T) {
	conn := sqlitetest.Open(t, &models.OutboxEvent{})
	repo := NewRepository(conn)
	svc := NewService(repo, logger.Nop())
	orderID := uuid.New()

	err := db.FromGorm(conn).WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{UserID: uuid.New(), Role: "customer"},
			Data:          OrderCreatedEvent{OrderID: orderID, OrderNumber: "ORD-1", TotalCents: 1234},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)

	var data OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "ORD-1", data.OrderNumber)
	assert.Equal(t, int64(1234), data.TotalCents)
}

func TestServiceEmitRollsBackWithTx(t *testing.T) {
	conn := sqlitetest.Open(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(conn), nil)

	boom := errors.New("order insert failed")
	err := db.FromGorm(conn).WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventCartExpired,
			AggregateType: enums.AggregateCart,
			AggregateID:   uuid.New(),
			Data:          CartExpiredEvent{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestServiceEmitRejectsBadEvents(t *testing.T) {
	conn := sqlitetest.Open(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	assert.Error(t, svc.Emit(ctx, nil, DomainEvent{}))
	assert.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: "mystery", AggregateID: uuid.New()}))
	assert.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: enums.EventOrderCreated}))
	assert.Error(t, svc.Emit(ctx, conn, DomainEvent{
		EventType:     enums.EventCartExpired,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          CartExpiredEvent{},
	}))
}

func TestBuildRowDerivesAggregateAndStampsEnvelope(t *testing.T) {
	cartID := uuid.New()
	row, envelope, err := buildRow(DomainEvent{
		EventType:   enums.EventCartExpired,
		AggregateID: cartID,
		Data:        CartExpiredEvent{CartID: cartID, ReleasedUnits: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AggregateCart, row.AggregateType)
	assert.Equal(t, enums.EventCartExpired, envelope.EventType)
	assert.Equal(t, cartID, envelope.AggregateID)

	decoded, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, envelope.EventID, decoded.EventID)
	assert.JSONEq(t, string(envelope.Data), string(decoded.Data))
}

func TestDecodeEnvelopeRejectsEmptyData(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"version":1,"event_id":"x","data":null}`))
	assert.ErrorIs(t, err, errEmptyEnvelopeData)

	_, err = DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := sqlitetest.Open(t, &models.OutboxEvent{})
	repo := NewRepository(conn)

	first := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 3}
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1, "rows at max attempts are skipped")

	require.NoError(t, repo.MarkFailedTx(conn, rows[0].ID, errors.New("unavailable")))
	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", rows[0].ID).Error)
	assert.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
	assert.Equal(t, "unavailable", *reloaded.LastError)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	conn := sqlitetest.Open(t, &models.OutboxEvent{})
	repo := NewRepository(conn)
	now := time.Now().UTC()
	old := now.Add(-40 * 24 * time.Hour)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), PublishedAt: &old, CreatedAt: old},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), PublishedAt: &now, CreatedAt: now},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 10, CreatedAt: old},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 1, CreatedAt: old},
	}
	for _, row := range rows {
		require.NoError(t, repo.Insert(conn, row))
	}

	deleted, err := repo.DeletePublishedBefore(context.Background(), conn, now.Add(-30*24*time.Hour), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestEventRegistryResolve(t *testing.T) {
	reg, err := NewEventRegistry("sf-domain-events")
	require.NoError(t, err)

	orderID := uuid.New()
	row, _, err := buildRow(DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          OrderStatusChangedEvent{OrderID: orderID, From: enums.OrderStatusPending, To: enums.OrderStatusConfirmed},
	})
	require.NoError(t, err)

	resolved, err := reg.Resolve(row)
	require.NoError(t, err)
	assert.Equal(t, "sf-domain-events", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*OrderStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusConfirmed, payload.To)

	assert.Equal(t, orderID.String(), resolved.OrderingKey())
	attrs := resolved.Attributes(row)
	assert.Equal(t, "1", attrs["event_version"])
	assert.Equal(t, string(enums.EventOrderStatusChanged), attrs["event_type"])

	row.AggregateType = enums.AggregateCart
	_, err = reg.Resolve(row)
	var nonRetry NonRetryableError
	assert.True(t, errors.As(err, &nonRetry))

	_, err = NewEventRegistry("")
	assert.Error(t, err)
}

func TestDLQReplayRequeuesReplayableEntries(t *testing.T) {
	conn := sqlitetest.Open(t, &models.OutboxEvent{}, &models.OutboxDLQ{})
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)

	stuck := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 10}
	stuck.ID = uuid.New()
	require.NoError(t, repo.Insert(conn, stuck))

	pruned := uuid.New()
	msg := "topic missing"
	entries := []models.OutboxDLQ{
		{EventID: stuck.ID, EventType: stuck.EventType, AggregateType: stuck.AggregateType, AggregateID: stuck.AggregateID, Payload: stuck.Payload, ErrorReason: enums.OutboxDLQReasonMaxAttempts, AttemptCount: 10, FailedAt: time.Now().Add(-time.Hour)},
		{EventID: pruned, EventType: enums.EventCartExpired, AggregateType: enums.AggregateCart, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), ErrorReason: enums.OutboxDLQReasonUnroutable, ErrorMessage: &msg, FailedAt: time.Now()},
		{EventID: uuid.New(), EventType: enums.EventCartExpired, AggregateType: enums.AggregateCart, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), ErrorReason: enums.OutboxDLQReasonNonRetryable, FailedAt: time.Now()},
	}
	for _, entry := range entries {
		require.NoError(t, dlq.InsertTx(conn, entry))
	}

	replayable, err := dlq.ListReplayableTx(conn, 10)
	require.NoError(t, err)
	require.Len(t, replayable, 2)
	assert.Equal(t, stuck.ID, replayable[0].EventID)

	for _, entry := range replayable {
		require.NoError(t, repo.RequeueTx(conn, entry))
		require.NoError(t, dlq.DeleteTx(conn, entry.ID))
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	found, err := dlq.FindByEventID(context.Background(), pruned)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestDLQDeleteFailedBefore(t *testing.T) {
	conn := sqlitetest.Open(t, &models.OutboxDLQ{})
	dlq := NewDLQRepository(conn)
	now := time.Now().UTC()

	for _, failedAt := range []time.Time{now.Add(-100 * 24 * time.Hour), now.Add(-95 * 24 * time.Hour), now} {
		require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventCartExpired,
			AggregateType: enums.AggregateCart,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			FailedAt:      failedAt,
		}))
	}

	deleted, err := dlq.DeleteFailedBeforeTx(conn, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxDLQ{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}
