package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

type fixture struct {
	conn    *gorm.DB
	repo    Repository
	ledger  *inventory.Repository
	emitter *recordingEmitter
	svc     *service
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := sqlitetest.Open(t, &models.Order{}, &models.OrderItem{}, &models.InventoryRecord{})
	f := &fixture{
		conn:    conn,
		repo:    NewRepository(conn),
		ledger:  inventory.NewRepository(conn),
		emitter: &recordingEmitter{},
		now:     time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(f.repo, db.FromGorm(conn), f.ledger, f.emitter, nil, logger.Nop())
	require.NoError(t, err)
	f.svc = svc.(*service)
	f.svc.now = func() time.Time { return f.now }
	return f
}

// seedOrder stores a pending order for userID holding qty units of a fresh
// variant whose on-hand stock is onHand.
func (f *fixture) seedOrder(t *testing.T, userID uuid.UUID, qty, onHand int) (*models.Order, inventory.Variant) {
	t.Helper()
	v := inventory.Variant{ProductID: uuid.New(), Size: "M", Color: "Blue"}
	require.NoError(t, f.conn.Create(&models.InventoryRecord{ProductID: v.ProductID, Size: v.Size, Color: v.Color, Quantity: onHand}).Error)

	order := &models.Order{
		OrderNumber:     "ORD-" + uuid.NewString()[:8],
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		CustomerDetails: types.CustomerDetails{FullName: "Ada", Email: "ada@example.com", Address: types.Address{Line1: "1 Main", City: "Austin", PostalCode: "78701", Country: "US"}},
		PaymentMethod:   enums.PaymentMethodCard,
		SubtotalCents:   2999 * int64(qty),
		ShippingMethod:  enums.ShippingStandard,
		TotalCents:      2999 * int64(qty),
		Items: []models.OrderItem{{
			LineNumber:     1,
			ProductID:      v.ProductID,
			ProductTitle:   "Tee",
			SKU:            "TEE-1",
			Size:           v.Size,
			Color:          v.Color,
			Quantity:       qty,
			UnitPriceCents: 2999,
			LineTotalCents: 2999 * int64(qty),
		}},
	}
	require.NoError(t, f.repo.Create(context.Background(), order))
	return order, v
}

func (f *fixture) onHand(t *testing.T, v inventory.Variant) int {
	t.Helper()
	record, err := f.ledger.Get(context.Background(), v)
	require.NoError(t, err)
	return record.Quantity
}

func admin() Requester {
	return Requester{UserID: uuid.New(), Role: enums.UserRoleAdmin}
}

func TestGetOrderVisibility(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	order, _ := f.seedOrder(t, owner, 1, 5)
	ctx := context.Background()

	view, err := f.svc.GetOrder(ctx, order.ID, Requester{UserID: owner, Role: enums.UserRoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, view.OrderNumber)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Austin", view.CustomerDetails.Address.City)

	_, err = f.svc.GetOrder(ctx, order.ID, Requester{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.GetOrder(ctx, order.ID, admin())
	assert.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, uuid.New(), admin())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateStatusWalksLifecycle(t *testing.T) {
	f := newFixture(t)
	order, _ := f.seedOrder(t, uuid.New(), 1, 5)
	ctx := context.Background()
	notes := "  left at front desk "

	for _, status := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusProcessing, enums.OrderStatusShipped} {
		_, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: status, Actor: admin()})
		require.NoError(t, err, "transition to %s", status)
	}
	f.now = f.now.Add(48 * time.Hour)
	view, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusDelivered, AdminNotes: &notes, Actor: admin()})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusDelivered, view.Status)
	require.NotNil(t, view.ActualDelivery)
	assert.True(t, view.ActualDelivery.Equal(f.now))
	require.NotNil(t, view.EstimatedDelivery)

	stored, err := f.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	require.NotNil(t, stored.AdminNotes)
	assert.Equal(t, "left at front desk", *stored.AdminNotes)

	require.Len(t, f.emitter.events, 4)
	last := f.emitter.events[3].Data.(outbox.OrderStatusChangedEvent)
	assert.Equal(t, enums.OrderStatusShipped, last.From)
	assert.Equal(t, enums.OrderStatusDelivered, last.To)
}

func TestUpdateStatusRejectsSkipsAndTerminalStates(t *testing.T) {
	f := newFixture(t)
	order, _ := f.seedOrder(t, uuid.New(), 1, 5)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusShipped, Actor: admin()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusPending, Actor: admin()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: "misplaced", Actor: admin()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusCancelled, Actor: admin()})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: admin()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))

	assert.Len(t, f.emitter.events, 1)
}

func TestCancelRestocksEveryLine(t *testing.T) {
	f := newFixture(t)
	order, v := f.seedOrder(t, uuid.New(), 3, 2)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: admin()})
	require.NoError(t, err)
	view, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusCancelled, Actor: admin()})
	require.NoError(t, err)

	require.NotNil(t, view.CancelledAt)
	assert.Equal(t, 5, f.onHand(t, v))
}

func TestCancelOrderByOwner(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	order, v := f.seedOrder(t, owner, 2, 0)
	ctx := context.Background()

	_, err := f.svc.CancelOrder(ctx, uuid.New(), order.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	view, err := f.svc.CancelOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, view.Status)
	assert.Equal(t, 2, f.onHand(t, v))

	_, err = f.svc.CancelOrder(ctx, owner, order.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
	assert.Equal(t, 2, f.onHand(t, v), "a second cancel must not restock twice")
}

func TestCancelOrderOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	order, v := f.seedOrder(t, owner, 1, 4)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: admin()})
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, owner, order.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
	assert.Equal(t, 4, f.onHand(t, v))
}

func TestTransitionRollsBackWhenEventFails(t *testing.T) {
	f := newFixture(t)
	order, v := f.seedOrder(t, uuid.New(), 2, 1)
	f.emitter.err = pkgerrors.New(pkgerrors.CodeDependency, "outbox down")

	_, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusCancelled, Actor: admin()})
	require.Error(t, err)

	stored, err := f.repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, 1, f.onHand(t, v))
}

func TestListUserOrdersPaginates(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	for i := 0; i < 3; i++ {
		f.seedOrder(t, owner, 1, 1)
	}
	f.seedOrder(t, uuid.New(), 1, 1)
	ctx := context.Background()

	first, err := f.svc.ListUserOrders(ctx, owner, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListUserOrders(ctx, owner, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, o := range append(first.Items, second.Items...) {
		assert.Equal(t, owner, o.UserID)
		seen[o.ID] = true
	}
	assert.Len(t, seen, 3)

	_, err = f.svc.ListUserOrders(ctx, owner, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	confirmed, _ := f.seedOrder(t, uuid.New(), 1, 1)
	f.seedOrder(t, uuid.New(), 1, 1)

	_, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: confirmed.ID, Status: enums.OrderStatusConfirmed, Actor: admin()})
	require.NoError(t, err)

	status := enums.OrderStatusConfirmed
	page, err := f.svc.ListOrders(ctx, &status, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, confirmed.ID, page.Items[0].ID)

	all, err := f.svc.ListOrders(ctx, nil, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	bogus := enums.OrderStatus("lost")
	_, err = f.svc.ListOrders(ctx, &bogus, pagination.Params{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
