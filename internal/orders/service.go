package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const maxAdminNotesLength = 2000

// Requester identifies who is reading or changing an order.
type Requester struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (r Requester) isAdmin() bool {
	return r.Role == enums.UserRoleAdmin
}

// UpdateStatusInput carries an admin status change.
type UpdateStatusInput struct {
	OrderID    uuid.UUID
	Status     enums.OrderStatus
	AdminNotes *string
	Actor      Requester
}

// Service defines order reads and lifecycle changes after placement.
type Service interface {
	GetOrder(ctx context.Context, orderID uuid.UUID, requester Requester) (*OrderView, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[OrderView], error)
	ListOrders(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (pagination.Page[OrderView], error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderView, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  inventory.Ledger
	outbox  outbox.Emitter
	metrics *metrics.CommerceMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, tx txRunner, ledger inventory.Ledger, emitter outbox.Emitter, m *metrics.CommerceMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		ledger:  ledger,
		outbox:  emitter,
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, requester Requester) (*OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	// other customers' orders are reported as missing
	if !requester.isAdmin() && order.UserID != requester.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	view := NewOrderView(*order)
	return &view, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[OrderView], error) {
	if userID == uuid.Nil {
		return pagination.Page[OrderView]{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	page, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return pagination.Page[OrderView]{}, mapListError(err)
	}
	return pagination.Map(page, NewOrderView), nil
}

func (s *service) ListOrders(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (pagination.Page[OrderView], error) {
	if status != nil && !status.IsValid() {
		return pagination.Page[OrderView]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": string(*status)})
	}
	page, err := s.repo.List(ctx, status, params)
	if err != nil {
		return pagination.Page[OrderView]{}, mapListError(err)
	}
	return pagination.Map(page, NewOrderView), nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": string(input.Status)})
	}
	if input.AdminNotes != nil && len(*input.AdminNotes) > maxAdminNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin notes too long").
			WithDetails(map[string]any{"max_length": maxAdminNotesLength})
	}
	return s.transition(ctx, input.OrderID, input.Status, input.Actor, func(order *models.Order) error {
		if input.AdminNotes != nil {
			notes := strings.TrimSpace(*input.AdminNotes)
			order.AdminNotes = &notes
		}
		return nil
	})
}

func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	actor := Requester{UserID: userID, Role: enums.UserRoleCustomer}
	return s.transition(ctx, orderID, enums.OrderStatusCancelled, actor, func(order *models.Order) error {
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order can no longer be cancelled").
				WithDetails(map[string]any{"from": string(order.Status), "to": string(enums.OrderStatusCancelled)})
		}
		return nil
	})
}

// transition loads the order, lets prepare veto or amend it, applies the status
// change and its side effects, and queues order_status_changed, all in one
// transaction.
func (s *service) transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor Requester, prepare func(*models.Order) error) (*OrderView, error) {
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	var (
		updated *models.Order
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		if err := prepare(order); err != nil {
			return err
		}

		from = order.Status
		now := s.now().UTC()
		if err := ApplyTransition(order, to, now); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, order, from); err != nil {
			return mapWriteError(err, "update order status")
		}
		if to == enums.OrderStatusCancelled {
			if err := s.restock(ctx, s.ledger.WithTx(tx), order); err != nil {
				return err
			}
		}

		updated = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			Data: outbox.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
				From:        from,
				To:          to,
				ChangedAt:   now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusTransition(string(from), string(to))
	logCtx := s.logg.WithFields(ctx, map[string]any{"from": string(from), "to": string(to)})
	s.logg.Info(logCtx, "order status changed")

	view := NewOrderView(*updated)
	return &view, nil
}

func (s *service) restock(ctx context.Context, ledger inventory.Ledger, order *models.Order) error {
	for _, item := range order.Items {
		v := inventory.Variant{ProductID: item.ProductID, Size: item.Size, Color: item.Color}
		if err := ledger.Restock(ctx, v, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func actorRef(r Requester) *outbox.ActorRef {
	if r.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: r.UserID, Role: string(r.Role)}
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func mapListError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
}

func mapWriteError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
