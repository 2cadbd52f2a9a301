package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics counts cart, reservation and order activity.
type CommerceMetrics struct {
	cartMutations       *prometheus.CounterVec
	reservationFailures prometheus.Counter
	versionConflicts    *prometheus.CounterVec
	ordersPlaced        *prometheus.CounterVec
	statusTransitions   *prometheus.CounterVec
	cartsExpired        prometheus.Counter
}

// NewCommerceMetrics registers the commerce metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	m := &CommerceMetrics{
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart mutations by operation and result.",
		}, []string{"op", "result"}),
		reservationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_reservation_failures_total",
			Help: "Reservations rejected for insufficient stock.",
		}),
		versionConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_version_conflicts_total",
			Help: "Optimistic concurrency conflicts on cart writes.",
		}, []string{"op"}),
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders created at checkout by payment method.",
		}, []string{"payment_method"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Order status transitions by target status.",
		}, []string{"from", "to"}),
		cartsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carts_expired_total",
			Help: "Carts deactivated by the expiry sweep.",
		}),
	}
	reg.MustRegister(m.cartMutations, m.reservationFailures, m.versionConflicts, m.ordersPlaced, m.statusTransitions, m.cartsExpired)
	return m
}

func (m *CommerceMetrics) CartMutation(op, result string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

func (m *CommerceMetrics) ReservationFailed() {
	if m == nil || m.reservationFailures == nil {
		return
	}
	m.reservationFailures.Inc()
}

func (m *CommerceMetrics) VersionConflict(op string) {
	if m == nil || m.versionConflicts == nil {
		return
	}
	m.versionConflicts.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *CommerceMetrics) OrderPlaced(paymentMethod string) {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

func (m *CommerceMetrics) StatusTransition(from, to string) {
	if m == nil || m.statusTransitions == nil {
		return
	}
	m.statusTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *CommerceMetrics) CartsExpired(n int) {
	if m == nil || m.cartsExpired == nil || n <= 0 {
		return
	}
	m.cartsExpired.Add(float64(n))
}
