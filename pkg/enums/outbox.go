package enums

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateCart  OutboxAggregateType = "cart"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateCart}

func (a OutboxAggregateType) IsValid() bool { return member(aggregateTypes, a) }

// OutboxEventType names the domain event carried by an outbox row.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventCartExpired        OutboxEventType = "cart_expired"
)

var outboxEventTypes = []OutboxEventType{EventOrderCreated, EventOrderStatusChanged, EventCartExpired}

func (e OutboxEventType) IsValid() bool { return member(outboxEventTypes, e) }

// Aggregate returns the aggregate type every event of this kind belongs to.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	switch e {
	case EventOrderCreated, EventOrderStatusChanged:
		return AggregateOrder
	case EventCartExpired:
		return AggregateCart
	}
	return ""
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, outboxEventTypes)
}
