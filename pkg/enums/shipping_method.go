package enums

// ShippingMethod is the delivery speed selected on a cart.
type ShippingMethod string

const (
	ShippingFree      ShippingMethod = "free"
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
)

// DefaultShippingMethod is applied to newly created carts.
const DefaultShippingMethod = ShippingStandard

var shippingMethods = []ShippingMethod{ShippingFree, ShippingStandard, ShippingExpress, ShippingOvernight}

func (m ShippingMethod) String() string { return string(m) }

func (m ShippingMethod) IsValid() bool { return member(shippingMethods, m) }

func ParseShippingMethod(value string) (ShippingMethod, error) {
	return parse("shipping method", value, shippingMethods)
}
