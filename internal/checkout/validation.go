package checkout

import (
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// validateOrder checks everything placeOrder needs before touching stock. All
// problems are reported together under INVALID_ORDER.
func validateOrder(cart *models.Cart, details types.CustomerDetails, method enums.PaymentMethod) error {
	problems := map[string]string{}

	for _, field := range details.MissingFields() {
		problems["customer_details."+field] = "is required"
	}
	if err := validate.Struct(details); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				key := "customer_details." + trimNamespace(fe.Namespace())
				if _, seen := problems[key]; !seen {
					problems[key] = fieldMessage(fe)
				}
			}
		}
	}
	if !method.IsValid() {
		problems["payment_method"] = "is not supported"
	}
	if len(cart.Items) == 0 {
		problems["items"] = "cart is empty"
	}
	for _, item := range cart.Items {
		if item.Quantity < 1 || item.UnitPriceCents < 0 {
			problems["items"] = "cart contains an invalid line"
			break
		}
	}
	if len(cart.Items) > 0 && cart.SubtotalCents <= 0 {
		problems["subtotal"] = "must be positive"
	}
	if len(cart.Items) > 0 && cart.TotalCents <= 0 {
		problems["total"] = "must be positive"
	}

	if len(problems) == 0 {
		return nil
	}
	fields := make([]string, 0, len(problems))
	for field := range problems {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return pkgerrors.New(pkgerrors.CodeInvalidOrder, "order is invalid").WithDetails(map[string]any{
		"fields":   fields,
		"problems": problems,
	})
}

// trimNamespace drops the root struct name from a validator namespace.
func trimNamespace(ns string) string {
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "len":
		return "must be " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}
