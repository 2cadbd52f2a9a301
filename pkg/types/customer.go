package types

import "strings"

// Address is a postal address captured with an order.
type Address struct {
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	State      string  `json:"state,omitempty" validate:"omitempty,max=100"`
	PostalCode string  `json:"postal_code" validate:"required,max=20"`
	Country    string  `json:"country" validate:"required,len=2"`
}

// CustomerDetails is the contact and delivery snapshot stored on an order.
type CustomerDetails struct {
	FullName string  `json:"full_name" validate:"required,max=200"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Address  Address `json:"address" validate:"required"`
}

// MissingFields lists the required fields that are blank.
func (c CustomerDetails) MissingFields() []string {
	missing := []string{}
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("full_name", c.FullName)
	check("email", c.Email)
	check("address.line1", c.Address.Line1)
	check("address.city", c.Address.City)
	check("address.postal_code", c.Address.PostalCode)
	check("address.country", c.Address.Country)
	return missing
}
