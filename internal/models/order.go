package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type BillingDetails struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	StreetAddress string `json:"street_address"`
	Apartment     string `json:"apartment,omitempty"`
	City          string `json:"city"`
	Province      string `json:"province"`
	Zip           string `json:"zip"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Notes         string `json:"notes,omitempty"`
}

// RequiredFields lists field name and value pairs that must be non-empty, in form order.
func (b BillingDetails) RequiredFields() [][2]string {
	return [][2]string{
		{"first_name", b.FirstName},
		{"last_name", b.LastName},
		{"street_address", b.StreetAddress},
		{"city", b.City},
		{"province", b.Province},
		{"zip", b.Zip},
		{"phone", b.Phone},
		{"email", b.Email},
	}
}

func (b BillingDetails) Normalized() BillingDetails {
	b.FirstName = strings.TrimSpace(b.FirstName)
	b.LastName = strings.TrimSpace(b.LastName)
	b.StreetAddress = strings.TrimSpace(b.StreetAddress)
	b.Apartment = strings.TrimSpace(b.Apartment)
	b.City = strings.TrimSpace(b.City)
	b.Province = strings.TrimSpace(b.Province)
	b.Zip = strings.TrimSpace(b.Zip)
	b.Phone = strings.TrimSpace(b.Phone)
	b.Email = strings.TrimSpace(b.Email)
	return b
}

// Order is created once by the backend; ID and Amount never change afterwards.
type Order struct {
	ID              string
	Amount          decimal.Decimal
	Method          PaymentMethod
	ShippingAddress BillingDetails
	BillingDetails  BillingDetails
}

type CreateOrderRequest struct {
	Billing BillingDetails
	Method  PaymentMethod
	Cart    *CartSnapshot
}

type CreateOrderResult struct {
	OrderID string
	// Amount is set only when the backend reports the charge explicitly.
	Amount *decimal.Decimal
}
