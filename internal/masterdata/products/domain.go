package products

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/pricing"
)

// Product is the catalog entry referenced by orders, receipts and invoices.
type Product struct {
	ID              uuid.UUID
	Name            string
	SKUCode         string
	HSNCode         string
	EANCode         string
	IsSerialized    bool
	UnitPrice       float64
	CostPrice       float64
	PurchaseTaxType pricing.TaxType
	PurchaseTaxID   uuid.UUID
	SaleTaxType     pricing.TaxType
	SaleTaxID       uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Tax is a named tax rate referenced by products.
type Tax struct {
	ID   uuid.UUID
	Name string
	Rate float64
}

var (
	// ErrNotFound indicates the product or tax does not exist.
	ErrNotFound = errors.New("products: not found")
)
