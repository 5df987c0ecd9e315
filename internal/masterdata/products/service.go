package products

import (
	"context"

	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/pricing"
)

// RepositoryPort abstracts product and tax lookups for the service.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	GetTax(ctx context.Context, id uuid.UUID) (Tax, error)
}

// Service exposes catalog reads and tax resolution.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// List returns the catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx)
}

// IsSerialized reports whether the product is tracked at unit level.
func (s *Service) IsSerialized(ctx context.Context, id uuid.UUID) (bool, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return false, err
	}
	return product.IsSerialized, nil
}

// PurchaseTax resolves the product's configured purchase tax type and rate
// at call time. Products without a tax reference get a zero exclusive rate.
func (s *Service) PurchaseTax(ctx context.Context, id uuid.UUID) (pricing.TaxType, float64, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return pricing.TaxExclusive, 0, err
	}
	return s.resolveTax(ctx, product.PurchaseTaxType, product.PurchaseTaxID)
}

// SaleTax resolves the product's configured sale tax type and rate.
func (s *Service) SaleTax(ctx context.Context, id uuid.UUID) (pricing.TaxType, float64, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return pricing.TaxExclusive, 0, err
	}
	return s.resolveTax(ctx, product.SaleTaxType, product.SaleTaxID)
}

func (s *Service) resolveTax(ctx context.Context, taxType pricing.TaxType, taxID uuid.UUID) (pricing.TaxType, float64, error) {
	taxType = taxType.Normalize()
	if taxID == uuid.Nil {
		return taxType, 0, nil
	}
	tax, err := s.repo.GetTax(ctx, taxID)
	if err != nil {
		return taxType, 0, err
	}
	return taxType, tax.Rate, nil
}
