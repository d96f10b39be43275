package usecase

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/bilal-alaabadi/ightt-b/internal/domain"
)

var _ domain.ProductUseCase = (*productUseCase)(nil)

type productUseCase struct {
	productRepo domain.ProductRepository
	log         *logrus.Logger
}

func NewProductUseCase(repo domain.ProductRepository, logger *logrus.Logger) domain.ProductUseCase {
	return &productUseCase{
		productRepo: repo,
		log:         logger,
	}
}

func (uc *productUseCase) CreateProduct(product *domain.Product) (*domain.Product, error) {
	if product.Name == "" {
		return nil, errors.New("invalid product: name cannot be empty")
	}
	if product.Price < 0 {
		return nil, errors.New("invalid product: price cannot be negative")
	}
	if product.Stock < 0 {
		return nil, errors.New("invalid product: stock cannot be negative")
	}
	created, err := uc.productRepo.CreateProduct(product)
	if err != nil {
		uc.log.Errorf("Use Case: Failed to create product '%s': %v", product.Name, err)
		return nil, err
	}
	return created, nil
}

func (uc *productUseCase) GetProductByID(id int) (*domain.Product, error) {
	if id <= 0 {
		return nil, errors.New("invalid product ID")
	}
	return uc.productRepo.GetProductByID(id)
}

func (uc *productUseCase) ListProducts() ([]domain.Product, error) {
	return uc.productRepo.ListProducts()
}

func (uc *productUseCase) UpdateProduct(product *domain.Product) (*domain.Product, error) {
	if product.ID <= 0 {
		return nil, errors.New("invalid product ID")
	}
	if product.Name == "" {
		return nil, errors.New("invalid product: name cannot be empty")
	}
	if product.Price < 0 {
		return nil, errors.New("invalid product: price cannot be negative")
	}
	if product.Stock < 0 {
		return nil, errors.New("invalid product: stock cannot be negative")
	}
	updated, err := uc.productRepo.UpdateProduct(product)
	if err != nil {
		uc.log.Errorf("Use Case: Failed to update product ID %d: %v", product.ID, err)
		return nil, err
	}
	return updated, nil
}

func (uc *productUseCase) DeleteProduct(id int) error {
	if id <= 0 {
		return errors.New("invalid product ID")
	}
	return uc.productRepo.DeleteProduct(id)
}
