package domain

import "time"

type Product struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductRepository is both the catalog and the inventory ledger. Reserve must
// be a single conditional decrement so that concurrent checkouts can never
// drive stock negative.
type ProductRepository interface {
	CreateProduct(product *Product) (*Product, error)
	GetProductByID(id int) (*Product, error)
	ListProducts() ([]Product, error)
	UpdateProduct(product *Product) (*Product, error)
	DeleteProduct(id int) error

	CheckAvailability(productID, quantity int) (bool, error)
	Reserve(productID, quantity int) error
	Release(productID, quantity int) error
}

type ProductUseCase interface {
	CreateProduct(product *Product) (*Product, error)
	GetProductByID(id int) (*Product, error)
	ListProducts() ([]Product, error)
	UpdateProduct(product *Product) (*Product, error)
	DeleteProduct(id int) error
}
