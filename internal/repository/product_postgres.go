package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/bilal-alaabadi/ightt-b/internal/domain"
)

type postgresProductRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewPostgresProductRepository(db *sql.DB, logger *logrus.Logger) domain.ProductRepository {
	return &postgresProductRepository{
		db:  db,
		log: logger,
	}
}

func (r *postgresProductRepository) CreateProduct(product *domain.Product) (*domain.Product, error) {
	query := `
        INSERT INTO products (name, category, description, price, stock, image)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(query,
		product.Name, product.Category, product.Description,
		product.Price, product.Stock, product.Image,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
			r.log.Warnf("Check constraint violation for product '%s': %s", product.Name, pqErr.Message)
			return nil, fmt.Errorf("product data constraint violation: %s", pqErr.Message)
		}
		r.log.Errorf("Failed to create product '%s': %v", product.Name, err)
		return nil, fmt.Errorf("could not create product: %w", err)
	}

	r.log.Infof("Product created successfully with ID: %d, Name: %s", product.ID, product.Name)
	return product, nil
}

func (r *postgresProductRepository) GetProductByID(id int) (*domain.Product, error) {
	query := `
        SELECT id, name, category, description, price, stock, image, created_at, updated_at
        FROM products
        WHERE id = $1`
	product := &domain.Product{}

	err := r.db.QueryRow(query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Category,
		&product.Description,
		&product.Price,
		&product.Stock,
		&product.Image,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Product with ID %d not found", id)
			return nil, domain.ErrProductNotFound
		}
		r.log.Errorf("Failed to get product by ID %d: %v", id, err)
		return nil, fmt.Errorf("could not get product by id: %w", err)
	}

	return product, nil
}

func (r *postgresProductRepository) ListProducts() ([]domain.Product, error) {
	query := `
        SELECT id, name, category, description, price, stock, image, created_at, updated_at
        FROM products
        ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		r.log.Errorf("Failed to list products: %v", err)
		return nil, fmt.Errorf("could not list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Category, &p.Description,
			&p.Price, &p.Stock, &p.Image, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			r.log.Errorf("Failed to scan product row: %v", err)
			return nil, fmt.Errorf("error scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		r.log.Errorf("Error during products iteration: %v", err)
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (r *postgresProductRepository) UpdateProduct(product *domain.Product) (*domain.Product, error) {
	query := `
        UPDATE products
        SET name = $1, category = $2, description = $3, price = $4, stock = $5, image = $6, updated_at = NOW()
        WHERE id = $7
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(query,
		product.Name, product.Category, product.Description,
		product.Price, product.Stock, product.Image, product.ID,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Product with ID %d not found for update", product.ID)
			return nil, domain.ErrProductNotFound
		}
		r.log.Errorf("Failed to update product ID %d: %v", product.ID, err)
		return nil, fmt.Errorf("could not update product: %w", err)
	}

	r.log.Infof("Product updated successfully: ID %d", product.ID)
	return product, nil
}

func (r *postgresProductRepository) DeleteProduct(id int) error {
	result, err := r.db.Exec(`DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		r.log.Errorf("Failed to delete product ID %d: %v", id, err)
		return fmt.Errorf("could not delete product: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not determine delete result: %w", err)
	}
	if affected == 0 {
		r.log.Warnf("Product with ID %d not found for delete", id)
		return domain.ErrProductNotFound
	}

	r.log.Infof("Product deleted successfully: ID %d", id)
	return nil
}

func (r *postgresProductRepository) CheckAvailability(productID, quantity int) (bool, error) {
	var stock int
	err := r.db.QueryRow(`SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrProductNotFound
		}
		r.log.Errorf("Failed to check availability for product ID %d: %v", productID, err)
		return false, fmt.Errorf("could not check availability: %w", err)
	}
	return stock >= quantity, nil
}

// Reserve decrements stock with a single conditional UPDATE. The WHERE guard
// makes the sufficiency check and the decrement one atomic write, so stock can
// never go negative even under concurrent checkouts.
func (r *postgresProductRepository) Reserve(productID, quantity int) error {
	result, err := r.db.Exec(`
        UPDATE products
        SET stock = stock - $2, updated_at = NOW()
        WHERE id = $1 AND stock >= $2`,
		productID, quantity)
	if err != nil {
		r.log.Errorf("Failed to reserve %d units of product ID %d: %v", quantity, productID, err)
		return fmt.Errorf("could not reserve stock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not determine reserve result: %w", err)
	}
	if affected > 0 {
		r.log.Infof("Reserved %d units of product ID %d", quantity, productID)
		return nil
	}

	// The guard failed: either the product is gone or stock ran out between
	// validation and the write.
	product, err := r.GetProductByID(productID)
	if err != nil {
		return err
	}
	r.log.Warnf("Insufficient stock for product ID %d (requested: %d, available: %d)",
		productID, quantity, product.Stock)
	return &domain.InsufficientStockError{
		ProductID: productID,
		Name:      product.Name,
		Requested: quantity,
		Available: product.Stock,
	}
}

// Release restores stock unconditionally. A missing product is a logged no-op:
// the stock simply cannot be restored.
func (r *postgresProductRepository) Release(productID, quantity int) error {
	result, err := r.db.Exec(`
        UPDATE products
        SET stock = stock + $2, updated_at = NOW()
        WHERE id = $1`,
		productID, quantity)
	if err != nil {
		r.log.Errorf("Failed to release %d units of product ID %d: %v", quantity, productID, err)
		return fmt.Errorf("could not release stock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not determine release result: %w", err)
	}
	if affected == 0 {
		r.log.Warnf("Product ID %d no longer exists, %d units could not be restored", productID, quantity)
		return nil
	}

	r.log.Infof("Released %d units of product ID %d back to stock", quantity, productID)
	return nil
}
