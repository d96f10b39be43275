package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/bilal-alaabadi/ightt-b/internal/domain"
)

type postgresOrderRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewPostgresOrderRepository(db *sql.DB, logger *logrus.Logger) domain.OrderRepository {
	return &postgresOrderRepository{
		db:  db,
		log: logger,
	}
}

const orderColumns = `id, order_id, checkout_session_id, amount, shipping_fee, discount,
        status, payment_method, customer_name, customer_phone, wilayat, email, notes,
        created_at, updated_at`

func (r *postgresOrderRepository) CreateOrder(order *domain.Order) (*domain.Order, error) {
	tx, err := r.db.Begin()
	if err != nil {
		r.log.Errorf("Failed to begin transaction: %v", err)
		return nil, fmt.Errorf("could not start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Recovered from panic, rolling back transaction")
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			r.log.Warnf("Rolling back transaction due to error: %v", err)
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Errorf("Failed to rollback transaction: %v", rbErr)
			}
		} else {
			if cErr := tx.Commit(); cErr != nil {
				r.log.Errorf("Failed to commit transaction: %v", cErr)
				err = fmt.Errorf("failed to commit transaction: %w", cErr)
			}
		}
	}()

	var sessionID sql.NullString
	if order.CheckoutSessionID != "" {
		sessionID = sql.NullString{String: order.CheckoutSessionID, Valid: true}
	}

	orderQuery := `
        INSERT INTO orders (order_id, checkout_session_id, amount, shipping_fee, discount,
            status, payment_method, customer_name, customer_phone, wilayat, email, notes)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id, created_at, updated_at`
	err = tx.QueryRow(orderQuery,
		order.OrderID, sessionID, order.Amount, order.ShippingFee, order.Discount,
		order.Status, order.PaymentMethod, order.CustomerName, order.CustomerPhone,
		order.Wilayat, order.Email, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			r.log.Warnf("Duplicate order id '%s'", order.OrderID)
			return nil, domain.ErrDuplicateOrderID
		}
		r.log.Errorf("Failed to insert order '%s': %v", order.OrderID, err)
		return nil, fmt.Errorf("could not create order entry: %w", err)
	}

	itemQuery := `
        INSERT INTO order_items (order_id, product_id, name, price, quantity, selected_size, selected_color)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	stmt, err := tx.Prepare(itemQuery)
	if err != nil {
		r.log.Errorf("Failed to prepare order item statement: %v", err)
		return nil, fmt.Errorf("could not prepare item statement: %w", err)
	}
	defer stmt.Close()

	for i := range order.Items {
		item := &order.Items[i]
		_, err = stmt.Exec(order.ID, item.ProductID, item.Name, item.Price,
			item.Quantity, item.SelectedSize, item.SelectedColor)
		if err != nil {
			r.log.Errorf("Failed to insert order item (product_id: %d) for order %d: %v",
				item.ProductID, order.ID, err)
			return nil, fmt.Errorf("could not create order item (product_id: %d): %w", item.ProductID, err)
		}
	}

	r.log.Infof("Order %d ('%s') created successfully with %d items.", order.ID, order.OrderID, len(order.Items))
	return order, nil
}

func (r *postgresOrderRepository) GetOrderByID(id int) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOne(query, id)
}

func (r *postgresOrderRepository) GetOrderByOrderID(orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	return r.getOne(query, orderID)
}

func (r *postgresOrderRepository) GetOrderByCheckoutSession(sessionID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE checkout_session_id = $1`
	return r.getOne(query, sessionID)
}

func (r *postgresOrderRepository) getOne(query string, arg interface{}) (*domain.Order, error) {
	order := &domain.Order{}
	var sessionID sql.NullString

	err := r.db.QueryRow(query, arg).Scan(
		&order.ID,
		&order.OrderID,
		&sessionID,
		&order.Amount,
		&order.ShippingFee,
		&order.Discount,
		&order.Status,
		&order.PaymentMethod,
		&order.CustomerName,
		&order.CustomerPhone,
		&order.Wilayat,
		&order.Email,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		r.log.Errorf("Failed to get order (%v): %v", arg, err)
		return nil, fmt.Errorf("could not retrieve order: %w", err)
	}
	order.CheckoutSessionID = sessionID.String

	items, err := r.getOrderItems(order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *postgresOrderRepository) getOrderItems(orderID int) ([]domain.OrderItem, error) {
	itemsQuery := `
        SELECT product_id, name, price, quantity, selected_size, selected_color
        FROM order_items
        WHERE order_id = $1`
	rows, err := r.db.Query(itemsQuery, orderID)
	if err != nil {
		r.log.Errorf("Failed to query order items for order ID %d: %v", orderID, err)
		return nil, fmt.Errorf("could not retrieve order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price,
			&item.Quantity, &item.SelectedSize, &item.SelectedColor); err != nil {
			r.log.Errorf("Failed to scan order item row for order ID %d: %v", orderID, err)
			return nil, fmt.Errorf("error scanning order item: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		r.log.Errorf("Error during order items iteration for order ID %d: %v", orderID, err)
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func (r *postgresOrderRepository) ListOrdersByEmail(email string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE email = $1 ORDER BY created_at DESC`
	return r.list(query, email)
}

func (r *postgresOrderRepository) ListAllOrders() ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	return r.list(query)
}

func (r *postgresOrderRepository) list(query string, args ...interface{}) ([]domain.Order, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.log.Errorf("Failed to list orders: %v", err)
		return nil, fmt.Errorf("could not retrieve orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	var orderIDs []int

	for rows.Next() {
		var order domain.Order
		var sessionID sql.NullString
		if err := rows.Scan(
			&order.ID, &order.OrderID, &sessionID, &order.Amount, &order.ShippingFee,
			&order.Discount, &order.Status, &order.PaymentMethod, &order.CustomerName,
			&order.CustomerPhone, &order.Wilayat, &order.Email, &order.Notes,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			r.log.Errorf("Failed to scan order row: %v", err)
			return nil, fmt.Errorf("error scanning order data: %w", err)
		}
		order.CheckoutSessionID = sessionID.String
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}
	if err = rows.Err(); err != nil {
		r.log.Errorf("Error during orders iteration: %v", err)
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if len(orders) == 0 {
		return []domain.Order{}, nil
	}

	itemsQuery := `
        SELECT order_id, product_id, name, price, quantity, selected_size, selected_color
        FROM order_items
        WHERE order_id = ANY($1::int[])
        ORDER BY order_id`
	itemRows, err := r.db.Query(itemsQuery, pq.Array(orderIDs))
	if err != nil {
		r.log.Errorf("Failed to query items for multiple orders (%v): %v", orderIDs, err)
		return nil, fmt.Errorf("could not retrieve order items for list: %w", err)
	}
	defer itemRows.Close()

	itemsMap := make(map[int][]domain.OrderItem)
	for itemRows.Next() {
		var item domain.OrderItem
		var orderID int
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.Price,
			&item.Quantity, &item.SelectedSize, &item.SelectedColor); err != nil {
			r.log.Errorf("Failed to scan order item row during multi-order fetch: %v", err)
			return nil, fmt.Errorf("error scanning order item data for list: %w", err)
		}
		itemsMap[orderID] = append(itemsMap[orderID], item)
	}
	if err = itemRows.Err(); err != nil {
		r.log.Errorf("Error during multi-order items iteration: %v", err)
		return nil, fmt.Errorf("error iterating order items for list: %w", err)
	}

	for i := range orders {
		if items, ok := itemsMap[orders[i].ID]; ok {
			orders[i].Items = items
		} else {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	return orders, nil
}

func (r *postgresOrderRepository) UpdateOrderStatus(id int, status domain.OrderStatus) (*domain.Order, error) {
	query := `
        UPDATE orders
        SET status = $1, updated_at = NOW()
        WHERE id = $2
        RETURNING id`
	var returnedID int
	err := r.db.QueryRow(query, status, id).Scan(&returnedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Order with ID %d not found for status update", id)
			return nil, domain.ErrOrderNotFound
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
			r.log.Warnf("Invalid status value '%s' for order ID %d: %v", status, id, err)
			return nil, fmt.Errorf("invalid order status provided: %s", status)
		}
		r.log.Errorf("Failed to update status for order ID %d: %v", id, err)
		return nil, fmt.Errorf("could not update order status: %w", err)
	}

	r.log.Infof("Order %d status updated to '%s'.", id, status)
	return r.GetOrderByID(id)
}

func (r *postgresOrderRepository) AttachCheckoutSession(id int, sessionID string) error {
	result, err := r.db.Exec(`
        UPDATE orders
        SET checkout_session_id = $1, updated_at = NOW()
        WHERE id = $2`,
		sessionID, id)
	if err != nil {
		r.log.Errorf("Failed to attach checkout session '%s' to order ID %d: %v", sessionID, id, err)
		return fmt.Errorf("could not attach checkout session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not determine attach result: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}

	r.log.Infof("Checkout session '%s' attached to order ID %d", sessionID, id)
	return nil
}

func (r *postgresOrderRepository) DeleteOrder(id int) error {
	result, err := r.db.Exec(`DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		r.log.Errorf("Failed to delete order ID %d: %v", id, err)
		return fmt.Errorf("could not delete order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not determine delete result: %w", err)
	}
	if affected == 0 {
		r.log.Warnf("Order with ID %d not found for delete", id)
		return domain.ErrOrderNotFound
	}

	r.log.Infof("Order deleted successfully: ID %d", id)
	return nil
}
