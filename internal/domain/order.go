package domain

import (
	"context"
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusPaid       OrderStatus = "paid"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
	StatusFailed     OrderStatus = "failed"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

// OrderItem is a snapshot of the product at order-creation time. Name and
// price are copied so later catalog edits never change historical orders.
type OrderItem struct {
	ProductID     int     `json:"product_id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Quantity      int     `json:"quantity"`
	SelectedSize  string  `json:"selected_size,omitempty"`
	SelectedColor string  `json:"selected_color,omitempty"`
}

type Order struct {
	ID int `json:"id"`
	// OrderID is always generated locally. The gateway session id lives in
	// CheckoutSessionID; reconciliation resolves on that, never on OrderID.
	OrderID           string        `json:"order_id"`
	CheckoutSessionID string        `json:"checkout_session_id,omitempty"`
	Items             []OrderItem   `json:"items"`
	Amount            float64       `json:"amount"`
	ShippingFee       float64       `json:"shipping_fee"`
	Discount          float64       `json:"discount"`
	Status            OrderStatus   `json:"status"`
	PaymentMethod     PaymentMethod `json:"payment_method"`
	CustomerName      string        `json:"customer_name"`
	CustomerPhone     string        `json:"customer_phone"`
	Wilayat           string        `json:"wilayat"`
	Email             string        `json:"email"`
	Notes             string        `json:"notes,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func IsValidStatus(status OrderStatus) bool {
	switch status {
	case StatusPending, StatusPaid, StatusProcessing, StatusShipped,
		StatusCompleted, StatusCancelled, StatusRefunded, StatusFailed:
		return true
	default:
		return false
	}
}

// CartItem is a client-supplied order line. Only product id and quantity are
// trusted; name and price are always re-read from the catalog.
type CartItem struct {
	ProductID     int    `json:"product_id"`
	Quantity      int    `json:"quantity"`
	SelectedSize  string `json:"selected_size,omitempty"`
	SelectedColor string `json:"selected_color,omitempty"`
}

type CheckoutRequest struct {
	Items         []CartItem `json:"products"`
	Email         string     `json:"email"`
	CustomerName  string     `json:"customerName"`
	CustomerPhone string     `json:"customerPhone"`
	Wilayat       string     `json:"wilayat"`
	Notes         string     `json:"notes"`
	IsAdmin       bool       `json:"isAdmin"`
}

// CheckoutSessionResult is returned on the online-payment path.
type CheckoutSessionResult struct {
	SessionID   string `json:"id"`
	PaymentLink string `json:"paymentLink"`
}

type OrderRepository interface {
	CreateOrder(order *Order) (*Order, error)
	GetOrderByID(id int) (*Order, error)
	GetOrderByOrderID(orderID string) (*Order, error)
	GetOrderByCheckoutSession(sessionID string) (*Order, error)
	ListOrdersByEmail(email string) ([]Order, error)
	ListAllOrders() ([]Order, error)
	UpdateOrderStatus(id int, status OrderStatus) (*Order, error)
	AttachCheckoutSession(id int, sessionID string) error
	DeleteOrder(id int) error
}

type CheckoutUseCase interface {
	PlaceOrder(ctx context.Context, req *CheckoutRequest) (*Order, error)
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSessionResult, error)
	ConfirmPayment(ctx context.Context, clientReferenceID string) (*Order, error)
	CancelOrder(ctx context.Context, id int) (*Order, error)
	GetOrderByID(id int) (*Order, error)
	ListOrdersByEmail(email string) ([]Order, error)
	ListAllOrders() ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id int, status OrderStatus) (*Order, error)
	DeleteOrder(id int) error
}
