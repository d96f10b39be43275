package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bilal-alaabadi/ightt-b/internal/clients"
	"github.com/bilal-alaabadi/ightt-b/internal/domain"
	"github.com/bilal-alaabadi/ightt-b/pkg/metrics"
)

var _ domain.CheckoutUseCase = (*checkoutUseCase)(nil)

type checkoutUseCase struct {
	orderRepo   domain.OrderRepository
	productRepo domain.ProductRepository
	payments    clients.PaymentClient
	shippingFee float64
	log         *logrus.Logger
	metrics     *metrics.CheckoutMetrics
}

// NewCheckoutUseCase wires the checkout workflow. Metrics may be nil (tests).
func NewCheckoutUseCase(
	orderRepo domain.OrderRepository,
	productRepo domain.ProductRepository,
	payments clients.PaymentClient,
	shippingFee float64,
	logger *logrus.Logger,
	m *metrics.CheckoutMetrics,
) domain.CheckoutUseCase {
	return &checkoutUseCase{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		payments:    payments,
		shippingFee: shippingFee,
		log:         logger,
		metrics:     m,
	}
}

// toBaisa converts an OMR amount to baisa (1 OMR = 1000 baisa).
func toBaisa(amount float64) int64 {
	return int64(math.Round(amount * 1000))
}

func (uc *checkoutUseCase) validateRequest(req *domain.CheckoutRequest) error {
	if req == nil || len(req.Items) == 0 {
		return errors.New("invalid request: order must contain at least one product")
	}
	for i, item := range req.Items {
		if item.ProductID <= 0 {
			return fmt.Errorf("invalid request: item %d has invalid product ID", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("invalid request: item %d (product %d): quantity must be positive", i, item.ProductID)
		}
	}
	// contact fields are relaxed for administrator-created orders
	if !req.IsAdmin {
		if req.Email == "" {
			return errors.New("invalid request: email is required")
		}
		if req.CustomerName == "" {
			return errors.New("invalid request: customer name is required")
		}
		if req.CustomerPhone == "" {
			return errors.New("invalid request: customer phone is required")
		}
		if req.Wilayat == "" {
			return errors.New("invalid request: wilayat is required")
		}
	}
	return nil
}

// buildLineItems re-reads every product from the catalog and snapshots its
// current name and price. Client-supplied prices are never trusted.
func (uc *checkoutUseCase) buildLineItems(req *domain.CheckoutRequest) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(req.Items))
	requested := make(map[int]int)

	for _, cartItem := range req.Items {
		product, err := uc.productRepo.GetProductByID(cartItem.ProductID)
		if err != nil {
			uc.log.Warnf("Use Case: Catalog lookup failed for product ID %d: %v", cartItem.ProductID, err)
			return nil, err
		}

		// total requested per product across cart lines, so a split cart
		// cannot slip past the availability check
		requested[cartItem.ProductID] += cartItem.Quantity
		available, err := uc.productRepo.CheckAvailability(cartItem.ProductID, requested[cartItem.ProductID])
		if err != nil {
			return nil, err
		}
		if !available {
			uc.log.Warnf("Use Case: Insufficient stock for product ID %d (requested total: %d, available: %d)",
				cartItem.ProductID, requested[cartItem.ProductID], product.Stock)
			return nil, &domain.InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: requested[cartItem.ProductID],
				Available: product.Stock,
			}
		}

		items = append(items, domain.OrderItem{
			ProductID:     product.ID,
			Name:          product.Name,
			Price:         product.Price,
			Quantity:      cartItem.Quantity,
			SelectedSize:  cartItem.SelectedSize,
			SelectedColor: cartItem.SelectedColor,
		})
	}
	return items, nil
}

func computeAmount(items []domain.OrderItem, shippingFee, discount float64) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total + shippingFee - discount
}

// reserveAll decrements stock for every line. On failure it releases the lines
// already reserved, in reverse order, and returns the ledger error.
func (uc *checkoutUseCase) reserveAll(items []domain.OrderItem) error {
	reserved := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		if err := uc.productRepo.Reserve(item.ProductID, item.Quantity); err != nil {
			uc.log.Warnf("Use Case: Reservation failed for product ID %d: %v. Releasing %d already-reserved lines.",
				item.ProductID, err, len(reserved))
			if uc.metrics != nil {
				uc.metrics.ReservationFailures.Inc()
			}
			uc.releaseAll(reserved)
			return err
		}
		reserved = append(reserved, item)
	}
	return nil
}

func (uc *checkoutUseCase) releaseAll(items []domain.OrderItem) {
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if err := uc.productRepo.Release(item.ProductID, item.Quantity); err != nil {
			uc.log.Errorf("Use Case: CRITICAL! Failed to release %d units of product ID %d: %v. Manual stock adjustment needed!",
				item.Quantity, item.ProductID, err)
		}
	}
}

func (uc *checkoutUseCase) newOrder(req *domain.CheckoutRequest, items []domain.OrderItem, method domain.PaymentMethod) *domain.Order {
	return &domain.Order{
		OrderID:       uuid.NewString(),
		Items:         items,
		Amount:        computeAmount(items, uc.shippingFee, 0),
		ShippingFee:   uc.shippingFee,
		Status:        domain.StatusPending,
		PaymentMethod: method,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Wilayat:       req.Wilayat,
		Email:         req.Email,
		Notes:         req.Notes,
	}
}

// PlaceOrder is the cash-on-delivery path: validate, price, reserve, persist.
func (uc *checkoutUseCase) PlaceOrder(ctx context.Context, req *domain.CheckoutRequest) (*domain.Order, error) {
	if err := uc.validateRequest(req); err != nil {
		return nil, err
	}

	items, err := uc.buildLineItems(req)
	if err != nil {
		return nil, err
	}
	uc.log.Infof("Use Case: Validated cart with %d lines for '%s'", len(items), req.Email)

	if err := uc.reserveAll(items); err != nil {
		return nil, err
	}

	order := uc.newOrder(req, items, domain.PaymentCash)
	created, err := uc.orderRepo.CreateOrder(order)
	if err != nil {
		uc.log.Errorf("Use Case: Failed to persist order '%s' AFTER reserving stock: %v. Releasing reservation.",
			order.OrderID, err)
		uc.releaseAll(items)
		return nil, fmt.Errorf("failed to save order after reserving stock: %w", err)
	}

	if uc.metrics != nil {
		uc.metrics.OrdersCreated.WithLabelValues(string(domain.PaymentCash)).Inc()
	}
	uc.log.Infof("Use Case: Order %d ('%s') created for '%s', amount %.3f",
		created.ID, created.OrderID, created.Email, created.Amount)
	return created, nil
}

// CreateCheckoutSession is the online path: everything PlaceOrder does, then a
// hosted-checkout session whose client reference is the local order id.
func (uc *checkoutUseCase) CreateCheckoutSession(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSessionResult, error) {
	if err := uc.validateRequest(req); err != nil {
		return nil, err
	}

	items, err := uc.buildLineItems(req)
	if err != nil {
		return nil, err
	}

	if err := uc.reserveAll(items); err != nil {
		return nil, err
	}

	order := uc.newOrder(req, items, domain.PaymentOnline)
	created, err := uc.orderRepo.CreateOrder(order)
	if err != nil {
		uc.log.Errorf("Use Case: Failed to persist online order '%s' AFTER reserving stock: %v. Releasing reservation.",
			order.OrderID, err)
		uc.releaseAll(items)
		return nil, fmt.Errorf("failed to save order after reserving stock: %w", err)
	}

	sessionItems := make([]clients.SessionItem, 0, len(items)+1)
	for _, item := range items {
		sessionItems = append(sessionItems, clients.SessionItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitAmount: toBaisa(item.Price),
		})
	}
	if uc.shippingFee > 0 {
		// shipping goes to the gateway as its own line so the charged total
		// equals the recorded amount
		sessionItems = append(sessionItems, clients.SessionItem{
			Name:       "Shipping",
			Quantity:   1,
			UnitAmount: toBaisa(uc.shippingFee),
		})
	}

	session, err := uc.payments.CreateSession(ctx, sessionItems, created.OrderID)
	if err != nil {
		uc.log.Errorf("Use Case: Gateway session creation failed for order '%s': %v. Releasing stock and marking order failed.",
			created.OrderID, err)
		uc.releaseAll(items)
		if _, stErr := uc.orderRepo.UpdateOrderStatus(created.ID, domain.StatusFailed); stErr != nil {
			uc.log.Errorf("Use Case: CRITICAL! Failed to mark order %d as failed: %v. Manual intervention required!",
				created.ID, stErr)
		}
		return nil, err
	}

	if err := uc.orderRepo.AttachCheckoutSession(created.ID, session.SessionID); err != nil {
		// the session exists at the gateway; the listing fallback can still
		// find it by client reference during reconciliation
		uc.log.Errorf("Use Case: Failed to attach session '%s' to order %d: %v", session.SessionID, created.ID, err)
	}

	if uc.metrics != nil {
		uc.metrics.OrdersCreated.WithLabelValues(string(domain.PaymentOnline)).Inc()
	}
	uc.log.Infof("Use Case: Checkout session '%s' created for order '%s'", session.SessionID, created.OrderID)
	return &domain.CheckoutSessionResult{
		SessionID:   session.SessionID,
		PaymentLink: session.PaymentLink,
	}, nil
}

// ConfirmPayment reconciles a gateway session against the local order store.
// It is idempotent on the order status and never touches the inventory ledger:
// stock was reserved at order-creation time.
func (uc *checkoutUseCase) ConfirmPayment(ctx context.Context, clientReferenceID string) (*domain.Order, error) {
	if clientReferenceID == "" {
		return nil, errors.New("invalid request: client reference id is required")
	}

	order, err := uc.orderRepo.GetOrderByOrderID(clientReferenceID)
	if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, err
	}

	var session *clients.Session
	if order != nil && order.CheckoutSessionID != "" {
		session, err = uc.payments.GetSession(ctx, order.CheckoutSessionID)
	} else {
		session, err = uc.payments.FindSessionByClientReference(ctx, clientReferenceID)
	}
	if err != nil {
		return nil, err
	}

	if session.PaymentStatus != clients.PaymentStatusPaid {
		uc.log.Warnf("Use Case: Session '%s' for reference '%s' is '%s', not paid",
			session.SessionID, clientReferenceID, session.PaymentStatus)
		return nil, domain.ErrPaymentNotConfirmed
	}

	if order != nil {
		updated, err := uc.orderRepo.UpdateOrderStatus(order.ID, domain.StatusCompleted)
		if err != nil {
			return nil, err
		}
		if uc.metrics != nil {
			uc.metrics.PaymentsConfirmed.Inc()
		}
		uc.log.Infof("Use Case: Payment confirmed for order %d ('%s')", updated.ID, updated.OrderID)
		return updated, nil
	}

	// The session is paid but no local order exists: a failure between session
	// creation and order persist. Reconstruct from the gateway's line items;
	// the name/price snapshot here is best effort.
	uc.log.Warnf("Use Case: No local order for paid session '%s' (reference '%s'). Reconstructing from session items.",
		session.SessionID, clientReferenceID)
	items := make([]domain.OrderItem, 0, len(session.Products))
	for _, p := range session.Products {
		items = append(items, domain.OrderItem{
			Name:     p.Name,
			Price:    float64(p.UnitAmount) / 1000,
			Quantity: p.Quantity,
		})
	}
	rebuilt := &domain.Order{
		OrderID:           clientReferenceID,
		CheckoutSessionID: session.SessionID,
		Items:             items,
		Amount:            float64(session.TotalAmount) / 1000,
		Status:            domain.StatusCompleted,
		PaymentMethod:     domain.PaymentOnline,
	}
	created, err := uc.orderRepo.CreateOrder(rebuilt)
	if err != nil {
		return nil, fmt.Errorf("failed to save reconstructed order: %w", err)
	}
	if uc.metrics != nil {
		uc.metrics.PaymentsConfirmed.Inc()
	}
	return created, nil
}

// CancelOrder releases reserved stock and marks the order cancelled. A second
// cancellation is rejected so stock is never double-released.
func (uc *checkoutUseCase) CancelOrder(ctx context.Context, id int) (*domain.Order, error) {
	order, err := uc.orderRepo.GetOrderByID(id)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.StatusCancelled {
		uc.log.Warnf("Use Case: Order %d is already cancelled", id)
		return nil, domain.ErrAlreadyCancelled
	}

	for _, item := range order.Items {
		if item.ProductID <= 0 {
			// reconstructed orders carry no product reference
			continue
		}
		if err := uc.productRepo.Release(item.ProductID, item.Quantity); err != nil {
			uc.log.Errorf("Use Case: Failed to return %d units of product ID %d for cancelled order %d: %v. Manual stock adjustment needed!",
				item.Quantity, item.ProductID, id, err)
			continue
		}
		uc.log.Infof("Use Case: Returned %d units of product ID %d for order %d", item.Quantity, item.ProductID, id)
	}

	updated, err := uc.orderRepo.UpdateOrderStatus(id, domain.StatusCancelled)
	if err != nil {
		uc.log.Errorf("Use Case: Failed to mark order %d cancelled after returning stock: %v. Potential inconsistency!", id, err)
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.OrdersCancelled.Inc()
	}
	uc.log.Infof("Use Case: Order %d cancelled", id)
	return updated, nil
}

func (uc *checkoutUseCase) GetOrderByID(id int) (*domain.Order, error) {
	if id <= 0 {
		return nil, errors.New("invalid order ID")
	}
	return uc.orderRepo.GetOrderByID(id)
}

func (uc *checkoutUseCase) ListOrdersByEmail(email string) ([]domain.Order, error) {
	if email == "" {
		return nil, errors.New("invalid request: email is required")
	}
	return uc.orderRepo.ListOrdersByEmail(email)
}

func (uc *checkoutUseCase) ListAllOrders() ([]domain.Order, error) {
	return uc.orderRepo.ListAllOrders()
}

// UpdateOrderStatus is the administrative override. A transition to cancelled
// goes through CancelOrder so stock release and the double-cancel guard apply;
// completed orders cannot be cancelled.
func (uc *checkoutUseCase) UpdateOrderStatus(ctx context.Context, id int, status domain.OrderStatus) (*domain.Order, error) {
	if id <= 0 {
		return nil, errors.New("invalid order ID for status update")
	}
	if !domain.IsValidStatus(status) {
		return nil, fmt.Errorf("invalid target order status: %s", status)
	}

	current, err := uc.orderRepo.GetOrderByID(id)
	if err != nil {
		return nil, err
	}

	if status == domain.StatusCancelled {
		if current.Status == domain.StatusCompleted {
			uc.log.Warnf("Use Case: Attempt to cancel completed order %d", id)
			return nil, errors.New("invalid transition: cannot cancel a completed order")
		}
		return uc.CancelOrder(ctx, id)
	}
	if current.Status == domain.StatusCancelled {
		uc.log.Warnf("Use Case: Attempt to change status of cancelled order %d to '%s'", id, status)
		return nil, errors.New("invalid transition: cannot change status of a cancelled order")
	}

	return uc.orderRepo.UpdateOrderStatus(id, status)
}

// DeleteOrder removes the record without restoring stock; reserved quantities
// stay decremented. Cancel first when the stock must come back.
func (uc *checkoutUseCase) DeleteOrder(id int) error {
	if id <= 0 {
		return errors.New("invalid order ID")
	}
	order, err := uc.orderRepo.GetOrderByID(id)
	if err != nil {
		return err
	}
	if order.Status != domain.StatusCancelled && order.Status != domain.StatusFailed {
		uc.log.Warnf("Use Case: Deleting order %d in status '%s'; reserved stock is NOT restored by delete",
			id, order.Status)
	}
	return uc.orderRepo.DeleteOrder(id)
}
