package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilal-alaabadi/ightt-b/internal/clients"
	"github.com/bilal-alaabadi/ightt-b/internal/domain"
	"github.com/bilal-alaabadi/ightt-b/internal/repository"
)

type fakePaymentClient struct {
	mu         sync.Mutex
	sessions   map[string]*clients.Session
	byRef      map[string]*clients.Session
	failCreate bool
	lastItems  []clients.SessionItem
	nextID     int
}

func newFakePaymentClient() *fakePaymentClient {
	return &fakePaymentClient{
		sessions: make(map[string]*clients.Session),
		byRef:    make(map[string]*clients.Session),
	}
}

func (f *fakePaymentClient) CreateSession(ctx context.Context, items []clients.SessionItem, ref string) (*clients.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, domain.ErrGatewayUnavailable
	}
	f.nextID++
	id := fmt.Sprintf("sess_%d", f.nextID)
	var total int64
	for _, item := range items {
		total += item.UnitAmount * int64(item.Quantity)
	}
	session := &clients.Session{
		SessionID:         id,
		ClientReferenceID: ref,
		PaymentStatus:     clients.PaymentStatusUnpaid,
		TotalAmount:       total,
		Products:          items,
		PaymentLink:       "https://checkout.example/pay/" + id,
	}
	f.sessions[id] = session
	f.byRef[ref] = session
	f.lastItems = items
	return session, nil
}

func (f *fakePaymentClient) GetSession(ctx context.Context, sessionID string) (*clients.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.ErrPaymentNotConfirmed
	}
	cp := *session
	return &cp, nil
}

func (f *fakePaymentClient) FindSessionByClientReference(ctx context.Context, ref string) (*clients.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.byRef[ref]
	if !ok {
		return nil, domain.ErrPaymentNotConfirmed
	}
	cp := *session
	return &cp, nil
}

func (f *fakePaymentClient) markPaid(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.byRef[ref]; ok {
		session.PaymentStatus = clients.PaymentStatusPaid
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupCheckout(t *testing.T) (*repository.MemoryStore, *fakePaymentClient, domain.CheckoutUseCase) {
	t.Helper()
	store := repository.NewMemoryStore()
	payments := newFakePaymentClient()
	uc := NewCheckoutUseCase(store, store, payments, 2, testLogger(), nil)
	return store, payments, uc
}

func seedProduct(t *testing.T, store *repository.MemoryStore, name string, price float64, stock int) *domain.Product {
	t.Helper()
	p, err := store.CreateProduct(&domain.Product{Name: name, Price: price, Stock: stock})
	require.NoError(t, err)
	return p
}

func cartRequest(items ...domain.CartItem) *domain.CheckoutRequest {
	return &domain.CheckoutRequest{
		Items:         items,
		Email:         "buyer@example.com",
		CustomerName:  "Salim",
		CustomerPhone: "96890000000",
		Wilayat:       "Muscat",
	}
}

func TestPlaceOrder_ComputesAmountAndReservesStock(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	order, err := uc.PlaceOrder(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)

	// 10*3 + shipping 2
	assert.Equal(t, 32.0, order.Amount)
	assert.Equal(t, 2.0, order.ShippingFee)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, domain.PaymentCash, order.PaymentMethod)
	assert.NotEmpty(t, order.OrderID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Henna Powder", order.Items[0].Name)
	assert.Equal(t, 10.0, order.Items[0].Price)

	after, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Stock)
}

func TestPlaceOrder_InsufficientStock_NoMutation(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 2)

	_, err := uc.PlaceOrder(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 3}))
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Henna Powder", stockErr.Name)
	assert.Equal(t, 2, stockErr.Available)

	after, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Stock)

	orders, err := store.ListAllOrders()
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_PartialFailureReleasesReservedStock(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p1 := seedProduct(t, store, "Henna Powder", 10, 5)
	p2 := seedProduct(t, store, "Oud Oil", 25, 1)

	_, err := uc.PlaceOrder(ctx, cartRequest(
		domain.CartItem{ProductID: p1.ID, Quantity: 2},
		domain.CartItem{ProductID: p2.ID, Quantity: 2},
	))
	require.Error(t, err)

	// p1 must be released after p2 fails validation
	p1After, err := store.GetProductByID(p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p1After.Stock)
	p2After, err := store.GetProductByID(p2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p2After.Stock)
}

func TestPlaceOrder_SplitCartCannotExceedStock(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Bakhoor", 5, 5)

	_, err := uc.PlaceOrder(ctx, cartRequest(
		domain.CartItem{ProductID: p.ID, Quantity: 3},
		domain.CartItem{ProductID: p.ID, Quantity: 3},
	))
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 6, stockErr.Requested)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	ctx := context.Background()
	_, _, uc := setupCheckout(t)

	_, err := uc.PlaceOrder(ctx, cartRequest(domain.CartItem{ProductID: 999, Quantity: 1}))
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestPlaceOrder_Validation(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	_, err := uc.PlaceOrder(ctx, &domain.CheckoutRequest{})
	assert.Error(t, err)

	_, err = uc.PlaceOrder(ctx, &domain.CheckoutRequest{
		Items: []domain.CartItem{{ProductID: p.ID, Quantity: 0}},
	})
	assert.Error(t, err)

	// contact fields required for customers
	_, err = uc.PlaceOrder(ctx, &domain.CheckoutRequest{
		Items: []domain.CartItem{{ProductID: p.ID, Quantity: 1}},
	})
	assert.Error(t, err)

	// but relaxed for administrator-created orders
	_, err = uc.PlaceOrder(ctx, &domain.CheckoutRequest{
		Items:   []domain.CartItem{{ProductID: p.ID, Quantity: 1}},
		IsAdmin: true,
	})
	assert.NoError(t, err)
}

func TestPlaceOrder_PriceSnapshotSurvivesCatalogEdit(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	order, err := uc.PlaceOrder(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)

	p.Price = 99
	_, err = store.UpdateProduct(p)
	require.NoError(t, err)

	reloaded, err := uc.GetOrderByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, 32.0, reloaded.Amount)
	assert.Equal(t, 10.0, reloaded.Items[0].Price)
}

func TestCreateCheckoutSession_Success(t *testing.T) {
	ctx := context.Background()
	store, payments, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	result, err := uc.CreateCheckoutSession(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.NotEmpty(t, result.PaymentLink)

	// the order exists locally with the session cached on it
	order, err := store.GetOrderByCheckoutSession(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, domain.PaymentOnline, order.PaymentMethod)

	// gateway items are in baisa and include the shipping line
	require.Len(t, payments.lastItems, 2)
	assert.Equal(t, int64(10000), payments.lastItems[0].UnitAmount)
	assert.Equal(t, "Shipping", payments.lastItems[1].Name)
	assert.Equal(t, int64(2000), payments.lastItems[1].UnitAmount)

	// charged total equals the recorded amount
	session, err := payments.GetSession(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(32000), session.TotalAmount)
	assert.Equal(t, order.OrderID, session.ClientReferenceID)

	after, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Stock)
}

func TestCreateCheckoutSession_GatewayFailureReleasesStock(t *testing.T) {
	ctx := context.Background()
	store, payments, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)
	payments.failCreate = true

	_, err := uc.CreateCheckoutSession(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 3}))
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	after, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, after.Stock)

	orders, err := store.ListAllOrders()
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.StatusFailed, orders[0].Status)
}

func TestConfirmPayment_ExistingOrderCompleted(t *testing.T) {
	ctx := context.Background()
	store, payments, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	other, err := uc.PlaceOrder(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	result, err := uc.CreateCheckoutSession(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)
	order, err := store.GetOrderByCheckoutSession(result.SessionID)
	require.NoError(t, err)

	payments.markPaid(order.OrderID)

	confirmed, err := uc.ConfirmPayment(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, confirmed.Status)
	assert.Equal(t, order.ID, confirmed.ID)

	// no other order is touched
	otherReloaded, err := uc.GetOrderByID(other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, otherReloaded.Status)

	// stock stays as reserved at creation time
	after, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Stock)
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	ctx := context.Background()
	store, payments, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	result, err := uc.CreateCheckoutSession(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)
	order, err := store.GetOrderByCheckoutSession(result.SessionID)
	require.NoError(t, err)
	payments.markPaid(order.OrderID)

	first, err := uc.ConfirmPayment(ctx, order.OrderID)
	require.NoError(t, err)
	second, err := uc.ConfirmPayment(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.ID, second.ID)
}

func TestConfirmPayment_UnpaidSession(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	result, err := uc.CreateCheckoutSession(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)
	order, err := store.GetOrderByCheckoutSession(result.SessionID)
	require.NoError(t, err)

	_, err = uc.ConfirmPayment(ctx, order.OrderID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotConfirmed)

	reloaded, err := uc.GetOrderByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, reloaded.Status)
}

func TestConfirmPayment_MissingOrderReconstructed(t *testing.T) {
	ctx := context.Background()
	store, payments, uc := setupCheckout(t)

	// a paid session exists at the gateway but the local order was lost
	session, err := payments.CreateSession(ctx, []clients.SessionItem{
		{Name: "Henna Powder", Quantity: 2, UnitAmount: 10000},
	}, "lost-reference")
	require.NoError(t, err)
	payments.markPaid("lost-reference")

	order, err := uc.ConfirmPayment(ctx, "lost-reference")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, order.Status)
	assert.Equal(t, "lost-reference", order.OrderID)
	assert.Equal(t, session.SessionID, order.CheckoutSessionID)
	assert.Equal(t, 20.0, order.Amount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	// and it is now findable in the store
	_, err = store.GetOrderByOrderID("lost-reference")
	assert.NoError(t, err)
}

func TestConfirmPayment_UnknownReference(t *testing.T) {
	ctx := context.Background()
	_, _, uc := setupCheckout(t)
	_, err := uc.ConfirmPayment(ctx, "no-such-reference")
	assert.ErrorIs(t, err, domain.ErrPaymentNotConfirmed)
}

func TestCancelOrder_RestoresStockExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	order, err := uc.PlaceOrder(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)

	afterOrder, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, afterOrder.Stock)

	cancelled, err := uc.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	restored, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, restored.Stock)

	// a second cancellation must not double-release
	_, err = uc.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	still, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, still.Stock)
}

func TestCancelOrder_NotFound(t *testing.T) {
	ctx := context.Background()
	_, _, uc := setupCheckout(t)
	_, err := uc.CancelOrder(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCancelOrder_MissingProductContinues(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p1 := seedProduct(t, store, "Henna Powder", 10, 5)
	p2 := seedProduct(t, store, "Oud Oil", 25, 4)

	order, err := uc.PlaceOrder(ctx, cartRequest(
		domain.CartItem{ProductID: p1.ID, Quantity: 2},
		domain.CartItem{ProductID: p2.ID, Quantity: 1},
	))
	require.NoError(t, err)

	require.NoError(t, store.DeleteProduct(p1.ID))

	cancelled, err := uc.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	// the surviving product still gets its stock back
	p2After, err := store.GetProductByID(p2.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, p2After.Stock)
}

func TestUpdateOrderStatus_Rules(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	order, err := uc.PlaceOrder(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	updated, err := uc.UpdateOrderStatus(ctx, order.ID, domain.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, updated.Status)

	_, err = uc.UpdateOrderStatus(ctx, order.ID, "teleported")
	assert.Error(t, err)

	// admin cancellation goes through the cancellation path: stock comes back
	cancelled, err := uc.UpdateOrderStatus(ctx, order.ID, domain.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	after, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, after.Stock)

	// a cancelled order cannot move to another status
	_, err = uc.UpdateOrderStatus(ctx, order.ID, domain.StatusShipped)
	assert.Error(t, err)
}

func TestUpdateOrderStatus_CompletedOrderCannotBeCancelled(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	order, err := uc.PlaceOrder(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	completed, err := uc.UpdateOrderStatus(ctx, order.ID, domain.StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, completed.Status)

	_, err = uc.UpdateOrderStatus(ctx, order.ID, domain.StatusCancelled)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot cancel a completed order")

	// the order keeps its status and no stock comes back
	after, err := uc.GetOrderByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, after.Status)

	stock, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stock.Stock)
}

func TestDeleteOrder_DoesNotRestoreStock(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 5)

	order, err := uc.PlaceOrder(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)

	require.NoError(t, uc.DeleteOrder(order.ID))

	_, err = uc.GetOrderByID(order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	after, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Stock)
}

func TestListOrdersByEmail(t *testing.T) {
	ctx := context.Background()
	store, _, uc := setupCheckout(t)
	p := seedProduct(t, store, "Henna Powder", 10, 20)

	_, err := uc.PlaceOrder(ctx, cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	req := cartRequest(domain.CartItem{ProductID: p.ID, Quantity: 1})
	req.Email = "other@example.com"
	_, err = uc.PlaceOrder(ctx, req)
	require.NoError(t, err)

	orders, err := uc.ListOrdersByEmail("buyer@example.com")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "buyer@example.com", orders[0].Email)

	_, err = uc.ListOrdersByEmail("")
	assert.Error(t, err)
}
