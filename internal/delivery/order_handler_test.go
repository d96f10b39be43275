package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilal-alaabadi/ightt-b/internal/clients"
	"github.com/bilal-alaabadi/ightt-b/internal/domain"
	"github.com/bilal-alaabadi/ightt-b/internal/repository"
	"github.com/bilal-alaabadi/ightt-b/internal/usecase"
)

type stubPaymentClient struct {
	session *clients.Session
}

func (s *stubPaymentClient) CreateSession(ctx context.Context, items []clients.SessionItem, ref string) (*clients.Session, error) {
	var total int64
	for _, item := range items {
		total += item.UnitAmount * int64(item.Quantity)
	}
	s.session = &clients.Session{
		SessionID:         "checkout_test",
		ClientReferenceID: ref,
		PaymentStatus:     clients.PaymentStatusUnpaid,
		TotalAmount:       total,
		Products:          items,
		PaymentLink:       "https://checkout.example/pay/checkout_test",
	}
	return s.session, nil
}

func (s *stubPaymentClient) GetSession(ctx context.Context, sessionID string) (*clients.Session, error) {
	if s.session == nil || s.session.SessionID != sessionID {
		return nil, domain.ErrPaymentNotConfirmed
	}
	cp := *s.session
	return &cp, nil
}

func (s *stubPaymentClient) FindSessionByClientReference(ctx context.Context, ref string) (*clients.Session, error) {
	if s.session == nil || s.session.ClientReferenceID != ref {
		return nil, domain.ErrPaymentNotConfirmed
	}
	cp := *s.session
	return &cp, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *repository.MemoryStore, *stubPaymentClient) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := repository.NewMemoryStore()
	payments := &stubPaymentClient{}
	uc := usecase.NewCheckoutUseCase(store, store, payments, 2, logger, nil)
	handler := NewOrderHandler(uc, logger)

	router := gin.New()
	api := router.Group("/api")
	handler.RegisterRoutes(api)
	handler.RegisterAdminRoutes(api)
	return router, store, payments
}

func seedProduct(t *testing.T, store *repository.MemoryStore, stock int) *domain.Product {
	t.Helper()
	p, err := store.CreateProduct(&domain.Product{Name: "Henna Powder", Price: 10, Stock: stock})
	require.NoError(t, err)
	return p
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func checkoutBody(productID, quantity int) map[string]interface{} {
	return map[string]interface{}{
		"products":      []map[string]interface{}{{"product_id": productID, "quantity": quantity}},
		"email":         "buyer@example.com",
		"customerName":  "Salim",
		"customerPhone": "96890000000",
		"wilayat":       "Muscat",
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	router, store, _ := setupRouter(t)
	p := seedProduct(t, store, 5)

	w := doJSON(router, http.MethodPost, "/api/orders/create-order", checkoutBody(p.ID, 3))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Status string       `json:"Status"`
		Data   domain.Order `json:"Data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Success", resp.Status)
	assert.Equal(t, 32.0, resp.Data.Amount)
	assert.Equal(t, domain.StatusPending, resp.Data.Status)

	after, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Stock)
}

func TestCreateOrderEndpoint_EmptyCart(t *testing.T) {
	router, _, _ := setupRouter(t)
	w := doJSON(router, http.MethodPost, "/api/orders/create-order", map[string]interface{}{"products": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderEndpoint_InsufficientStock(t *testing.T) {
	router, store, _ := setupRouter(t)
	p := seedProduct(t, store, 2)

	w := doJSON(router, http.MethodPost, "/api/orders/create-order", checkoutBody(p.ID, 3))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient stock")

	after, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Stock)
}

func TestCreateCheckoutSessionEndpoint(t *testing.T) {
	router, store, _ := setupRouter(t)
	p := seedProduct(t, store, 5)

	w := doJSON(router, http.MethodPost, "/api/orders/create-checkout-session", checkoutBody(p.ID, 3))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data domain.CheckoutSessionResult `json:"Data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "checkout_test", resp.Data.SessionID)
	assert.NotEmpty(t, resp.Data.PaymentLink)
}

func TestConfirmPaymentEndpoint(t *testing.T) {
	router, store, payments := setupRouter(t)
	p := seedProduct(t, store, 5)

	w := doJSON(router, http.MethodPost, "/api/orders/create-checkout-session", checkoutBody(p.ID, 2))
	require.Equal(t, http.StatusOK, w.Code)
	payments.session.PaymentStatus = clients.PaymentStatusPaid

	w = doJSON(router, http.MethodPost, "/api/orders/confirm-payment",
		map[string]string{"client_reference_id": payments.session.ClientReferenceID})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data domain.Order `json:"Data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusCompleted, resp.Data.Status)
}

func TestConfirmPaymentEndpoint_MissingReference(t *testing.T) {
	router, _, _ := setupRouter(t)
	w := doJSON(router, http.MethodPost, "/api/orders/confirm-payment", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelOrderEndpoint(t *testing.T) {
	router, store, _ := setupRouter(t)
	p := seedProduct(t, store, 5)

	w := doJSON(router, http.MethodPost, "/api/orders/create-order", checkoutBody(p.ID, 3))
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data domain.Order `json:"Data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/orders/cancel-order/%d", created.Data.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	after, err := store.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, after.Stock)

	// second cancel conflicts
	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/orders/cancel-order/%d", created.Data.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelOrderEndpoint_NotFound(t *testing.T) {
	router, _, _ := setupRouter(t)
	w := doJSON(router, http.MethodPost, "/api/orders/cancel-order/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrdersByEmailEndpoint(t *testing.T) {
	router, store, _ := setupRouter(t)
	p := seedProduct(t, store, 5)

	w := doJSON(router, http.MethodPost, "/api/orders/create-order", checkoutBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/api/orders/buyer@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "buyer@example.com")

	w = doJSON(router, http.MethodGet, "/api/orders/nobody@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No orders found")
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	router, store, _ := setupRouter(t)
	p := seedProduct(t, store, 5)

	w := doJSON(router, http.MethodPost, "/api/orders/create-order", checkoutBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data domain.Order `json:"Data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodPatch,
		fmt.Sprintf("/api/orders/update-order-status/%d", created.Data.ID),
		map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusOK, w.Code)

	// missing status field
	w = doJSON(router, http.MethodPatch,
		fmt.Sprintf("/api/orders/update-order-status/%d", created.Data.ID),
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteOrderEndpoint(t *testing.T) {
	router, store, _ := setupRouter(t)
	p := seedProduct(t, store, 5)

	w := doJSON(router, http.MethodPost, "/api/orders/create-order", checkoutBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data domain.Order `json:"Data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(router, http.MethodDelete, fmt.Sprintf("/api/orders/delete-order/%d", created.Data.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodDelete, fmt.Sprintf("/api/orders/delete-order/%d", created.Data.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
