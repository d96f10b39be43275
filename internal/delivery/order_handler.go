package delivery

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bilal-alaabadi/ightt-b/internal/domain"
)

type OrderHandler struct {
	useCase domain.CheckoutUseCase
	log     *logrus.Logger
}

func NewOrderHandler(uc domain.CheckoutUseCase, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{
		useCase: uc,
		log:     logger,
	}
}

// RegisterRoutes mounts the public order routes. Administrative routes are
// registered separately so the caller can wrap them in the auth middleware.
func (h *OrderHandler) RegisterRoutes(router gin.IRouter) {
	orders := router.Group("/orders")
	{
		orders.POST("/create-order", h.CreateOrder)
		orders.POST("/create-checkout-session", h.CreateCheckoutSession)
		orders.POST("/confirm-payment", h.ConfirmPayment)
		orders.POST("/cancel-order/:id", h.CancelOrder)
		orders.GET("/order/:id", h.GetOrderByID)
		orders.GET("/:email", h.GetOrdersByEmail)
	}
}

func (h *OrderHandler) RegisterAdminRoutes(router gin.IRouter) {
	orders := router.Group("/orders")
	{
		orders.GET("", h.ListOrders)
		orders.PATCH("/update-order-status/:id", h.UpdateOrderStatus)
		orders.DELETE("/delete-order/:id", h.DeleteOrder)
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req domain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Errorf("Failed to bind JSON for create order: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		ErrorResponse(c, http.StatusBadRequest, "No products found in the request")
		return
	}

	order, err := h.useCase.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		statusCode := mapErrorToStatus(err)
		h.log.Errorf("Failed to create order for '%s': %v", req.Email, err)
		ErrorResponse(c, statusCode, "Failed to create order: "+err.Error())
		return
	}

	h.log.Infof("Order %d created successfully for '%s'", order.ID, order.Email)
	SuccessResponse(c, http.StatusCreated, "Order created successfully", order)
}

func (h *OrderHandler) CreateCheckoutSession(c *gin.Context) {
	var req domain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Errorf("Failed to bind JSON for create checkout session: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		ErrorResponse(c, http.StatusBadRequest, "No products found in the request")
		return
	}

	result, err := h.useCase.CreateCheckoutSession(c.Request.Context(), &req)
	if err != nil {
		statusCode := mapErrorToStatus(err)
		h.log.Errorf("Failed to create checkout session for '%s': %v", req.Email, err)
		ErrorResponse(c, statusCode, "Failed to create checkout session: "+err.Error())
		return
	}

	h.log.Infof("Checkout session '%s' created for '%s'", result.SessionID, req.Email)
	SuccessResponse(c, http.StatusOK, "Checkout session created successfully", result)
}

func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	var req struct {
		ClientReferenceID string `json:"client_reference_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Errorf("Failed to bind JSON for confirm payment: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.ClientReferenceID == "" {
		ErrorResponse(c, http.StatusBadRequest, "client_reference_id is required")
		return
	}

	order, err := h.useCase.ConfirmPayment(c.Request.Context(), req.ClientReferenceID)
	if err != nil {
		statusCode := mapErrorToStatus(err)
		h.log.Warnf("Failed to confirm payment for reference '%s': %v", req.ClientReferenceID, err)
		ErrorResponse(c, statusCode, "Failed to confirm payment: "+err.Error())
		return
	}

	h.log.Infof("Payment confirmed for order %d (reference '%s')", order.ID, req.ClientReferenceID)
	SuccessResponse(c, http.StatusOK, "Payment confirmed successfully", order)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := h.orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.useCase.CancelOrder(c.Request.Context(), id)
	if err != nil {
		statusCode := mapErrorToStatus(err)
		h.log.Warnf("Failed to cancel order %d: %v", id, err)
		ErrorResponse(c, statusCode, "Failed to cancel order: "+err.Error())
		return
	}

	h.log.Infof("Order %d cancelled successfully", id)
	SuccessResponse(c, http.StatusOK, "Order cancelled successfully", order)
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id, ok := h.orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.useCase.GetOrderByID(id)
	if err != nil {
		statusCode := mapErrorToStatus(err)
		h.log.Warnf("Failed to get order by ID %d: %v", id, err)
		ErrorResponse(c, statusCode, "Failed to retrieve order: "+err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "Order retrieved successfully", order)
}

func (h *OrderHandler) GetOrdersByEmail(c *gin.Context) {
	email := c.Param("email")
	if email == "" {
		ErrorResponse(c, http.StatusBadRequest, "Email is required")
		return
	}

	orders, err := h.useCase.ListOrdersByEmail(email)
	if err != nil {
		statusCode := mapErrorToStatus(err)
		h.log.Errorf("Failed to list orders for email '%s': %v", email, err)
		ErrorResponse(c, statusCode, "Failed to fetch orders by email")
		return
	}

	if len(orders) == 0 {
		SuccessResponse(c, http.StatusOK, "No orders found for this email", []domain.Order{})
		return
	}
	SuccessResponse(c, http.StatusOK, "Orders retrieved successfully", orders)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.useCase.ListAllOrders()
	if err != nil {
		h.log.Errorf("Failed to list all orders: %v", err)
		ErrorResponse(c, http.StatusInternalServerError, "Failed to fetch all orders")
		return
	}

	if len(orders) == 0 {
		SuccessResponse(c, http.StatusOK, "No orders found", []domain.Order{})
		return
	}
	SuccessResponse(c, http.StatusOK, "Orders retrieved successfully", orders)
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := h.orderIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Status *domain.OrderStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind JSON for update order %d: %v", id, err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Status == nil {
		ErrorResponse(c, http.StatusBadRequest, "Status is required")
		return
	}

	order, err := h.useCase.UpdateOrderStatus(c.Request.Context(), id, *req.Status)
	if err != nil {
		statusCode := mapErrorToStatus(err)
		h.log.Errorf("Failed to update status for order ID %d: %v", id, err)
		ErrorResponse(c, statusCode, "Failed to update order status: "+err.Error())
		return
	}

	h.log.Infof("Order status updated successfully for ID %d to '%s'", order.ID, order.Status)
	SuccessResponse(c, http.StatusOK, "Order status updated successfully", order)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	id, ok := h.orderIDParam(c)
	if !ok {
		return
	}

	if err := h.useCase.DeleteOrder(id); err != nil {
		statusCode := mapErrorToStatus(err)
		h.log.Errorf("Failed to delete order %d: %v", id, err)
		ErrorResponse(c, statusCode, "Failed to delete order: "+err.Error())
		return
	}

	h.log.Infof("Order %d deleted successfully", id)
	SuccessResponse(c, http.StatusOK, "Order deleted successfully", nil)
}

func (h *OrderHandler) orderIDParam(c *gin.Context) (int, bool) {
	idStr := c.Param("id")
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		h.log.Warnf("Invalid order ID parameter: %s", idStr)
		ErrorResponse(c, http.StatusBadRequest, "Invalid order ID format")
		return 0, false
	}
	return id, true
}
