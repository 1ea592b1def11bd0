package handler

import (
	"github.com/gin-gonic/gin"
	hostingapp "github.com/tffhost/backend/internal/application/hosting"
	"github.com/tffhost/backend/internal/domain/hosting"
	"github.com/tffhost/backend/internal/interfaces/http/middleware"
)

// OrderHandler handles the node order endpoints
type OrderHandler struct {
	BaseHandler
	orders *hostingapp.Service
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders *hostingapp.Service) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// MyOrderRequest is the body of an order placed by the signed-in user
// @Description Request body for ordering a hosted node
type MyOrderRequest struct {
	BillingInfo  hostingapp.ContactInfo  `json:"billing_info" binding:"required"`
	ShippingInfo *hostingapp.ContactInfo `json:"shipping_info"`
	Socket       string                  `json:"socket" binding:"omitempty,max=8" example:"EU"`
}

// CreateOrder godoc
// @ID           createOrder
// @Summary      Create a node order
// @Description  Called by the order flow of the app on behalf of a user
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body hostingapp.CreateOrderRequest true "Order"
// @Success      201 {object} APIResponse[hostingapp.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req hostingapp.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.create(c, req)
}

// CreateMyOrder godoc
// @ID           createMyOrder
// @Summary      Order a node for the signed-in user
// @Tags         me
// @Accept       json
// @Produce      json
// @Param        request body MyOrderRequest true "Order"
// @Success      201 {object} APIResponse[hostingapp.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /me/orders [post]
func (h *OrderHandler) CreateMyOrder(c *gin.Context) {
	var req MyOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.create(c, hostingapp.CreateOrderRequest{
		Username:     middleware.GetUsername(c),
		BillingInfo:  req.BillingInfo,
		ShippingInfo: req.ShippingInfo,
		Socket:       req.Socket,
	})
}

func (h *OrderHandler) create(c *gin.Context, req hostingapp.CreateOrderRequest) {
	order, err := h.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// GetOrder godoc
// @ID           getOrder
// @Summary      Get a node order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID" format(uuid)
// @Success      200 {object} APIResponse[hostingapp.OrderResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// ListOrders godoc
// @ID           listOrders
// @Summary      List node orders
// @Tags         orders
// @Produce      json
// @Param        status    query int false "Order status"
// @Param        page      query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]hostingapp.OrderResponse]
// @Router       /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var filter hostingapp.OrderListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	result, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// ListMyOrders godoc
// @ID           listMyOrders
// @Summary      List the orders of the signed-in user
// @Tags         me
// @Produce      json
// @Success      200 {object} APIResponse[[]hostingapp.OrderResponse]
// @Router       /me/orders [get]
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	orders, err := h.orders.ListForUser(c.Request.Context(), middleware.GetUsername(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, orders)
}

// UpdateOrderStatus godoc
// @ID           updateOrderStatus
// @Summary      Change the status of a node order
// @Description  Allowed targets are CANCELED, SENT, APPROVED and PAID
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id      path string                          true "Order ID" format(uuid)
// @Param        request body hostingapp.UpdateStatusRequest true "Status"
// @Success      200 {object} APIResponse[hostingapp.OrderResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /orders/{id}/status [put]
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	var req hostingapp.UpdateStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), id, hosting.OrderStatus(*req.Status))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// OrderSignResult godoc
// @ID           orderSignResult
// @Summary      Record the outcome of the agreement sign flow
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id      path string                        true "Order ID" format(uuid)
// @Param        request body hostingapp.SignResultRequest true "Sign result"
// @Success      200 {object} APIResponse[hostingapp.OrderResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /orders/{id}/sign-result [post]
func (h *OrderHandler) OrderSignResult(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	var req hostingapp.SignResultRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.orders.SignResult(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// ImportOrder godoc
// @ID           importOrder
// @Summary      Import an order that already exists in the ERP
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body hostingapp.ImportOrderRequest true "Order"
// @Success      201 {object} APIResponse[hostingapp.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /orders/import [post]
func (h *OrderHandler) ImportOrder(c *gin.Context) {
	var req hostingapp.ImportOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.orders.ImportOrder(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}
