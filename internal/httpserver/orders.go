package httpserver

import (
	"net/http"

	"shopfront/internal/domain"

	"github.com/gin-gonic/gin"
)

// Quantity is a pointer so an absent field is rejected instead of read as 0, which
// removes the line.
type updateLineRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type orderCreatedResponse struct {
	OrderID int64         `json:"orderId"`
	Order   *domain.Order `json:"order"`
}

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.deps.OrderSvc.GetUserOrders(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(orders))
}

func (h *handlers) orderHistory(c *gin.Context) {
	orders, err := h.deps.OrderSvc.GetUserOrderHistory(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(orders))
}

func (h *handlers) pendingOrder(c *gin.Context) {
	o, err := h.deps.OrderSvc.GetPendingOrder(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) getOrder(c *gin.Context) {
	orderID, ok := idParam(c, "orderId")
	if !ok {
		return
	}
	o, err := h.deps.OrderSvc.GetOrder(c.Request.Context(), orderID, currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) addToPendingOrder(c *gin.Context) {
	itemID, ok := idQuery(c, "itemId")
	if !ok {
		return
	}
	qty, ok := intQuery(c, "quantity")
	if !ok {
		return
	}
	o, err := h.deps.OrderSvc.AddItemToPendingOrder(c.Request.Context(), currentUser(c).ID, itemID, qty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) addToOrder(c *gin.Context) {
	orderID, ok := idParam(c, "orderId")
	if !ok {
		return
	}
	itemID, ok := idQuery(c, "itemId")
	if !ok {
		return
	}
	qty, ok := intQuery(c, "quantity")
	if !ok {
		return
	}
	o, err := h.deps.OrderSvc.AddItemToOrder(c.Request.Context(), orderID, itemID, qty, currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) updateOrderLine(c *gin.Context) {
	orderID, ok := idParam(c, "orderId")
	if !ok {
		return
	}
	lineID, ok := idParam(c, "lineId")
	if !ok {
		return
	}
	var req updateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	o, err := h.deps.OrderSvc.UpdateLineQuantity(c.Request.Context(), orderID, lineID, *req.Quantity, currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) removeOrderLine(c *gin.Context) {
	orderID, ok := idParam(c, "orderId")
	if !ok {
		return
	}
	lineID, ok := idParam(c, "lineId")
	if !ok {
		return
	}
	o, err := h.deps.OrderSvc.RemoveLineFromOrder(c.Request.Context(), orderID, lineID, currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) closeOrder(c *gin.Context) {
	orderID, ok := idParam(c, "orderId")
	if !ok {
		return
	}
	o, err := h.deps.OrderSvc.CloseOrder(c.Request.Context(), orderID, currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) createFromCart(c *gin.Context) {
	o, err := h.deps.OrderSvc.CreateOrderFromCart(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderCreatedResponse{OrderID: o.ID, Order: o})
}
