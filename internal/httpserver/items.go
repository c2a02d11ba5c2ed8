package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type availabilityResponse struct {
	InStock           bool `json:"inStock"`
	AvailableQuantity int  `json:"availableQuantity"`
}

func (h *handlers) listItems(c *gin.Context) {
	items, err := h.deps.CatalogSvc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(items))
}

func (h *handlers) searchItems(c *gin.Context) {
	items, err := h.deps.CatalogSvc.Search(c.Request.Context(), c.Query("query"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(items))
}

func (h *handlers) getItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	item, err := h.deps.CatalogSvc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *handlers) getStock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	qty, err := h.deps.InventorySvc.GetQuantity(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, qty)
}

func (h *handlers) getAvailability(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	qty, err := h.deps.InventorySvc.GetQuantity(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, availabilityResponse{InStock: qty > 0, AvailableQuantity: qty})
}

func (h *handlers) decreaseStock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	qty, ok := intQuery(c, "quantity")
	if !ok {
		return
	}
	done, err := h.deps.InventorySvc.Decrease(c.Request.Context(), id, qty)
	if err != nil {
		writeError(c, err)
		return
	}
	if !done {
		c.JSON(http.StatusConflict, errorResponse{StatusCode: http.StatusConflict, Message: "Not enough stock"})
		return
	}
	c.Status(http.StatusOK)
}

func (h *handlers) increaseStock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	qty, ok := intQuery(c, "quantity")
	if !ok {
		return
	}
	if err := h.deps.InventorySvc.Increase(c.Request.Context(), id, qty); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
