package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handlers) listFavorites(c *gin.Context) {
	items, err := h.deps.FavoriteSvc.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(items))
}

func (h *handlers) addFavorite(c *gin.Context) {
	itemID, ok := idParam(c, "itemId")
	if !ok {
		return
	}
	if err := h.deps.FavoriteSvc.Add(c.Request.Context(), currentUser(c).ID, itemID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *handlers) removeFavorite(c *gin.Context) {
	itemID, ok := idParam(c, "itemId")
	if !ok {
		return
	}
	if err := h.deps.FavoriteSvc.Remove(c.Request.Context(), currentUser(c).ID, itemID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
