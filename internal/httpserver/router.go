package httpserver

import (
	"context"
	"errors"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/metrics"
	usersvc "shopfront/internal/service/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type userService interface {
	Register(ctx context.Context, in usersvc.RegisterInput) (*domain.User, usersvc.Tokens, error)
	Login(ctx context.Context, email, password string) (*domain.User, usersvc.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (usersvc.Tokens, error)
	Logout(ctx context.Context, accessToken string) error
	LookupByToken(ctx context.Context, accessToken string) (*domain.User, error)
	Profile(ctx context.Context, userID int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID int64, p usersvc.Profile) (*domain.User, error)
	Delete(ctx context.Context, userID int64) error
}

type catalogService interface {
	List(ctx context.Context) ([]domain.Item, error)
	Get(ctx context.Context, id int64) (*domain.Item, error)
	Search(ctx context.Context, query string) ([]domain.Item, error)
}

type inventoryService interface {
	GetQuantity(ctx context.Context, itemID int64) (int, error)
	Decrease(ctx context.Context, itemID int64, qty int) (bool, error)
	Increase(ctx context.Context, itemID int64, qty int) error
}

type cartService interface {
	Get(ctx context.Context, userID int64) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, itemID int64, qty int) (*domain.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID int64, qty int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID int64) (*domain.Cart, error)
	Clear(ctx context.Context, userID int64) error
	Total(ctx context.Context, userID int64) (decimal.Decimal, error)
}

type orderService interface {
	AddItemToPendingOrder(ctx context.Context, userID, itemID int64, qty int) (*domain.Order, error)
	AddItemToOrder(ctx context.Context, orderID, itemID int64, qty int, userID int64) (*domain.Order, error)
	RemoveLineFromOrder(ctx context.Context, orderID, lineID, userID int64) (*domain.Order, error)
	UpdateLineQuantity(ctx context.Context, orderID, lineID int64, qty int, userID int64) (*domain.Order, error)
	CreateOrderFromCart(ctx context.Context, userID int64) (*domain.Order, error)
	CloseOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error)
	GetUserOrderHistory(ctx context.Context, userID int64) ([]domain.Order, error)
	GetUserOrders(ctx context.Context, userID int64) ([]domain.Order, error)
	GetPendingOrder(ctx context.Context, userID int64) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error)
}

type favoriteService interface {
	List(ctx context.Context, userID int64) ([]domain.Item, error)
	Add(ctx context.Context, userID, itemID int64) error
	Remove(ctx context.Context, userID, itemID int64) error
}

// Deps carries the services mounted by the router. Metrics and CORSOrigins are optional.
type Deps struct {
	UserSvc      userService
	CatalogSvc   catalogService
	InventorySvc inventoryService
	CartSvc      cartService
	OrderSvc     orderService
	FavoriteSvc  favoriteService
	Metrics      *metrics.Metrics
	CORSOrigins  []string
}

func (d Deps) validate() error {
	switch {
	case d.UserSvc == nil:
		return errors.New("httpserver: user service required")
	case d.CatalogSvc == nil:
		return errors.New("httpserver: catalog service required")
	case d.InventorySvc == nil:
		return errors.New("httpserver: inventory service required")
	case d.CartSvc == nil:
		return errors.New("httpserver: cart service required")
	case d.OrderSvc == nil:
		return errors.New("httpserver: order service required")
	case d.FavoriteSvc == nil:
		return errors.New("httpserver: favorite service required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(requestIDMiddleware(), accessLogMiddleware(logger), gin.Recovery())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders:    []string{requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	h := &handlers{deps: deps}
	api := router.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
	auth.POST("/refresh", h.refresh)
	auth.POST("/logout", authMiddleware(deps.UserSvc), h.logout)

	items := api.Group("/items")
	items.GET("", h.listItems)
	items.GET("/search", h.searchItems)
	items.GET("/:id", h.getItem)
	items.GET("/:id/stock", h.getStock)
	items.GET("/:id/availability", h.getAvailability)
	items.PUT("/:id/stock/decrease", authMiddleware(deps.UserSvc), h.decreaseStock)
	items.PUT("/:id/stock/increase", authMiddleware(deps.UserSvc), h.increaseStock)

	secured := api.Group("")
	secured.Use(authMiddleware(deps.UserSvc))

	secured.GET("/users/profile", h.getProfile)
	secured.PUT("/users/profile", h.updateProfile)
	secured.DELETE("/users/profile", h.deleteProfile)

	secured.GET("/cart", h.getCart)
	secured.POST("/cart", h.addToCart)
	secured.DELETE("/cart", h.clearCart)
	secured.GET("/cart/total", h.cartTotal)
	secured.PUT("/cart/:itemId", h.updateCartItem)
	secured.DELETE("/cart/:itemId", h.removeCartItem)

	secured.GET("/orders", h.listOrders)
	secured.GET("/orders/pending", h.pendingOrder)
	secured.GET("/orders/history", h.orderHistory)
	secured.POST("/orders/items", h.addToPendingOrder)
	secured.POST("/orders/create-from-cart", h.createFromCart)
	secured.GET("/orders/:orderId", h.getOrder)
	secured.POST("/orders/:orderId/items", h.addToOrder)
	secured.PUT("/orders/:orderId/items/:lineId", h.updateOrderLine)
	secured.DELETE("/orders/:orderId/items/:lineId", h.removeOrderLine)
	secured.POST("/orders/:orderId/close", h.closeOrder)

	secured.GET("/favorites", h.listFavorites)
	secured.POST("/favorites/:itemId", h.addFavorite)
	secured.DELETE("/favorites/:itemId", h.removeFavorite)

	return router, nil
}

type handlers struct {
	deps Deps
}
