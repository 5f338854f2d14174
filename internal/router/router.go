// Package router wires HTTP routes to their handlers.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-waitlist/internal/handler"
	"github.com/iliyamo/restaurant-waitlist/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers authentication routes. Unauthenticated
// operations live under /v1/auth; the protected /v1/me endpoint
// carries the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("STAFF", "CUSTOMER"))
	auth.GET("/me", a.Me)

	// Logout also works with only a refresh token in the body.
	e.POST("/v1/logout", a.Logout)
}

// RegisterRestaurant registers the public browse endpoints plus the
// staff-only catalog and inventory endpoints for a restaurant.
func RegisterRestaurant(e *echo.Echo, r *handler.RestaurantHandler, jwtSecret string) {
	// Menu and seat availability are public so guests can browse
	// before registering.
	e.GET("/v1/restaurants/:placeID/menu", r.GetMenu)
	e.GET("/v1/restaurants/:placeID/available-seats", r.AvailableSeats)

	staff := e.Group("/v1/restaurants/:placeID")
	staff.Use(middleware.JWTAuth(jwtSecret))
	staff.Use(middleware.RequireRole("STAFF"))
	staff.POST("/menu", r.UpsertMenu)
	staff.POST("/inventory", r.ReconcileInventory)
}

// RegisterSeating registers the wait queue endpoints. Joining requires
// a customer session; releasing seats is staff-only; the queue size is
// public.
func RegisterSeating(e *echo.Echo, s *handler.SeatingHandler, jwtSecret string) {
	e.GET("/v1/restaurants/:placeID/queue", s.QueueSize)

	customer := e.Group("/v1/restaurants/:placeID")
	customer.Use(middleware.JWTAuth(jwtSecret))
	customer.Use(middleware.RequireRole("STAFF", "CUSTOMER"))
	customer.POST("/queue", s.JoinQueue)

	staff := e.Group("/v1/restaurants/:placeID/seats")
	staff.Use(middleware.JWTAuth(jwtSecret))
	staff.Use(middleware.RequireRole("STAFF"))
	staff.POST("/release", s.ReleaseSeats)
}

// RegisterOrders registers order placement, lookup, invoice retrieval
// and checkout.
func RegisterOrders(e *echo.Echo, o *handler.OrderHandler, jwtSecret string) {
	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole("STAFF", "CUSTOMER"))
	auth.POST("/restaurants/:placeID/orders", o.PlaceOrder)
	auth.GET("/orders/:token", o.GetOrder)
	auth.GET("/invoices/:id", o.GetInvoice)
	auth.POST("/restaurants/:placeID/checkout", o.Checkout)
}
