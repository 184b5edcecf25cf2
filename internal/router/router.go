// Package router wires HTTP routes to handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/cinebook/cinebook/internal/handler"
	"github.com/cinebook/cinebook/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication or
// rate limiting.  Currently that is only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterShows registers the public catalog endpoints and the
// admin-only show management endpoints.  Catalog listings are cached;
// the seat map is not, because a stale snapshot would invite claims
// that are doomed to conflict.
func RegisterShows(e *echo.Echo, h *handler.ShowHandler, jwtSecret string, cache, ratelimit echo.MiddlewareFunc) {
	public := e.Group("/api/show", ratelimit)
	public.GET("/all", h.ListShows, cache)
	public.GET("/seats/:showId", h.SeatMap)
	public.GET("/:movieId", h.ShowTimes, cache)

	admin := e.Group("/api/show",
		ratelimit,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)
	admin.GET("/now-playing-source", h.NowPlayingSource)
	admin.POST("/add", h.AddShow)
}

// RegisterBookings registers the booking endpoints.  Creation and
// listing require a user token; the payment callback authenticates
// with the webhook secret inside the handler instead.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, ratelimit echo.MiddlewareFunc) {
	user := e.Group("/api",
		ratelimit,
		middleware.JWTAuth(jwtSecret),
	)
	user.POST("/booking/create", h.CreateBooking)
	user.GET("/user/bookings", h.UserBookings)

	e.POST("/api/booking/:id/paid", h.MarkPaid, ratelimit)
}
