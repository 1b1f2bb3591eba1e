package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/seu-repo/parkflow/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/parkflow/internal/service/auth"
)

// RealtimeHub accepts websocket connections for a user
type RealtimeHub interface {
	Serve(conn *websocket.Conn, userID string)
}

// Routes bundles everything the HTTP API is built from
type Routes struct {
	Auth          middleware.TokenValidator
	RBAC          middleware.PermissionChecker
	Session       *AuthHandler
	Bookings      *BookingHandler
	Payments      *PaymentHandler
	Subscriptions *SubscriptionHandler
	Slots         *SlotHandler
	Analytics     *AnalyticsHandler
	Notifications *NotificationHandler
	Hub           RealtimeHub
	RateLimit     fiber.Handler
}

// Register mounts the API under /api/v1 and the realtime channel under /ws
func (r Routes) Register(app fiber.Router) {
	v1 := app.Group("/api/v1")

	// Provider callbacks authenticate by signature, not by bearer token.
	v1.Post("/payments/webhook", r.Payments.Webhook)

	protected := v1.Group("", middleware.AuthRequired(r.Auth))
	if r.RateLimit != nil {
		protected.Use(r.RateLimit)
	}
	can := func(resource, action string) fiber.Handler {
		return middleware.RequirePermission(r.RBAC, resource, action)
	}

	protected.Get("/auth/me", r.Session.Me)
	protected.Post("/auth/logout", r.Session.Logout)

	protected.Post("/bookings", can(auth.ResourceBookings, auth.ActionWrite), r.Bookings.Create)
	protected.Get("/bookings", can(auth.ResourceBookings, auth.ActionRead), r.Bookings.ListMine)
	protected.Get("/bookings/:id", can(auth.ResourceBookings, auth.ActionRead), r.Bookings.Get)
	protected.Post("/bookings/:id/confirm", can(auth.ResourceBookings, auth.ActionWrite), r.Bookings.ConfirmPayment)
	protected.Post("/bookings/:id/cancel", can(auth.ResourceBookings, auth.ActionWrite), r.Bookings.Cancel)

	protected.Post("/scan", can(auth.ResourceScans, auth.ActionWrite), r.Bookings.Scan)
	protected.Get("/scans", can(auth.ResourceScans, auth.ActionRead), r.Bookings.ScanLog)

	protected.Post("/subscriptions", can(auth.ResourceSubscriptions, auth.ActionWrite), r.Subscriptions.Purchase)
	protected.Post("/subscriptions/confirm", can(auth.ResourceSubscriptions, auth.ActionWrite), r.Subscriptions.Confirm)
	protected.Get("/subscriptions", can(auth.ResourceSubscriptions, auth.ActionRead), r.Subscriptions.ListMine)
	protected.Post("/subscriptions/:id/cancel", can(auth.ResourceSubscriptions, auth.ActionWrite), r.Subscriptions.Cancel)

	protected.Get("/slots", can(auth.ResourceSlots, auth.ActionRead), r.Slots.List)
	protected.Get("/slots/:id", can(auth.ResourceSlots, auth.ActionRead), r.Slots.Get)

	protected.Get("/notifications", can(auth.ResourceNotifications, auth.ActionRead), r.Notifications.ListMine)
	protected.Post("/notifications/:id/read", can(auth.ResourceNotifications, auth.ActionWrite), r.Notifications.MarkRead)

	analytics := protected.Group("/analytics", can(auth.ResourceAnalytics, auth.ActionRead))
	analytics.Get("/dashboard", r.Analytics.Dashboard)
	analytics.Get("/occupancy", r.Analytics.Occupancy)
	analytics.Get("/revenue", r.Analytics.Revenue)
	analytics.Get("/peak-hours", r.Analytics.PeakHours)

	ws := app.Group("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, middleware.AuthRequired(r.Auth))
	ws.Get("/updates", websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals(middleware.LocalUserID).(string)
		r.Hub.Serve(c, userID)
	}))
}
