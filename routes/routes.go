package routes

import (
	"vastra/cart"
	"vastra/invoice"
	"vastra/live"
	"vastra/middleware"
	"vastra/orders"
	"vastra/products"
	"vastra/ratelim"
	"vastra/webhook"

	"github.com/julienschmidt/httprouter"
)

func AddProductRoutes(router *httprouter.Router, h *products.Handlers) {
	router.GET("/api/v1/products", ratelim.RateLimit(h.ListProducts))
	router.GET("/api/v1/products/:productid", ratelim.RateLimit(h.GetProduct))
	router.GET("/api/v1/bestsellers", ratelim.RateLimit(h.BestSellers))
	router.GET("/api/v1/discounted-products", ratelim.RateLimit(h.DiscountedProducts))

	router.POST("/api/v1/owner/products", ratelim.RateLimit(middleware.Authenticate(middleware.OwnerOnly(h.CreateProduct))))
	router.PUT("/api/v1/owner/products/:productid", ratelim.RateLimit(middleware.Authenticate(middleware.OwnerOnly(h.UpdateProduct))))
	router.DELETE("/api/v1/owner/products/:productid", ratelim.RateLimit(middleware.Authenticate(middleware.OwnerOnly(h.DeleteProduct))))
	router.POST("/api/v1/owner/products/:productid/discount", ratelim.RateLimit(middleware.Authenticate(middleware.OwnerOnly(h.ApplyDiscount))))
	router.DELETE("/api/v1/owner/products/:productid/discount", ratelim.RateLimit(middleware.Authenticate(middleware.OwnerOnly(h.RemoveDiscount))))
}

// Cart routes take OptionalAuth: guests carry a session cookie, logged-in
// users a token, and the handlers merge the two on first authenticated hit.
func AddCartRoutes(router *httprouter.Router, h *cart.Handlers) {
	router.GET("/api/v1/cart", ratelim.RateLimit(middleware.OptionalAuth(h.GetCart)))
	router.POST("/api/v1/cart/items", ratelim.RateLimit(middleware.OptionalAuth(h.AddToCart)))
	router.PUT("/api/v1/cart/items", ratelim.RateLimit(middleware.OptionalAuth(h.UpdateQuantity)))
	router.DELETE("/api/v1/cart/items", ratelim.RateLimit(middleware.OptionalAuth(h.RemoveFromCart)))
	router.DELETE("/api/v1/cart", ratelim.RateLimit(middleware.OptionalAuth(h.ClearCart)))
}

func AddOrderRoutes(router *httprouter.Router, h *orders.Handlers) {
	router.POST("/api/v1/orders", ratelim.RateLimit(middleware.Authenticate(h.PlaceOrder)))
	router.GET("/api/v1/orders", ratelim.RateLimit(middleware.Authenticate(h.GetOrders)))
	router.GET("/api/v1/orders/:orderid", ratelim.RateLimit(middleware.Authenticate(h.GetOrder)))
	router.POST("/api/v1/orders/:orderid/cancel", ratelim.RateLimit(middleware.Authenticate(h.CancelOrder)))
	router.POST("/api/v1/payments/verify", ratelim.RateLimit(middleware.Authenticate(h.VerifyPayment)))

	router.GET("/api/v1/owner/orders", ratelim.RateLimit(middleware.Authenticate(middleware.OwnerOnly(h.GetAllOrders))))
	router.GET("/api/v1/owner/orders/:orderid", ratelim.RateLimit(middleware.Authenticate(middleware.OwnerOnly(h.GetAnyOrder))))
	router.DELETE("/api/v1/owner/orders/:orderid", ratelim.RateLimit(middleware.Authenticate(middleware.OwnerOnly(h.DeleteOrder))))
	router.GET("/api/v1/owner/stats", ratelim.RateLimit(middleware.Authenticate(middleware.OwnerOnly(h.RevenueStats))))
}

func AddInvoiceRoutes(router *httprouter.Router, h *invoice.Handlers) {
	router.GET("/api/v1/invoices", ratelim.RateLimit(middleware.Authenticate(h.ListInvoices)))
	router.GET("/api/v1/invoices/:orderid/download", ratelim.RateLimit(middleware.Authenticate(h.DownloadInvoice)))
}

// Webhook routes carry no auth middleware; the HMAC signature on the raw
// body is the authentication.
func AddWebhookRoutes(router *httprouter.Router, h *webhook.Handler) {
	router.POST("/api/v1/webhooks/razorpay", h.Receive)
}

// The websocket route carries no header middleware; ServeWS validates the
// token from the query string during the upgrade.
func AddLiveRoutes(router *httprouter.Router, hub *live.Hub) {
	router.GET("/ws/orders", hub.ServeWS)
}
