package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vastra/cart"
	"vastra/db"
	"vastra/globals"
	"vastra/inventory"
	"vastra/invoice"
	"vastra/jobs"
	"vastra/live"
	"vastra/notify"
	"vastra/orders"
	"vastra/products"
	"vastra/razorpay"
	"vastra/rdx"
	"vastra/routes"
	"vastra/store"
	"vastra/webhook"

	"github.com/joho/godotenv"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s - %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	} else if port[0] != ':' {
		port = ":" + port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 15*time.Second)
	if err := db.Connect(connectCtx, globals.Getenv("MONGODB_URI", "mongodb://localhost:27017")); err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	if err := db.EnsureIndexes(connectCtx); err != nil {
		log.Fatalf("mongo indexes: %v", err)
	}
	connectCancel()

	// Redis is optional: without it, advisory locks no-op and order events
	// go to the log instead of the pub/sub channel.
	var notifier notify.Notifier = notify.LogNotifier{}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdx.Connect(addr)
		notifier = notify.NewRedisNotifier()
	}

	gateway := razorpay.New(
		os.Getenv("RAZORPAY_KEY_ID"),
		os.Getenv("RAZORPAY_KEY_SECRET"),
		os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
	)

	productStore := store.NewProductStore(db.ProductsCollection)
	cartStore := store.NewCartStore(db.CartsCollection)
	orderStore := store.NewOrderStore(db.OrdersCollection)
	paymentStore := store.NewPaymentStore(db.PaymentsCollection)
	invoiceStore := store.NewInvoiceStore(db.InvoicesCollection)

	hub := live.NewHub()
	go hub.Run()

	invoiceGen := invoice.NewGenerator(invoiceStore, globals.Getenv("INVOICE_QR_SECRET", "invoice-qr-secret"))
	cartSvc := cart.NewService(productStore, cartStore)
	orderSvc := orders.NewService(orders.Deps{
		Carts:    cartStore,
		Products: productStore,
		Orders:   orderStore,
		Payments: paymentStore,
		Ledger:   inventory.NewLedger(productStore),
		Gateway:  gateway,
		Invoices: invoiceGen,
		Notifier: notifier,
		Feed:     hub,
	})

	runner := jobs.NewRunner(orderSvc)
	runner.Start(ctx)

	router := httprouter.New()
	router.GET("/health", Index)
	routes.AddProductRoutes(router, products.NewHandlers(productStore))
	routes.AddCartRoutes(router, cart.NewHandlers(cartSvc))
	routes.AddOrderRoutes(router, orders.NewHandlers(orderSvc))
	routes.AddInvoiceRoutes(router, invoice.NewHandlers(invoiceStore))
	routes.AddWebhookRoutes(router, webhook.NewHandler(gateway, orderSvc))
	routes.AddLiveRoutes(router, hub)

	// CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // lock down in production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		hub.Stop()
	})

	go func() {
		log.Printf("Server listening on %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutdown signal received; shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Graceful shutdown failed: %v", err)
	}
	db.Disconnect(shutdownCtx)

	log.Println("Server stopped cleanly")
}
