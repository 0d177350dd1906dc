package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/k0msak007/jobber-chat/internal/auth"
	"github.com/k0msak007/jobber-chat/internal/broker"
	"github.com/k0msak007/jobber-chat/internal/chat"
	"github.com/k0msak007/jobber-chat/internal/config"
	"github.com/k0msak007/jobber-chat/internal/db"
	"github.com/k0msak007/jobber-chat/internal/httputil"
	mw "github.com/k0msak007/jobber-chat/internal/middleware"
	"github.com/k0msak007/jobber-chat/internal/ws"
)

func main() {
	cfg := config.Load()

	// Database
	ctx := context.Background()
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()
	if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Printf("WARNING: migrations failed: %v", err)
	}

	// Message store and state engine
	store := chat.NewPostgresStore(database.Pool)
	engine := chat.NewEngine(store)

	// Broker (AMQP, Kafka, or in-memory per config)
	msgBroker, err := broker.NewBroker(cfg)
	if err != nil {
		log.Fatalf("broker setup failed: %v", err)
	}
	defer msgBroker.Close() //nolint:errcheck // best-effort cleanup on shutdown
	publisher := broker.NewPublisher(msgBroker)

	// JWT (gateway-issued tokens)
	jwtService := auth.NewJWTService(cfg.JWTSecret)

	// Push hub
	hub := ws.NewHub()
	go hub.Run()
	wsHandler := ws.NewHandler(hub, jwtService, cfg.AllowedOrigins)

	chatHandlers := chat.NewHandlers(engine, publisher, hub)

	// Router
	r := mux.NewRouter()

	// Rate limiting: 100 req/s per IP with burst of 200
	r.Use(mw.RateLimitMiddleware(100, 200))

	// Health check (no auth)
	r.HandleFunc("/chat-health", chatHealthHandler).Methods(http.MethodGet)

	// WebSocket (auth handled inside handler)
	wsHandler.RegisterRoutes(r)

	// Protected message routes
	protected := r.PathPrefix("").Subrouter()
	protected.Use(mw.AuthMiddleware(jwtService))
	chatHandlers.RegisterRoutes(protected)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        corsMiddleware(cfg.GatewayURL, r),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server shutdown failed: %v", err)
		}
	}()

	log.Printf("Chat service starting on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}

func chatHealthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "Chat service is healthy and OK."})
}

// corsMiddleware admits the API gateway origin only; the chat service is not
// exposed to browsers directly.
func corsMiddleware(gatewayURL string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", gatewayURL)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
