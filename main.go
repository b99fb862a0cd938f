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

	"socialgraph/api"
	"socialgraph/config"
	"socialgraph/db"
	"socialgraph/gql"
	"socialgraph/graph"
	"socialgraph/live"
	"socialgraph/middleware"
	"socialgraph/mq"
	"socialgraph/ratelim"
	"socialgraph/rdx"
	"socialgraph/routes"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		// graph reads are never cached by intermediaries
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s – %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func openStore(ctx context.Context, cfg config.Config) (db.Store, error) {
	if cfg.Store == "memory" {
		log.Println("Using in-memory store; data is lost on exit")
		return db.NewMemoryStore(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Store: %v", err)
	}

	// live hub fans events out to websocket subscribers
	hub := live.NewHub()
	go hub.Run()

	var events graph.Emitter = mq.HubEmitter{Hub: hub}
	if cfg.RedisURL != "" {
		conn, err := rdx.NewClient(ctx, cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("❌ Redis: %v", err)
		}
		defer conn.Close()
		events = &mq.RedisEmitter{Conn: conn, Channel: mq.DefaultChannel}
		go mq.StartEventWorker(ctx, conn, mq.DefaultChannel, hub)
	}

	svc := graph.NewService(store, events, graph.Options{
		Timeout: cfg.OpTimeout,
		Retries: cfg.OpRetries,
	})
	resolver := graph.NewResolver(store, cfg.MaxDepth)
	reconciler := graph.NewReconciler(store)
	go reconciler.Start(ctx, cfg.ReconcileInterval)

	schema, err := gql.NewSchema(svc, store, cfg.MaxDepth)
	if err != nil {
		log.Fatalf("❌ GraphQL schema: %v", err)
	}

	auth := middleware.Auth{Secret: cfg.JWTSecret}
	if !auth.Enabled() {
		log.Println("JWT_SECRET not set; mutations are not authenticated")
	}

	rateLimiter := ratelim.NewRateLimiter(cfg.RateLimit, int(cfg.RateLimit*2))
	go rateLimiter.Janitor(ctx.Done())

	router := httprouter.New()
	router.GET("/health", Index)
	routes.AddGraphRoutes(router, api.NewHandler(svc, resolver, reconciler), auth, rateLimiter)
	routes.AddGraphQLRoutes(router, gql.Handler(schema, store), auth, rateLimiter)
	routes.AddLiveRoutes(router, hub)

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // lock down in production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           loggingMiddleware(securityHeaders(corsHandler)),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("🛑 Shutting down live hub...")
		hub.Stop()
	})

	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Graceful shutdown failed: %v", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Printf("❌ Closing store: %v", err)
	}

	log.Println("✅ Server stopped cleanly")
}
