package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"taskuno-backend/internal/auth"
	"taskuno-backend/internal/cache"
	"taskuno-backend/internal/email"
	"taskuno-backend/internal/hub"
	"taskuno-backend/internal/mailer"
	"taskuno-backend/internal/middleware"
	"taskuno-backend/internal/organization"
	"taskuno-backend/internal/projects"
	"taskuno-backend/internal/queue"
	"taskuno-backend/internal/storage"
	"taskuno-backend/internal/tasks"
	"taskuno-backend/internal/workers"
)

func main() {
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// Database connection (with retries)
	var db *sqlx.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sqlx.Connect("postgres", buildDSN())
		if err == nil {
			break
		}
		log.Printf("DB connection attempt %d failed: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	// Redis cache
	redisClient, err := cache.NewRedisClient()
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	store := storage.NewStorage(db)

	eventHub := hub.NewHub()
	producer := queue.NewProducer(redisClient, eventHub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	smtpClient := mailer.NewSMTPClient()
	consumer := workers.NewEmailConsumer(redisClient, store, smtpClient, queue.QueueName())
	consumer.Start(ctx)

	authHandler := auth.NewHandler(store, redisClient)
	orgHandler := organization.NewHandler(store, redisClient)
	projectHandler := projects.NewHandler(store)
	taskHandler := tasks.NewHandler(store, producer, eventHub)
	emailHandler := email.NewHandler(redisClient, consumer, queue.QueueName())

	authMw := auth.Middleware(redisClient)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthCheck(store, redisClient))
	r.Get("/swagger/*", httpSwagger.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Get("/health", serviceHealth("auth"))
		r.With(middleware.RateLimitRegister(redisClient)).Post("/", authHandler.Register)
		r.With(middleware.RateLimitLogin(redisClient)).Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Get("/profile", authHandler.Profile)
			r.Patch("/profile", authHandler.UpdateProfile)
			r.With(middleware.RateLimitInvite(redisClient)).Post("/invite", authHandler.Invite)
			r.Post("/logout", authHandler.Logout)
		})
	})

	r.Route("/organization", func(r chi.Router) {
		r.Get("/health", serviceHealth("organization"))
		r.Get("/", orgHandler.List)

		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Get("/developers", orgHandler.Developers)
			r.Get("/product-owners", orgHandler.ProductOwners)
			r.Get("/chart", orgHandler.Chart)
		})
	})

	r.Route("/project", func(r chi.Router) {
		r.Get("/health", serviceHealth("project"))

		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Post("/", projectHandler.Create)
			r.Get("/", projectHandler.List)
			r.Get("/{id}", projectHandler.Get)
			r.Patch("/{id}", projectHandler.Update)
			r.Delete("/{id}", projectHandler.Delete)
		})
	})

	r.Route("/task", func(r chi.Router) {
		r.Get("/health", serviceHealth("task"))

		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Post("/", taskHandler.Create)
			r.Get("/", taskHandler.List)
			r.Get("/logs", taskHandler.Logs)
			r.Get("/ws", taskHandler.Events)
			r.Get("/{id}", taskHandler.Get)
			r.Patch("/{id}", taskHandler.Update)
			r.Delete("/{id}", taskHandler.Delete)
		})
	})

	r.Route("/email", func(r chi.Router) {
		r.Get("/health", emailHandler.Health)
		r.Get("/status", emailHandler.Status)
	})

	server := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on %s", server.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

func healthCheck(store *storage.Storage, redisClient cache.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		checks := map[string]string{"database": "ok", "redis": "ok"}

		if err := store.Ping(); err != nil {
			checks["database"] = "unreachable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(); err != nil {
			checks["redis"] = "unreachable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{"status": status, "checks": checks})
	}
}

func serviceHealth(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": name})
	}
}

func buildDSN() string {
	return "host=" + getEnv("DB_HOST", "localhost") +
		" user=" + getEnv("DB_USER", "taskuno_user") +
		" password=" + getEnv("DB_PASSWORD", "taskuno_pass") +
		" dbname=" + getEnv("DB_NAME", "taskuno") +
		" sslmode=disable"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
