package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/andrednh6/tradingschool/internal/goals"
	"github.com/andrednh6/tradingschool/internal/market"
	"github.com/andrednh6/tradingschool/internal/metrics"
	"github.com/andrednh6/tradingschool/internal/priceengine"
	"github.com/andrednh6/tradingschool/internal/session"
	"github.com/andrednh6/tradingschool/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Level goals ---
	table := goals.DefaultTable()
	if path := os.Getenv("LEVEL_GOALS_PATH"); path != "" {
		var err error
		table, err = goals.LoadTable(path)
		if err != nil {
			slog.Error("invalid level goal table", "path", path, "err", err)
			os.Exit(1)
		}
		slog.Info("level goals loaded", "path", path, "max_level", table.MaxLevel)
	}

	// --- Price engine ---
	// SIM_SEED fixes the random source for reproducible simulations;
	// unset means time-seeded.
	var rng *rand.Rand
	if seedStr := os.Getenv("SIM_SEED"); seedStr != "" {
		seed, err := strconv.ParseInt(seedStr, 10, 64)
		if err != nil {
			slog.Error("invalid SIM_SEED", "err", err)
			os.Exit(1)
		}
		rng = rand.New(rand.NewSource(seed))
		slog.Info("price engine seeded", "seed", seed)
	}
	pricer := priceengine.New(rng, market.Sectors)

	// --- Session engine ---
	initialCash := decimal.Zero
	if cashStr := os.Getenv("INITIAL_CASH"); cashStr != "" {
		var err error
		initialCash, err = decimal.NewFromString(cashStr)
		if err != nil {
			slog.Error("invalid INITIAL_CASH", "err", err)
			os.Exit(1)
		}
	}
	maxWeeks := 0
	if weeksStr := os.Getenv("MAX_WEEKS"); weeksStr != "" {
		var err error
		maxWeeks, err = strconv.Atoi(weeksStr)
		if err != nil {
			slog.Error("invalid MAX_WEEKS", "err", err)
			os.Exit(1)
		}
	}
	engine := session.NewEngine(table, pricer, initialCash, maxWeeks)

	// --- WebSocket hub ---
	wsHub := session.NewWSHub()
	go wsHub.Run()

	// --- Session service ---
	sessionSvc := session.NewService(st, engine, session.SlogNotifier{}, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"tradingschool"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time session updates.
		r.Get("/ws", wsHub.HandleWS)

		// Session lifecycle.
		r.Post("/sessions/{userID}", sessionSvc.StartSession)
		r.Get("/sessions/{userID}", sessionSvc.GetSession)
		r.Delete("/sessions/{userID}", sessionSvc.ResetSession)

		// Session actions.
		r.Post("/sessions/{userID}/buy", sessionSvc.Buy)
		r.Post("/sessions/{userID}/sell", sessionSvc.Sell)
		r.Post("/sessions/{userID}/advance-week", sessionSvc.AdvanceWeek)
		r.Post("/sessions/{userID}/complete-theory", sessionSvc.CompleteTheory)

		// Session views.
		r.Get("/sessions/{userID}/tickers", sessionSvc.GetTickers)
		r.Get("/sessions/{userID}/transactions", sessionSvc.GetTransactions)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("tradingschool listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down tradingschool...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("tradingschool stopped")
}
