package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"utility-tracker/internal/amqp"
	"utility-tracker/internal/auth"
	"utility-tracker/internal/cache"
	"utility-tracker/internal/config"
	"utility-tracker/internal/handlers"
	"utility-tracker/internal/insights"
	"utility-tracker/internal/logging"
	"utility-tracker/internal/metrics"
	"utility-tracker/internal/reminder"
	"utility-tracker/internal/storage"
)

const (
	shutdownTimeout = 10 * time.Second
	cleanupInterval = time.Hour
)

func main() {
	cfg := config.Load()
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrapAdmin(ctx, db, cfg.AdminUser, cfg.AdminPassword); err != nil {
		return err
	}

	m := metrics.New()
	viewCache := cache.NewLRUCache[*insights.View](cfg.CacheSize, cfg.CacheTTL)
	views := insights.NewService(db, viewCache, m)

	opts := []handlers.Option{handlers.WithMetrics(m)}
	if cfg.APIEnabled() {
		opts = append(opts, handlers.WithTokens(auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)))
	} else {
		slog.Info("JSON API disabled, set JWT_SECRET to enable it")
	}
	h := handlers.NewHandlers(db, views, cfg.TemplateDir, cfg.SecureCookie, opts...)

	mux := setupRouter(h, cfg.StaticDir)
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", healthHandler(db))

	publisher, closePublisher := reminderPublisher(ctx, cfg)
	defer closePublisher()
	dispatcher := reminder.NewDispatcher(db, publisher, m)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.SecurityHeaders(h.Observe(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "port", cfg.Port, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		dispatcher.Run(gctx, cfg.ReminderInterval)
		return nil
	})
	g.Go(func() error {
		cleanup(gctx, db, viewCache)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupRouter(h *handlers.Handlers, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	fs := http.FileServer(http.Dir(staticDir))
	mux.Handle("GET /static/", http.StripPrefix("/static/", fs))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)

	protected := func(f http.HandlerFunc) http.Handler {
		return h.AuthMiddleware(f)
	}
	mux.Handle("GET /dashboard", protected(h.Dashboard))

	mux.Handle("GET /bills", protected(h.ListBills))
	mux.Handle("GET /bills/new", protected(h.NewBillForm))
	mux.Handle("POST /bills", protected(h.CreateBill))
	mux.Handle("GET /bills/{id}/edit", protected(h.EditBillForm))
	mux.Handle("PUT /bills/{id}", protected(h.UpdateBill))
	mux.Handle("POST /bills/{id}/pay", protected(h.MarkBillPaid))
	mux.Handle("DELETE /bills/{id}", protected(h.DeleteBill))

	mux.Handle("GET /payments", protected(h.ListPayments))
	mux.Handle("GET /payments/new", protected(h.NewPaymentForm))
	mux.Handle("POST /payments", protected(h.CreatePayment))
	mux.Handle("GET /payments/{id}/edit", protected(h.EditPaymentForm))
	mux.Handle("PUT /payments/{id}", protected(h.UpdatePayment))
	mux.Handle("DELETE /payments/{id}", protected(h.DeletePayment))

	mux.Handle("GET /analytics", protected(h.Analytics))

	mux.Handle("GET /notifications", protected(h.ListNotifications))
	mux.Handle("POST /notifications/read-all", protected(h.MarkAllNotificationsRead))
	mux.Handle("POST /notifications/{id}/read", protected(h.MarkNotificationRead))
	mux.Handle("POST /notifications/{id}/dismiss", protected(h.DismissNotification))

	bearer := func(f http.HandlerFunc) http.Handler {
		return h.BearerMiddleware(f)
	}
	mux.HandleFunc("POST /api/token", h.IssueToken)
	mux.Handle("GET /api/bills", bearer(h.APIListBills))
	mux.Handle("POST /api/bills", bearer(h.APICreateBill))
	mux.Handle("GET /api/bills/{id}", bearer(h.APIGetBill))
	mux.Handle("PATCH /api/bills/{id}", bearer(h.APIUpdateBill))
	mux.Handle("POST /api/bills/{id}/pay", bearer(h.APIMarkBillPaid))
	mux.Handle("DELETE /api/bills/{id}", bearer(h.APIDeleteBill))
	mux.Handle("GET /api/payments", bearer(h.APIListPayments))
	mux.Handle("POST /api/payments", bearer(h.APICreatePayment))
	mux.Handle("DELETE /api/payments/{id}", bearer(h.APIDeletePayment))
	mux.Handle("GET /api/notifications", bearer(h.APIListNotifications))
	mux.Handle("POST /api/notifications/read-all", bearer(h.APIMarkAllNotificationsRead))
	mux.Handle("POST /api/notifications/{id}/read", bearer(h.APIMarkNotificationRead))
	mux.Handle("POST /api/notifications/{id}/dismiss", bearer(h.APIDismissNotification))
	mux.Handle("GET /api/summary", bearer(h.APISummary))
	mux.Handle("GET /api/analytics", bearer(h.APIAnalytics))

	return mux
}

func healthHandler(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			slog.ErrorContext(r.Context(), "Health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}
}

// bootstrapAdmin creates the configured account when the database has no users.
func bootstrapAdmin(ctx context.Context, db *storage.DB, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if err := auth.ValidatePassword(password); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user, err := db.CreateUser(ctx, username, hash)
	if err != nil {
		return err
	}
	slog.Info("Created bootstrap user", "username", user.Username, "id", user.ID)
	return nil
}

// reminderPublisher connects to the broker when one is configured and falls
// back to logging reminders otherwise.
func reminderPublisher(ctx context.Context, cfg *config.Config) (reminder.Publisher, func()) {
	if cfg.AMQPURL == "" {
		slog.Info("AMQP disabled, reminders will be logged")
		return reminder.LogPublisher{}, func() {}
	}
	dialer := &amqp.Dialer{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange, Queue: cfg.AMQPQueue, MaxAttempts: 3}
	publisher, err := amqp.NewReconnectingPublisher(ctx, dialer)
	if err != nil {
		slog.Warn("Failed to initialize AMQP client, reminders will be logged", "error", err)
		return reminder.LogPublisher{}, func() {}
	}
	slog.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return publisher, func() { publisher.Close() }
}

// cleanup periodically removes expired sessions and cached views.
func cleanup(ctx context.Context, db *storage.DB, viewCache *cache.LRUCache[*insights.View]) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.CleanExpiredSessions(ctx)
			if err != nil {
				slog.Error("Failed to clean expired sessions", "error", err)
			}
			hits, misses := viewCache.Stats()
			slog.Debug("Cleanup complete",
				"sessions_removed", n,
				"views_expired", viewCache.CleanExpired(),
				"cache_hits", hits,
				"cache_misses", misses)
		}
	}
}
