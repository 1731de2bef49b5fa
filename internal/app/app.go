// Package app assembles the service from configuration: storage, engine,
// notification channels and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/restaurant-queue/internal/config"
	"github.com/iliyamo/restaurant-queue/internal/database"
	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/handler"
	"github.com/iliyamo/restaurant-queue/internal/middleware"
	"github.com/iliyamo/restaurant-queue/internal/model"
	"github.com/iliyamo/restaurant-queue/internal/notify"
	"github.com/iliyamo/restaurant-queue/internal/queue"
	"github.com/iliyamo/restaurant-queue/internal/realtime"
	"github.com/iliyamo/restaurant-queue/internal/repository"
	"github.com/iliyamo/restaurant-queue/internal/router"
	"github.com/iliyamo/restaurant-queue/internal/service"
)

// Storage is the opened persistence backend.
type Storage struct {
	Store engine.Store
	Staff repository.StaffStore
	DB    *sql.DB // nil for the memory backend
	// Empty reports whether the table pool has no tables yet.
	Empty bool
}

// Close releases the database handle, if any.
func (s Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStorage opens the backend selected by cfg.Store.  The memory backend
// starts with the configured layout; the MySQL backend is migrated first.
func OpenStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (Storage, error) {
	switch cfg.Store {
	case config.StoreMySQL:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return Storage{}, fmt.Errorf("open database: %w", err)
		}
		applied, err := database.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return Storage{}, fmt.Errorf("migrate: %w", err)
		}
		for _, f := range applied {
			log.Info("migration applied", "file", f)
		}
		store := repository.NewSQLStore(db, log)
		n, err := store.Tables().Count(ctx)
		if err != nil {
			_ = db.Close()
			return Storage{}, err
		}
		return Storage{Store: store, Staff: repository.NewStaffRepo(db), DB: db, Empty: n == 0}, nil
	default:
		return Storage{
			Store: repository.NewMemoryStore(),
			Staff: repository.NewMemoryStaffRepo(),
			Empty: true,
		}, nil
	}
}

// PoolLayout returns the layout file when configured, else POOL_SIZE tables
// of DEFAULT_TABLE_CAPACITY.
func PoolLayout(cfg config.Config) (database.Layout, error) {
	if cfg.PoolLayoutFile != "" {
		return database.LoadLayout(cfg.PoolLayoutFile)
	}
	return database.UniformLayout(cfg.PoolSize, cfg.DefaultTableCapacity), nil
}

// SeedPool adds the layout's tables through the engine.
func SeedPool(ctx context.Context, eng *engine.Engine, layout database.Layout) (int, error) {
	added := 0
	for _, g := range layout.Tables {
		ts, err := eng.AddTables(ctx, g.Count, g.Capacity)
		if err != nil {
			return added, err
		}
		added += len(ts)
	}
	return added, nil
}

// NewEngine builds the engine with the configured clock and limits.
func NewEngine(cfg config.Config, store engine.Store, n engine.Notifier, log *slog.Logger) *engine.Engine {
	clock, err := engine.NewCivilClock(cfg.Timezone)
	if err != nil {
		log.Warn("timezone unavailable, using UTC", "zone", cfg.Timezone, "err", err)
	}
	opts := []engine.Option{
		engine.WithClock(clock),
		engine.WithLogger(log),
		engine.WithCapacityRange(engine.CapacityRange{Min: cfg.CapacityMin, Max: cfg.CapacityMax}),
		engine.WithReuseWindow(cfg.ReuseWindow),
		engine.WithHeldWarning(cfg.HeldWarning),
	}
	if n != nil {
		opts = append(opts, engine.WithNotifier(n))
	}
	return engine.New(store, opts...)
}

// ServeOptions toggles optional background work of Serve.
type ServeOptions struct {
	// Consumers runs the broker consumers that write the notification and
	// usage logs in this process.
	Consumers bool
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config, log *slog.Logger, opts ServeOptions) error {
	storage, err := OpenStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer storage.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Info("redis unavailable: rate limiting off, streams local to this instance")
	} else {
		defer rdb.Close()
	}

	registry := realtime.NewRegistry(32)
	relay := realtime.NewRedisRelay(rdb, registry, log)
	loc := clockLocation(cfg)
	fan := &notify.FanOut{
		Direct: relay,
		Staff:  relay,
		Log:    log,
		Now:    func() time.Time { return time.Now().In(loc) },
	}
	publisher := service.NewPublisher(cfg.AMQPURL, log)
	if publisher.Enabled() {
		fan.Push = publisher
		fan.Reporter = publisher
		defer publisher.Close()
	} else {
		log.Info("no broker configured: push channel and usage stream off")
	}
	async := notify.NewAsync(fan, cfg.NotifyBuffer, log)
	defer async.Close()

	eng := NewEngine(cfg, storage.Store, async, log)

	if storage.Empty {
		layout, err := PoolLayout(cfg)
		if err != nil {
			return fmt.Errorf("pool layout: %w", err)
		}
		n, err := SeedPool(ctx, eng, layout)
		if err != nil {
			return fmt.Errorf("seed pool: %w", err)
		}
		log.Info("table pool seeded", "tables", n)
	}
	if err := bootstrapAdmin(ctx, cfg, storage.Staff, log); err != nil {
		return err
	}

	e := NewHTTP(cfg, log, eng, storage.Staff, registry, rdb)

	var wg sync.WaitGroup
	bg, stopBG := context.WithCancel(ctx)
	defer func() {
		stopBG()
		wg.Wait()
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := relay.Run(bg); err != nil {
			log.Warn("relay stopped", "err", err)
		}
	}()
	if opts.Consumers && publisher.Enabled() {
		for _, c := range Consumers(cfg, log) {
			wg.Add(1)
			go func(c queue.Consumer) {
				defer wg.Done()
				_ = c.Run(bg)
			}(c)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.Store)
		errCh <- e.Start(addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func clockLocation(cfg config.Config) *time.Location {
	clock, _ := engine.NewCivilClock(cfg.Timezone)
	return clock.Loc
}

// NewHTTP builds the echo server with every route registered.
func NewHTTP(cfg config.Config, log *slog.Logger, eng *engine.Engine, staff repository.StaffStore, reg *realtime.Registry, rdb *redis.Client) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	sessions := handler.NewPartySessions([]byte(cfg.SessionHashKey), cfg.Env == "prod")
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterParty(e, handler.NewPartyHandler(eng, sessions, reg), limit)
	router.RegisterAuth(e, handler.NewAuthHandler(staff, cfg.JWTSecret, cfg.AccessTTLMin), cfg.JWTSecret)
	router.RegisterStaff(e, handler.NewStaffHandler(eng, reg), cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminHandler(eng, staff, cfg.BcryptCost), cfg.JWTSecret)
	return e
}

// Consumers returns the broker consumers that append the notification and
// usage logs under cfg.LogDir.
func Consumers(cfg config.Config, log *slog.Logger) []queue.Consumer {
	return []queue.Consumer{
		{
			URL:     cfg.AMQPURL,
			Queue:   queue.PartyAssignedQueue,
			Handler: queue.AssignedLogHandler(&queue.LogWriter{Dir: cfg.LogDir, File: "notifications.log"}),
			Log:     log,
		},
		{
			URL:     cfg.AMQPURL,
			Queue:   queue.TableUsageQueue,
			Handler: queue.UsageLogHandler(&queue.LogWriter{Dir: cfg.LogDir, File: "usage.log"}),
			Log:     log,
		},
	}
}

func bootstrapAdmin(ctx context.Context, cfg config.Config, staff repository.StaffStore, log *slog.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	if _, err := staff.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrStaffNotFound) {
		return err
	}
	id, err := staff.Create(ctx, cfg.AdminEmail, cfg.AdminPassword, model.RoleAdmin, cfg.BcryptCost)
	if err != nil && !errors.Is(err, repository.ErrEmailExists) {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	log.Info("bootstrap admin ready", "staff_id", id, "email", cfg.AdminEmail)
	return nil
}
