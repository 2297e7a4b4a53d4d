package trackingservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"rider-tracking/internal/general/config"
	"rider-tracking/internal/general/jwt"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/general/mqtt"
	"rider-tracking/internal/general/postgres"
	"rider-tracking/internal/general/rabbitmq"
	"rider-tracking/internal/general/redisrelay"
	"rider-tracking/internal/general/shipments"
	"rider-tracking/internal/general/sqlite"
	"rider-tracking/internal/general/websocket"
	"rider-tracking/internal/ports"
	"rider-tracking/internal/software/tracking/geofence"
	"rider-tracking/internal/software/tracking/handler"
	"rider-tracking/internal/software/tracking/service"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const serviceName = "tracking-service"

// Run starts the tracking service and blocks until ctx is cancelled or a component fails.
func Run(ctx context.Context, cfgPath string, maxConcurrent int) error {
	// set up a new logger with a static request ID for startup logs
	log := logger.New(serviceName)
	ctx = log.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load config", err, map[string]any{"path": cfgPath})
		return err
	}
	if maxConcurrent < 1 {
		maxConcurrent = cfg.Server.MaxConcurrent
	}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "storage_open_failed", "Failed to open storage", err, map[string]any{"driver": cfg.Storage.Driver})
		return err
	}
	defer store.Close()

	// broker: publisher for events and shipment confirmations, consumer for commands
	var (
		publisher ports.EventPublisher         = rabbitmq.Discard{}
		notifier  ports.ShipmentStatusNotifier = rabbitmq.Discard{}
		mq        *rabbitmq.Client
	)
	if cfg.RabbitMQ.Enabled {
		mq, err = rabbitmq.ConnectRabbitMQ(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer mq.Close()
		tp := rabbitmq.NewTrackingPublisher(mq, serviceName)
		publisher, notifier = tp, tp
	}

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.TTL)
	hub := websocket.NewHub(log, cfg.Tracking.ViewerSendBuffer, cfg.Tracking.WriteTimeout)

	var relay *redisrelay.Relay
	if rc := redisrelay.Connect(cfg); rc != nil {
		defer rc.Close()
		relay = redisrelay.NewRelay(rc, cfg.Redis.Channel, uuid.NewString(), log)
		hub.SetRelay(relay)
	}

	detector := geofence.NewDetector(log, hub, publisher, geofence.Settings{
		RadiusM:          cfg.Tracking.GeofenceRadiusM,
		AutoConfirm:      cfg.AutoConfirm(),
		RequireDeparture: cfg.RequireDeparture(),
	})
	svc := service.NewTrackingService(log, store, hub, publisher, notifier, shipments.NewClient(cfg), detector)
	detector.SetFinalizer(func(ctx context.Context, sessionID string) error {
		_, err := svc.ConfirmCompletion(ctx, ports.SessionRef{SessionID: sessionID})
		return err
	})

	feed := websocket.NewFeed(hub, jwtManager, svc, log)
	mux := http.NewServeMux()
	handler.NewTrackingHTTPHandler(svc, log, jwtManager, feed.Connect, store.Health).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           withConcurrencyLimit(maxConcurrent, mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(ctx, "service_started", fmt.Sprintf("Tracking service started on port %d", cfg.Server.Port), map[string]any{
			"port":           cfg.Server.Port,
			"max_concurrent": maxConcurrent,
			"storage":        cfg.Storage.Driver,
			"rabbitmq":       cfg.RabbitMQ.Enabled,
			"relay":          relay != nil,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.Server.Port})
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
		return nil
	})

	if mq != nil {
		consumer := service.NewCommandConsumer(svc, log)
		g.Go(func() error { return consumer.Run(gctx, mq, cfg.RabbitMQ.Prefetch) })
	}

	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(gctx, hub.DeliverRemote); err != nil && gctx.Err() == nil {
				log.Error(ctx, "relay_stopped", "Live feed relay stopped", err, nil)
			}
			return nil
		})
	}

	ingest := func(ctx context.Context, in ports.CoordinateInput) error {
		_, err := svc.RecordCoordinate(ctx, in)
		return err
	}
	if sub := mqtt.NewSubscriber(cfg, log, ingest); sub != nil {
		g.Go(func() error { return sub.Run(gctx) })
	}

	err = g.Wait()
	log.Info(context.Background(), "service_stopped", "Tracking service stopped", nil)
	return err
}

// OpenStore connects the configured storage engine and makes sure its schema exists.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*ports.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info(ctx, "db_connected", "Opened SQLite database", map[string]any{"path": cfg.Storage.SQLitePath})
		return db.Ports(), nil
	default:
		return postgres.Open(ctx, cfg, log)
	}
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
