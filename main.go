package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/EILE23/BusTrackr/internal/broadcast"
	"github.com/EILE23/BusTrackr/internal/config"
	"github.com/EILE23/BusTrackr/internal/observability/metrics"
	"github.com/EILE23/BusTrackr/internal/provider"
	"github.com/EILE23/BusTrackr/internal/scheduler"
	"github.com/EILE23/BusTrackr/internal/stream"
	"github.com/EILE23/BusTrackr/internal/transit/application"
	transitpostgres "github.com/EILE23/BusTrackr/internal/transit/infrastructure/postgres"
	transithttp "github.com/EILE23/BusTrackr/internal/transit/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	watch := config.DefaultWatch()
	if cfg.WatchConfigPath != "" {
		watch, err = config.LoadWatch(cfg.WatchConfigPath)
		if err != nil {
			logger.Fatalf("watch config error: %v", err)
		}
	}

	routeRepo := transitpostgres.NewRouteRepository(db)
	stopRepo := transitpostgres.NewStopRepository(db)
	observationRepo := transitpostgres.NewObservationRepository(db)
	arrivalRepo := transitpostgres.NewArrivalRepository(db)

	client, err := provider.NewClient(cfg.BusAPIBaseURL, cfg.BusAPIServiceKey, cfg.BusAPITimeout, logger)
	if err != nil {
		logger.Fatalf("provider client error: %v", err)
	}

	syncService, err := application.NewSyncService(client, stopRepo, observationRepo, arrivalRepo, logger)
	if err != nil {
		logger.Fatalf("sync service error: %v", err)
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("redis url error: %v", err)
		}
		cache = redis.NewClient(redisOpts)
		defer cache.Close()
	}

	locationService, err := application.NewLocationService(observationRepo, cache, logger)
	if err != nil {
		logger.Fatalf("location service error: %v", err)
	}
	stopService, err := application.NewStopService(stopRepo)
	if err != nil {
		logger.Fatalf("stop service error: %v", err)
	}
	arrivalService, err := application.NewArrivalService(arrivalRepo)
	if err != nil {
		logger.Fatalf("arrival service error: %v", err)
	}

	bus := broadcast.NewBus()
	publisher := broadcast.Fanout{bus}
	if cfg.MQTTURL != "" {
		mqttPublisher, err := broadcast.NewMQTTPublisher(cfg.MQTTURL, logger)
		if err != nil {
			logger.Fatalf("mqtt publisher error: %v", err)
		}
		defer mqttPublisher.Close()
		publisher = append(publisher, mqttPublisher)
	}

	sched, err := scheduler.New(syncService, client, routeRepo, locationService, arrivalRepo, publisher, watch, logger)
	if err != nil {
		logger.Fatalf("scheduler error: %v", err)
	}

	hub, err := stream.NewHub(bus, logger)
	if err != nil {
		logger.Fatalf("stream hub error: %v", err)
	}

	handler, err := transithttp.NewHandler(routeRepo, locationService, stopService, arrivalService)
	if err != nil {
		logger.Fatalf("transit handler error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sched.Start(ctx)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler { return loggingMiddleware(next, logger) })
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	handler.Mount(router)
	router.Get("/ws/live", hub.ServeLive)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]any{"status": "ok", "database": "connected", "timestamp": time.Now().UTC()}
		code := http.StatusOK
		if err := db.PingContext(pingCtx); err != nil {
			status["status"] = "error"
			status["database"] = "disconnected"
			status["error"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server error: %v", err)
	}
	logger.Printf("shut down")
}

type appConfig struct {
	DatabaseURL      string
	HTTPAddr         string
	BusAPIBaseURL    string
	BusAPIServiceKey string
	BusAPITimeout    time.Duration
	MQTTURL          string
	RedisURL         string
	WatchConfigPath  string
}

func loadConfig() appConfig {
	cfg := appConfig{
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		BusAPIBaseURL:    getenvDefault("BUS_API_BASE_URL", "http://ws.bus.go.kr/api/rest"),
		BusAPIServiceKey: getenvDefault("BUS_API_SERVICE_KEY", ""),
		BusAPITimeout:    time.Duration(getenvIntDefault("BUS_API_TIMEOUT_MS", 5000)) * time.Millisecond,
		MQTTURL:          getenvDefault("MQTT_URL", ""),
		RedisURL:         getenvDefault("REDIS_URL", ""),
		WatchConfigPath:  getenvDefault("BUSTRACKR_WATCH_CONFIG", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.BusAPIServiceKey == "" {
		log.Fatal("BUS_API_SERVICE_KEY is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade through the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
