package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/fittrack/internal/config"
	"github.com/2beens/fittrack/internal/db"
	"github.com/2beens/fittrack/internal/exercisedb"
	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/middleware"
	"github.com/2beens/fittrack/internal/misc"
	"github.com/2beens/fittrack/internal/program"
	"github.com/2beens/fittrack/internal/steps"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/internal/workout"
)

const maxRequestBodyBytes = 1 << 20

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	appSecretHash     string // sent hashed by the mobile app in every request
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	kvStore     kvstore.Store
	sqliteStore *kvstore.SQLiteStore // set only with the sqlite kv backend, closed on shutdown

	accumulator   *steps.Accumulator
	pushSensor    *steps.PushSensor
	bridge        *steps.Bridge
	drafts        *workout.DraftStore
	workoutsRepo  *workout.Repo
	programs      *program.Catalog
	exerciseDbApi *exercisedb.Api

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	AppSecretHash           string
	VersionInfo             string
	RedisPassword           string
	PostgresUser            string
	PostgresPassword        string
	ExerciseDBApiKey        string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	location, err := params.Config.Location()
	if err != nil {
		return nil, err
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		DBUser:         params.PostgresUser,
		DBPassword:     params.PostgresPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	} else if err := db.EnsureSchema(ctx, dbPool); err != nil {
		// workouts cannot be saved, steps and drafts still work
		log.Errorf("ensure db schema: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("fittrack", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "fittrack-backend", rdb)
	if err != nil {
		return nil, err
	}

	kvStore, sqliteStore, err := newKVStore(params.Config, rdb)
	if err != nil {
		return nil, err
	}

	programs, err := loadPrograms(params.Config.ProgramsPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:        params.Config,
		appSecretHash: params.AppSecretHash,
		versionInfo:   params.VersionInfo,
		dbPool:        dbPool,
		redisClient:   rdb,
		kvStore:       kvStore,
		sqliteStore:   sqliteStore,
		workoutsRepo:  workout.NewRepo(dbPool),
		programs:      programs,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	s.accumulator = steps.NewAccumulator(
		ctx,
		kvStore,
		steps.WithLocation(location),
		steps.WithMetrics(metricsManager),
	)
	s.pushSensor = steps.NewPushSensor()
	s.bridge = steps.NewBridge(s.pushSensor, s.accumulator, location, time.Now, metricsManager)
	s.drafts = workout.NewDraftStore(ctx, kvStore, workout.WithMetrics(metricsManager))

	if params.Config.ExerciseDBURL != "" {
		if params.ExerciseDBApiKey == "" {
			log.Warnln("exercise db api key not set, lookups will be rejected")
		}
		tracedHttpClient := &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		}
		s.exerciseDbApi, err = exercisedb.NewApi(params.Config.ExerciseDBURL, params.ExerciseDBApiKey, tracedHttpClient)
		if err != nil {
			return nil, fmt.Errorf("new exercise db api: %w", err)
		}
	} else {
		log.Warnln("exercise db url not set, exercise lookups disabled")
	}

	return s, nil
}

func newKVStore(cfg *config.Config, rdb *redis.Client) (kvstore.Store, *kvstore.SQLiteStore, error) {
	switch cfg.KVBackend {
	case config.KVBackendRedis:
		log.Debugln("kv store: redis")
		return kvstore.NewRedisStore(rdb), nil, nil
	case config.KVBackendSQLite:
		log.Debugf("kv store: sqlite [%s]", cfg.SQLitePath)
		sqliteStore, err := kvstore.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite kv store: %w", err)
		}
		return sqliteStore, sqliteStore, nil
	case config.KVBackendMemory:
		log.Warnln("kv store: memory, steps and preferences will not survive a restart")
		return kvstore.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown kv backend: %s", cfg.KVBackend)
	}
}

func loadPrograms(path string) (*program.Catalog, error) {
	if path == "" {
		return program.Empty(), nil
	}

	programs, err := program.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("programs file [%s] not found, no programs available", path)
			return program.Empty(), nil
		}
		return nil, fmt.Errorf("load programs: %w", err)
	}

	log.Debugf("loaded %d workout programs", len(programs.Programs()))
	return programs, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("fittrack-router"))

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)

	miscHandler := misc.NewHandler(s.versionInfo, map[string]misc.HealthCheck{
		"postgres": s.dbPool.Ping,
		"kv":       s.kvHealthCheck,
	})
	miscHandler.SetupRoutes(r)

	stepsHandler := steps.NewHandler(s.accumulator, s.bridge, s.pushSensor)
	stepsHandler.SetupRoutes(r, reqRateLimiter, s.config.SensorSamplesPerMinute, s.metricsManager)

	workoutHandler := workout.NewHandler(s.drafts, s.workoutsRepo, s.programs)
	workoutHandler.SetupRoutes(r)

	if s.exerciseDbApi != nil {
		exercisesHandler := exercisedb.NewHandler(s.exerciseDbApi)
		exercisesHandler.SetupRoutes(r)
	}

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.appSecretHash)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.LimitRequestBody(maxRequestBodyBytes))

	return r
}

// kvHealthCheck reads a key that is never written, a missing key means the store answered.
func (s *Server) kvHealthCheck(ctx context.Context) error {
	_, err := s.kvStore.Load(ctx, "health-check")
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return err
	}
	return nil
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	go s.accumulator.RunRolloverChecks(ctx, s.config.RolloverCheckInterval.Duration)

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.bridge.Stop()

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.sqliteStore != nil {
		if err := s.sqliteStore.Close(); err != nil {
			log.Errorf("failed to close sqlite kv store: %s", err)
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}
