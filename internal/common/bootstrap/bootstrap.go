package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	authcleanup "github.com/AlibekovAA/panel-auth/internal/auth/cleanup"
	authrepo "github.com/AlibekovAA/panel-auth/internal/auth/repository"
	"github.com/AlibekovAA/panel-auth/internal/auth/revocation"
	"github.com/AlibekovAA/panel-auth/internal/auth/service"
	"github.com/AlibekovAA/panel-auth/internal/common/clock"
	"github.com/AlibekovAA/panel-auth/internal/common/config"
	"github.com/AlibekovAA/panel-auth/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/panel-auth/internal/common/crypto"
	"github.com/AlibekovAA/panel-auth/internal/common/db"
	commonhttp "github.com/AlibekovAA/panel-auth/internal/common/http"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
	"github.com/AlibekovAA/panel-auth/internal/common/resilience"
	userrepo "github.com/AlibekovAA/panel-auth/internal/user/repository"
)

// Store is the opened credential store: a pgx pool or a single SQLite
// connection, plus a database/sql handle for migrations.
type Store struct {
	Dialect string
	Pool    *pgxpool.Pool
	SQL     *sql.DB

	UserRepo    userrepo.Repository
	RenewalRepo authrepo.RenewalTokenRepository
}

func (s *Store) Ping(ctx context.Context) error {
	if s.Pool != nil {
		return s.Pool.Ping(ctx)
	}
	return s.SQL.PingContext(ctx)
}

func (s *Store) Migrate(ctx context.Context, log *logger.Logger) error {
	return db.Migrate(ctx, log, s.SQL, s.Dialect)
}

func (s *Store) MigrationStatus(ctx context.Context, log *logger.Logger) error {
	return db.MigrationStatus(ctx, log, s.SQL, s.Dialect)
}

func (s *Store) Close() {
	if s.SQL != nil {
		_ = s.SQL.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}

type AuthApp struct {
	Config  config.AuthConfig
	Log     *logger.Logger
	Store   *Store
	Redis   *redis.Client
	Revoked revocation.Cache
	Issuer  *service.TokenIssuer
	Renewal *service.RenewalTokenStore
	Service *service.AuthService
	Cleanup *authcleanup.Scheduler

	cancelMetrics context.CancelFunc
}

func InitializeLogger(serviceName string) (*logger.Logger, error) {
	return logger.New(os.Getenv("LOG_DIR"), serviceName, os.Getenv("LOG_LEVEL"))
}

// OpenStore connects to the configured driver. Postgres gets a retrying
// pgx pool; SQLite gets a single-writer connection.
func OpenStore(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, log, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Store{
			Dialect:     db.DialectPostgres,
			Pool:        pool,
			SQL:         db.OpenPgSQL(pool),
			UserRepo:    userrepo.NewPgRepository(pool),
			RenewalRepo: authrepo.NewPgRenewalTokenRepository(pool, log),
		}, nil
	case config.StoreDriverSQLite:
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Infof("using sqlite store at %s", cfg.SQLitePath)
		return &Store{
			Dialect:     db.DialectSQLite,
			SQL:         conn,
			UserRepo:    userrepo.NewSQLiteRepository(conn),
			RenewalRepo: authrepo.NewSQLiteRenewalTokenRepository(conn, log),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func NewAuthApp(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (*AuthApp, error) {
	if cfg.UsingDevSecret {
		log.Warn("JWT_SECRET is not set: using the development secret, never do this in production")
	}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := store.Migrate(ctx, log); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	app := &AuthApp{Config: cfg, Log: log, Store: store}

	if store.Pool != nil {
		metricsCtx, cancel := context.WithCancel(context.Background())
		app.cancelMetrics = cancel
		db.StartPoolMetrics(metricsCtx, store.Pool, constants.DBPoolMetricsInterval)
	}

	clk := clock.NewRealClock()

	switch cfg.RevocationBackend {
	case config.RevocationBackendRedis:
		client, err := revocation.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Redis = client
		app.Revoked = revocation.NewRedisCache(client, constants.RedisRevocationKeyPrefix, clk)
	default:
		app.Revoked = revocation.NewMemoryCache(cfg.RevocationCacheMaxSize, clk, log)
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  int32(cfg.CircuitBreakerThreshold),
		Timeout:    cfg.StoreTimeout,
		ResetAfter: cfg.CircuitBreakerReset,
		Name:       "credential_store",
		IsFailure:  service.IsStoreFailure,
		Logger:     log,
	})
	ids := commoncrypto.NewUUIDGenerator()

	app.Issuer = service.NewTokenIssuer(cfg.JWTSecret, ids, cfg.AccessTokenTTL, clk, app.Revoked)
	app.Renewal = service.NewRenewalTokenStore(
		store.RenewalRepo,
		commoncrypto.NewRandomTokenGenerator(constants.RenewalTokenSize),
		ids,
		cfg.RenewalTokenTTL(),
		clk,
		breaker,
		log,
	)
	app.Service = service.NewAuthService(
		store.UserRepo,
		app.Issuer,
		app.Renewal,
		app.Revoked,
		commoncrypto.NewBcryptHasher(commoncrypto.DefaultBcryptCost),
		ids,
		breaker,
		clk,
		log,
	)
	app.Cleanup = authcleanup.NewScheduler(app.Renewal, app.Revoked, cfg.CleanupInterval, log)

	log.Infof("auth app initialized: store=%s revocation=%s access_ttl=%v renewal_ttl=%v",
		cfg.StoreDriver, cfg.RevocationBackend, cfg.AccessTokenTTL, cfg.RenewalTokenTTL())
	return app, nil
}

func (a *AuthApp) ReadinessChecks() map[string]commonhttp.ReadinessCheck {
	checks := map[string]commonhttp.ReadinessCheck{
		"store": a.Store.Ping,
	}
	if a.Redis != nil {
		checks["revocation"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

func (a *AuthApp) Close() {
	if a.Cleanup != nil {
		a.Cleanup.Stop()
	}
	if a.cancelMetrics != nil {
		a.cancelMetrics()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
