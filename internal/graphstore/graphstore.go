package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graphloom/backend/internal/migrations"
	"github.com/OFFIS-RIT/graphloom/backend/internal/util"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"
	neo4jstore "github.com/OFFIS-RIT/graphloom/backend/pkg/store/neo4j"
	pgxstore "github.com/OFFIS-RIT/graphloom/backend/pkg/store/pgx"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store/sqlite"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendNeo4j    = "neo4j"
)

// Config selects and parameterizes a GraphStorage backend.
type Config struct {
	Backend string

	DatabaseURL string
	SQLitePath  string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string
	Neo4jPoolSize int

	ConnectRetries int
	Options        store.Options
}

// ConfigFromEnv reads the store configuration from the environment.
func ConfigFromEnv() Config {
	opts := store.DefaultOptions()
	opts.AllowDuplicateEdges = util.GetEnvBool("ALLOW_DUPLICATE_EDGES", opts.AllowDuplicateEdges)
	opts.Timeout = util.GetEnvDuration("STORE_TIMEOUT", opts.Timeout)

	return Config{
		Backend:        util.GetEnvString("STORE_BACKEND", BackendPostgres),
		DatabaseURL:    util.GetEnv("DATABASE_URL"),
		SQLitePath:     util.GetEnvString("SQLITE_PATH", "graphloom.db"),
		Neo4jURI:       util.GetEnvString("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:      util.GetEnvString("NEO4J_USER", "neo4j"),
		Neo4jPassword:  util.GetEnv("NEO4J_PASSWORD"),
		Neo4jDatabase:  util.GetEnvString("NEO4J_DATABASE", "neo4j"),
		Neo4jPoolSize:  int(util.GetEnvNumeric("NEO4J_MAX_POOL_SIZE", 50)),
		ConnectRetries: int(util.GetEnvNumeric("STORE_CONNECT_RETRIES", 5)),
		Options:        opts,
	}
}

// Open connects the configured backend. The returned close function
// releases the store and the underlying pool or driver.
func Open(ctx context.Context, cfg Config) (store.GraphStorage, func(), error) {
	logger.Info("[Store] Opening graph store", "backend", cfg.Backend, "allow_duplicate_edges", cfg.Options.AllowDuplicateEdges)

	switch cfg.Backend {
	case BackendPostgres:
		return openPostgres(ctx, cfg)
	case BackendSQLite:
		s, err := sqlite.New(ctx, cfg.SQLitePath, cfg.Options)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case BackendNeo4j:
		return openNeo4j(ctx, cfg)
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Backend)
	}
}

func openPostgres(ctx context.Context, cfg Config) (store.GraphStorage, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
	}

	err := util.RetryErrWithContext(ctx, cfg.ConnectRetries, func(ctx context.Context) error {
		err := migrations.Up(cfg.DatabaseURL)
		if err != nil {
			logger.Warn("[Store] Database not ready, retrying", "err", err)
			sleep(ctx, 2*time.Second)
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("unable to reach database: %w", err)
	}

	s := pgxstore.NewGraphDBStorageWithConnection(
		pool,
		pgxstore.WithAllowDuplicateEdges(cfg.Options.AllowDuplicateEdges),
		pgxstore.WithQueryTimeout(cfg.Options.Timeout),
	)
	return s, func() {
		_ = s.Close()
		pool.Close()
	}, nil
}

func openNeo4j(ctx context.Context, cfg Config) (store.GraphStorage, func(), error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = cfg.Neo4jPoolSize
			c.SocketConnectTimeout = cfg.Options.Timeout
		},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	err = util.RetryErrWithContext(ctx, cfg.ConnectRetries, func(ctx context.Context) error {
		err := driver.VerifyConnectivity(ctx)
		if err != nil {
			logger.Warn("[Store] Neo4j not ready, retrying", "err", err)
			sleep(ctx, 2*time.Second)
		}
		return err
	})
	if err != nil {
		_ = driver.Close(ctx)
		return nil, nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	s, err := neo4jstore.New(ctx, driver, cfg.Neo4jDatabase, cfg.Options)
	if err != nil {
		_ = driver.Close(ctx)
		return nil, nil, err
	}
	return s, func() {
		_ = s.Close()
		_ = driver.Close(context.Background())
	}, nil
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
