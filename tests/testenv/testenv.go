// Package testenv spins up the real dependencies the purchase pipeline
// needs (Postgres, Redis) via testcontainers-go and wires the production
// components from internal/ against them, bootstrapping a disposable
// database and coordination store per test run. It is shared by
// tests/integration, tests/stress, and tests/chaos so each suite gets the
// same topology instead of re-deriving it.
package testenv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/gateway"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
	redisqueue "github.com/fairyhunter13/flashsale-purchase-processor/internal/queue/redis"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/sale"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/stats"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/status"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/stock"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/store/postgres"
	storeredis "github.com/fairyhunter13/flashsale-purchase-processor/internal/store/redis"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/worker"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id    VARCHAR(64) PRIMARY KEY,
	email      VARCHAR(255) NOT NULL UNIQUE,
	role       VARCHAR(16) NOT NULL DEFAULT 'user',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	product_id  VARCHAR(64) PRIMARY KEY,
	name        VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price_cents BIGINT NOT NULL,
	image_url   VARCHAR(512) NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stocks (
	product_id         VARCHAR(64) PRIMARY KEY REFERENCES products(product_id),
	total_quantity     INTEGER NOT NULL CHECK (total_quantity >= 0),
	available_quantity INTEGER NOT NULL CHECK (available_quantity >= 0),
	reserved_quantity  INTEGER NOT NULL CHECK (reserved_quantity >= 0),
	last_updated       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS flash_sales (
	sale_id    VARCHAR(64) PRIMARY KEY,
	product_id VARCHAR(64) NOT NULL REFERENCES products(product_id),
	start_time TIMESTAMPTZ NOT NULL,
	end_time   TIMESTAMPTZ NOT NULL,
	status     VARCHAR(16) NOT NULL,
	version    INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	order_id   VARCHAR(64) PRIMARY KEY,
	user_id    VARCHAR(64) NOT NULL REFERENCES users(user_id),
	product_id VARCHAR(64) NOT NULL REFERENCES products(product_id),
	status     VARCHAR(16) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(user_id, product_id)
);
`

// Env bundles the real infrastructure and the production components wired
// against it, for a single test's exclusive use.
type Env struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client

	Users    *postgres.UserRepository
	Products *postgres.ProductRepository
	Sales    *postgres.SaleRepository
	Stocks   *postgres.StockRepository
	Orders   *postgres.OrderRepository

	SaleService *sale.Service
	Stock       *stock.Manager
	Queue       *redisqueue.Queue
	Gateway     *gateway.Gateway
	Worker      *worker.Pool
	Status      *status.Service
	Stats       *stats.Aggregator
	Ticker      *sale.Ticker

	pgContainer    testcontainers.Container
	redisContainer testcontainers.Container
}

// New starts fresh Postgres and Redis containers, applies the schema, and
// wires every production component against them. Everything is torn down
// via t.Cleanup.
func New(t *testing.T) *Env {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("flashsale_test"),
		tcpostgres.WithUsername("flashsale"),
		tcpostgres.WithPassword("flashsale"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	connStr, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, schema)
	require.NoError(t, err, "apply schema")

	redisC, err := tcredis.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithOccurrence(1),
		),
	)
	require.NoError(t, err, "start redis container")

	redisHost, err := redisC.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisC.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port())})
	require.NoError(t, rdb.Ping(ctx).Err())

	userRepo := postgres.NewUserRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	saleRepo := postgres.NewSaleRepository(pool)
	stockRepo := postgres.NewStockRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	jobState := storeredis.NewJobStateStore(rdb)
	rateLimiter := storeredis.NewRateLimiter(rdb, 60*time.Second, 10)
	saleCache := storeredis.NewSaleCache(rdb)
	statsCache := storeredis.NewStatsCache(rdb)

	saleService := sale.New(saleRepo, saleCache)
	stockManager := stock.New(pool, stockRepo, saleService)
	jobQueue := redisqueue.New(rdb, redisqueue.Options{
		Attempts:         3,
		BaseBackoff:      50 * time.Millisecond,
		RemoveOnComplete: 100,
		RemoveOnFail:     50,
	})
	admissionGateway := gateway.New(jobState, rateLimiter, saleService, jobQueue)
	workerPool := worker.New(pool, saleService, stockManager, orderRepo, jobState)
	statusService := status.New(jobState)
	statsAggregator := stats.New(saleRepo, orderRepo, stockRepo, statsCache)
	ticker := sale.NewTicker(saleRepo, stockManager, saleService, 200*time.Millisecond)

	env := &Env{
		Pool: pool, Redis: rdb,
		Users: userRepo, Products: productRepo, Sales: saleRepo, Stocks: stockRepo, Orders: orderRepo,
		SaleService: saleService, Stock: stockManager, Queue: jobQueue, Gateway: admissionGateway,
		Worker: workerPool, Status: statusService, Stats: statsAggregator, Ticker: ticker,
		pgContainer: pgC, redisContainer: redisC,
	}

	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = jobQueue.Close(closeCtx)
		rdb.Close()
		pool.Close()
		_ = pgC.Terminate(closeCtx)
		_ = redisC.Terminate(closeCtx)
	})

	return env
}

// StartWorkers launches the Job Queue's consumer loop with concurrency
// workers, returning a stop func that blocks until the loop exits.
func (e *Env) StartWorkers(ctx context.Context, concurrency int) (stop func()) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = e.Queue.Process(runCtx, concurrency, e.Worker.Handle)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

// SeedProduct inserts a product row directly (admin CRUD is out of scope;
// tests seed the catalog the admin surface would otherwise populate).
func (e *Env) SeedProduct(t *testing.T, productID, name string, priceCents int64) {
	t.Helper()
	_, err := e.Pool.Exec(context.Background(), `
		INSERT INTO products (product_id, name, description, price_cents, image_url)
		VALUES ($1, $2, '', $3, '')`, productID, name, priceCents)
	require.NoError(t, err)
}

// SeedStock inserts a stock row with total == available, reserved == 0.
func (e *Env) SeedStock(t *testing.T, productID string, total int) {
	t.Helper()
	_, err := e.Pool.Exec(context.Background(), `
		INSERT INTO stocks (product_id, total_quantity, available_quantity, reserved_quantity)
		VALUES ($1, $2, $2, 0)`, productID, total)
	require.NoError(t, err)
}

// SeedSale inserts a flash sale row spanning [start, end) with the given
// stored status (the worker and Sale Service both recompute the effective
// status from the wall clock, so this only seeds the best-effort column).
func (e *Env) SeedSale(t *testing.T, saleID, productID string, start, end time.Time, status model.SaleStatus) {
	t.Helper()
	_, err := e.Pool.Exec(context.Background(), `
		INSERT INTO flash_sales (sale_id, product_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5)`, saleID, productID, start, end, status)
	require.NoError(t, err)
}

// SeedUser auto-registers a user the way the Durable Store's
// GetOrCreateByEmail would on first observed email.
func (e *Env) SeedUser(t *testing.T, userID, email string) {
	t.Helper()
	_, err := e.Users.GetOrCreateByEmail(context.Background(), userID, email)
	require.NoError(t, err)
}

// Email derives a deterministic, unique email for a synthetic test user id.
func Email(userID string) string {
	return fmt.Sprintf("%s@test.invalid", userID)
}

// PollUntilTerminal polls the Status Service for userID until the job
// reaches completed or failed, or the deadline elapses.
func (e *Env) PollUntilTerminal(t *testing.T, userID string, timeout time.Duration) *model.UserPurchaseState {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		state, err := e.Status.GetUserStatus(context.Background(), userID)
		if err == nil && (state.Status == model.JobStatusCompleted || state.Status == model.JobStatusFailed) {
			return state
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("purchase for user %s did not reach a terminal state within %s", userID, timeout)
	return nil
}

// StockRow reads the current stock row directly from the Durable Store.
func (e *Env) StockRow(t *testing.T, productID string) *model.Stock {
	t.Helper()
	s, err := e.Stocks.GetByProductID(context.Background(), productID)
	require.NoError(t, err)
	return s
}

// OrderCountForProduct counts confirmed+pending+failed orders for a
// product directly from the Durable Store.
func (e *Env) OrderCountForProduct(t *testing.T, productID string) postgres.OrderStatusCounts {
	t.Helper()
	counts, err := e.Orders.CountByStatusForProduct(context.Background(), productID)
	require.NoError(t, err)
	return counts
}
