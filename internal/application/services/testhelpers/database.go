package testhelpers

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/persistence/postgres"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type TestDatabase struct {
	Container *tcpostgres.PostgresContainer
	DB        *postgres.DB
	Config    *config.DatabaseConfig
}

func SetupTestDatabase(t *testing.T) *TestDatabase {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := &config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Name:            "testdb",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	require.NoError(t, postgres.RunMigrations(dbConfig.ConnString()))

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	db, err := postgres.Connect(ctx, dbConfig, logger)
	require.NoError(t, err)

	return &TestDatabase{
		Container: container,
		DB:        db,
		Config:    dbConfig,
	}
}

func (td *TestDatabase) Cleanup(t *testing.T) {
	ctx := context.Background()
	td.DB.Close()
	require.NoError(t, td.Container.Terminate(ctx))
}

func (td *TestDatabase) CleanTables(t *testing.T) {
	ctx := context.Background()

	_, err := td.DB.Pool.Exec(ctx,
		"TRUNCATE TABLE client_funds, transactions, invoice_items, invoices, clients RESTART IDENTITY CASCADE;")
	require.NoError(t, err)
}

// SeedClient inserts a client with the given balance and returns its id.
func (td *TestDatabase) SeedClient(t *testing.T, email, balance string) int64 {
	var id int64
	err := td.DB.Pool.QueryRow(context.Background(),
		`INSERT INTO clients (email, balance) VALUES ($1, $2::numeric) RETURNING id`, email, balance).Scan(&id)
	require.NoError(t, err)
	return id
}

// SeedInvoice inserts inv with its item titles and sets inv.ID.
func (td *TestDatabase) SeedInvoice(t *testing.T, inv *domain.Invoice) {
	ctx := context.Background()
	status := inv.Status
	if status == "" {
		status = domain.InvoiceUnpaid
	}

	err := td.DB.Pool.QueryRow(ctx, `
		INSERT INTO invoices (client_id, serie, nr, buyer_email, currency, total, hash, status)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8) RETURNING id
	`, inv.ClientID, inv.Serie, inv.Number, inv.BuyerEmail, inv.Currency, inv.Total.StringFixed(2), inv.Hash, status).Scan(&inv.ID)
	require.NoError(t, err)

	for i, title := range inv.ItemTitles {
		_, err := td.DB.Pool.Exec(ctx,
			`INSERT INTO invoice_items (invoice_id, title, position) VALUES ($1, $2, $3)`, inv.ID, title, i)
		require.NoError(t, err)
	}
}

func (td *TestDatabase) ClientBalance(t *testing.T, clientID int64) decimal.Decimal {
	var balance string
	err := td.DB.Pool.QueryRow(context.Background(),
		`SELECT balance::text FROM clients WHERE id = $1`, clientID).Scan(&balance)
	require.NoError(t, err)
	return decimal.RequireFromString(balance)
}

func (td *TestDatabase) CountFunds(t *testing.T, relType string, relID int64) int {
	var n int
	err := td.DB.Pool.QueryRow(context.Background(),
		`SELECT count(*) FROM client_funds WHERE rel_type = $1 AND rel_id = $2`, relType, relID).Scan(&n)
	require.NoError(t, err)
	return n
}

// UniqueHash returns an invoice hash unique within a test run.
func UniqueHash(prefix string) string {
	return prefix + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
}
