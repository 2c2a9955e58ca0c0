package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/mikeydub/erc20-holders-indexer/db/gen/indexerdb"
	"github.com/mikeydub/erc20-holders-indexer/env"
	"github.com/mikeydub/erc20-holders-indexer/service/logger"
	"github.com/mikeydub/erc20-holders-indexer/service/tracing"
	"github.com/mikeydub/erc20-holders-indexer/util/retry"

	// register postgres driver
	_ "github.com/jackc/pgx/v4/stdlib"
)

// DefaultConnectRetry governs connection attempts made by NewClient/NewPgxClient.
var DefaultConnectRetry = retry.Retry{MinWait: time.Second * 2, MaxWait: time.Second * 4, Tries: 3}

type ErrRoleDoesNotExist struct {
	role string
}

func (e ErrRoleDoesNotExist) Error() string {
	return fmt.Sprintf("role '%s' does not exist", e.role)
}

type connectionParams struct {
	user     string
	password string
	dbname   string
	host     string
	port     int
	appname  string
	retry    *retry.Retry
}

func (c *connectionParams) toConnectionString() string {
	port := c.port
	if port == 0 {
		port = 5432
	}

	connStr := fmt.Sprintf("user=%s dbname=%s host=%s port=%d", c.user, c.dbname, c.host, port)

	if c.password != "" {
		connStr += fmt.Sprintf(" password=%s", c.password)
	}

	return connStr
}

func newConnectionParamsFromEnv() connectionParams {
	return connectionParams{
		user:     env.GetString("POSTGRES_USER"),
		password: env.GetString("POSTGRES_PASSWORD"),
		dbname:   env.GetString("POSTGRES_DB"),
		host:     env.GetString("POSTGRES_HOST"),
		port:     env.GetInt("POSTGRES_PORT"),

		retry: &DefaultConnectRetry,
	}
}

type ConnectionOption func(params *connectionParams)

func WithUser(user string) ConnectionOption {
	return func(params *connectionParams) { params.user = user }
}

func WithPassword(password string) ConnectionOption {
	return func(params *connectionParams) { params.password = password }
}

func WithDBName(dbname string) ConnectionOption {
	return func(params *connectionParams) { params.dbname = dbname }
}

func WithHost(host string) ConnectionOption {
	return func(params *connectionParams) { params.host = host }
}

func WithPort(port int) ConnectionOption {
	return func(params *connectionParams) { params.port = port }
}

func WithAppName(appName string) ConnectionOption {
	return func(params *connectionParams) { params.appname = appName }
}

func WithRetries(r retry.Retry) ConnectionOption {
	return func(params *connectionParams) { params.retry = &r }
}

func WithNoRetries() ConnectionOption {
	return func(params *connectionParams) { params.retry = nil }
}

// MustCreateClient panics when it fails to create a new database connection.
func MustCreateClient(opts ...ConnectionOption) *sql.DB {
	db, err := NewClient(opts...)
	if err != nil {
		panic(err)
	}
	return db
}

// NewClient creates a new Postgres client over database/sql, used by the migration runner.
func NewClient(opts ...ConnectionOption) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()

	params := newConnectionParamsFromEnv()
	for _, opt := range opts {
		opt(&params)
	}

	var db *sql.DB

	connectF := func(ctx context.Context) error {
		var err error
		db, err = sql.Open("pgx", params.toConnectionString())
		return err
	}

	if params.retry != nil {
		if err := retry.RetryFunc(ctx, connectF, func(err error) bool { return true }, *params.retry); err != nil {
			return nil, err
		}
	} else if err := connectF(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(50)

	err := db.PingContext(ctx)
	if err != nil && strings.Contains(err.Error(), fmt.Sprintf("role \"%s\" does not exist", params.user)) {
		return nil, ErrRoleDoesNotExist{params.user}
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewPgxClient creates the pgxpool.Pool that backs the generated Queries type.
func NewPgxClient(opts ...ConnectionOption) *pgxpool.Pool {
	ctx := context.Background()

	params := newConnectionParamsFromEnv()
	for _, opt := range opts {
		opt(&params)
	}

	config, err := pgxpool.ParseConfig(params.toConnectionString())
	if err != nil {
		logger.For(nil).WithError(err).Fatal("could not parse pgx connection string")
		panic(err)
	}

	if params.appname != "" {
		config.ConnConfig.RuntimeParams["application_name"] = params.appname
	}

	var db *pgxpool.Pool

	connectF := func(ctx context.Context) error {
		var err error
		db, err = pgxpool.ConnectConfig(ctx, config)
		return err
	}

	if params.retry != nil {
		err = retry.RetryFunc(ctx, connectF, func(err error) bool { return true }, *params.retry)
	} else {
		err = connectF(ctx)
	}

	if err != nil {
		logger.For(nil).WithError(err).Fatal("could not open database connection")
		panic(err)
	}

	db.Config().MaxConns = 50

	if err := db.Ping(ctx); err != nil {
		panic(err)
	}
	return db
}

// Repositories is the set of stores the poller, query engine, and admin handlers share.
type Repositories struct {
	pool         *pgxpool.Pool
	CursorStore  *CursorStore
	HolderStore  *HolderStore
}

func NewRepositories(pgx *pgxpool.Pool) *Repositories {
	queries := indexerdb.New(pgx)

	return &Repositories{
		pool:        pgx,
		CursorStore: NewCursorStore(queries),
		HolderStore: NewHolderStore(queries),
	}
}

func (r *Repositories) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
}

// ApplyBatch commits a batch of holder deltas and the cursor advance that covers them in a
// single serializable transaction, so a crash can never leave the cursor ahead of the balances
// it claims to have folded in, or vice versa.
func (r *Repositories) ApplyBatch(ctx context.Context, chainID int64, tokenAddress string, deltas map[string]*big.Int, fromBlock, toBlock int64) error {
	span, ctx := tracing.StartSpan(ctx, "postgres.applyBatch", tokenAddress)
	tracing.AddEventDataToSpan(span, map[string]interface{}{
		"chain_id":   chainID,
		"token":      tokenAddress,
		"deltas":     len(deltas),
		"from_block": fromBlock,
		"to_block":   toBlock,
	})
	defer tracing.FinishSpan(span)

	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	queries := indexerdb.New(tx)

	if err := r.HolderStore.ApplyDeltas(ctx, queries, chainID, tokenAddress, deltas); err != nil {
		return err
	}

	if err := r.CursorStore.UpsertCursor(ctx, queries, chainID, tokenAddress, fromBlock, toBlock); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
