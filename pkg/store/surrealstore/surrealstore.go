// Package surrealstore implements the [store.Store] interface on SurrealDB.
//
// SurrealDB is schema-less: tables appear when the first record is written
// and no foreign keys exist between collections, which is exactly why the
// service layer carries its own referential integrity checks. The store uses
// the surrealcbor codec so time.Time and typed record IDs serialize in the
// format SurrealDB expects, and parameterized SurrealQL everywhere a value
// originates outside this package.
package surrealstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/openwealth/custody/pkg/models"
	"github.com/openwealth/custody/pkg/store"
)

// SurrealStore talks to a single namespace/database pair over a websocket
// connection.
type SurrealStore struct {
	db       *surrealdb.DB
	ns       string
	database string
}

// New connects to SurrealDB and selects the given namespace and database.
// The surrealcbor codec is wired into the connection config; without it,
// time.Time values and record IDs do not round-trip correctly.
func New(wsURL, namespace, database, username, password string) (*SurrealStore, error) {
	ctx := context.Background()

	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if username != "" && password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": username,
			"pass": password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &SurrealStore{db: db, ns: namespace, database: database}, nil
}

// Migrate defines the indexes backing parent-ID and date-range lookups.
// Tables themselves appear implicitly on first insert; the indexes keep the
// child enumeration done by the integrity layer from scanning whole tables.
func (s *SurrealStore) Migrate(ctx context.Context) error {
	stmts := `
		DEFINE INDEX IF NOT EXISTS portfolio_custodian ON TABLE portfolios COLUMNS custodian_id;
		DEFINE INDEX IF NOT EXISTS account_portfolio ON TABLE accounts COLUMNS portfolio_id;
		DEFINE INDEX IF NOT EXISTS position_account ON TABLE positions COLUMNS account_id;
		DEFINE INDEX IF NOT EXISTS transaction_account ON TABLE transactions COLUMNS account_id;
		DEFINE INDEX IF NOT EXISTS transaction_trade_date ON TABLE transactions COLUMNS trade_date;
	`
	if _, err := surrealdb.Query[any](ctx, s.db, stmts, nil); err != nil {
		return fmt.Errorf("failed to define indexes: %w", err)
	}
	return nil
}

// Reset removes every record from all five collections.
func (s *SurrealStore) Reset(ctx context.Context) error {
	stmts := `
		DELETE custodians;
		DELETE portfolios;
		DELETE accounts;
		DELETE positions;
		DELETE transactions;
	`
	if _, err := surrealdb.Query[any](ctx, s.db, stmts, nil); err != nil {
		return fmt.Errorf("failed to reset collections: %w", err)
	}
	return nil
}

func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

// handleNotFound normalizes the driver's "no result" failure modes so Get
// methods can report absence as (nil, nil).
func handleNotFound(err error) error {
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "Expected a single or multiple results but got 0") ||
			strings.Contains(errStr, "cannot unmarshal array into Go value") {
			return nil
		}
	}
	return err
}

// listQuery assembles a SELECT with optional WHERE conditions, a stable
// creation-time ordering, and LIMIT/START pagination.
func listQuery(table string, conds []string, params map[string]any, page store.Pagination) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(table)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at ASC")
	limit := page.Limit
	if limit <= 0 && page.Offset > 0 {
		// START requires a LIMIT clause; fall back to an effectively
		// unbounded one.
		limit = 1_000_000
	}
	if limit > 0 {
		b.WriteString(" LIMIT $_limit")
		params["_limit"] = limit
	}
	if page.Offset > 0 {
		b.WriteString(" START $_start")
		params["_start"] = page.Offset
	}
	return b.String()
}

func queryList[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]*T, error) {
	result, err := surrealdb.Query[[]T](ctx, db, query, params)
	if err != nil {
		return nil, err
	}
	var out []*T
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			out = append(out, &(*result)[0].Result[i])
		}
	}
	return out, nil
}

// Custodian operations

func (s *SurrealStore) CreateCustodian(ctx context.Context, c *models.Custodian) error {
	if _, err := surrealdb.Create[models.Custodian](ctx, s.db, c.ID.RecordID(), c); err != nil {
		return fmt.Errorf("failed to create custodian: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetCustodian(ctx context.Context, id models.CustodianID) (*models.Custodian, error) {
	c, err := surrealdb.Select[models.Custodian](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get custodian: %w", err)
	}
	return c, nil
}

func (s *SurrealStore) UpdateCustodian(ctx context.Context, c *models.Custodian) error {
	if _, err := surrealdb.Update[models.Custodian](ctx, s.db, c.ID.RecordID(), c); err != nil {
		return fmt.Errorf("failed to update custodian: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteCustodian(ctx context.Context, id models.CustodianID) error {
	_, err := surrealdb.Delete[models.Custodian](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) ListCustodians(ctx context.Context, page store.Pagination) ([]*models.Custodian, error) {
	params := map[string]any{}
	query := listQuery(models.CustodianTable, nil, params, page)
	out, err := queryList[models.Custodian](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list custodians: %w", err)
	}
	return out, nil
}

// Portfolio operations

func (s *SurrealStore) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	if _, err := surrealdb.Create[models.Portfolio](ctx, s.db, p.ID.RecordID(), p); err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetPortfolio(ctx context.Context, id models.PortfolioID) (*models.Portfolio, error) {
	p, err := surrealdb.Select[models.Portfolio](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return p, nil
}

func (s *SurrealStore) UpdatePortfolio(ctx context.Context, p *models.Portfolio) error {
	if _, err := surrealdb.Update[models.Portfolio](ctx, s.db, p.ID.RecordID(), p); err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeletePortfolio(ctx context.Context, id models.PortfolioID) error {
	_, err := surrealdb.Delete[models.Portfolio](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) ListPortfolios(ctx context.Context, f store.PortfolioFilter, page store.Pagination) ([]*models.Portfolio, error) {
	var conds []string
	params := map[string]any{}
	if !f.CustodianID.IsZero() {
		conds = append(conds, "custodian_id = $custodian")
		params["custodian"] = f.CustodianID.RecordID()
	}
	query := listQuery(models.PortfolioTable, conds, params, page)
	out, err := queryList[models.Portfolio](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return out, nil
}

// Account operations

func (s *SurrealStore) CreateAccount(ctx context.Context, a *models.Account) error {
	if _, err := surrealdb.Create[models.Account](ctx, s.db, a.ID.RecordID(), a); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetAccount(ctx context.Context, id models.AccountID) (*models.Account, error) {
	a, err := surrealdb.Select[models.Account](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (s *SurrealStore) UpdateAccount(ctx context.Context, a *models.Account) error {
	if _, err := surrealdb.Update[models.Account](ctx, s.db, a.ID.RecordID(), a); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteAccount(ctx context.Context, id models.AccountID) error {
	_, err := surrealdb.Delete[models.Account](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) ListAccounts(ctx context.Context, f store.AccountFilter, page store.Pagination) ([]*models.Account, error) {
	var conds []string
	params := map[string]any{}
	if !f.PortfolioID.IsZero() {
		conds = append(conds, "portfolio_id = $portfolio")
		params["portfolio"] = f.PortfolioID.RecordID()
	}
	query := listQuery(models.AccountTable, conds, params, page)
	out, err := queryList[models.Account](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return out, nil
}

// Position operations

func (s *SurrealStore) CreatePosition(ctx context.Context, p *models.Position) error {
	if _, err := surrealdb.Create[models.Position](ctx, s.db, p.ID.RecordID(), p); err != nil {
		return fmt.Errorf("failed to create position: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetPosition(ctx context.Context, id models.PositionID) (*models.Position, error) {
	p, err := surrealdb.Select[models.Position](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return p, nil
}

func (s *SurrealStore) UpdatePosition(ctx context.Context, p *models.Position) error {
	if _, err := surrealdb.Update[models.Position](ctx, s.db, p.ID.RecordID(), p); err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeletePosition(ctx context.Context, id models.PositionID) error {
	_, err := surrealdb.Delete[models.Position](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) ListPositions(ctx context.Context, f store.PositionFilter, page store.Pagination) ([]*models.Position, error) {
	var conds []string
	params := map[string]any{}
	if !f.AccountID.IsZero() {
		conds = append(conds, "account_id = $account")
		params["account"] = f.AccountID.RecordID()
	}
	conds, params = dateRange(conds, params, "as_of_date", f.From, f.To)
	query := listQuery(models.PositionTable, conds, params, page)
	out, err := queryList[models.Position](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return out, nil
}

// Transaction operations

func (s *SurrealStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if _, err := surrealdb.Create[models.Transaction](ctx, s.db, t.ID.RecordID(), t); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetTransaction(ctx context.Context, id models.TransactionID) (*models.Transaction, error) {
	t, err := surrealdb.Select[models.Transaction](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (s *SurrealStore) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	if _, err := surrealdb.Update[models.Transaction](ctx, s.db, t.ID.RecordID(), t); err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteTransaction(ctx context.Context, id models.TransactionID) error {
	_, err := surrealdb.Delete[models.Transaction](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) ListTransactions(ctx context.Context, f store.TransactionFilter, page store.Pagination) ([]*models.Transaction, error) {
	var conds []string
	params := map[string]any{}
	if !f.AccountID.IsZero() {
		conds = append(conds, "account_id = $account")
		params["account"] = f.AccountID.RecordID()
	}
	conds, params = dateRange(conds, params, "trade_date", f.From, f.To)
	query := listQuery(models.TransactionTable, conds, params, page)
	out, err := queryList[models.Transaction](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return out, nil
}

func dateRange(conds []string, params map[string]any, field string, from, to time.Time) ([]string, map[string]any) {
	if !from.IsZero() {
		conds = append(conds, field+" >= $_from")
		params["_from"] = from
	}
	if !to.IsZero() {
		conds = append(conds, field+" <= $_to")
		params["_to"] = to
	}
	return conds, params
}

var _ store.Store = (*SurrealStore)(nil)
