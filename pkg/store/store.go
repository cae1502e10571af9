// Package store defines the persistence gateway for custody data.
//
// The [Store] interface abstracts create/read/update/delete/list operations
// per entity collection so the service layer never talks to a database driver
// directly. Get methods return (nil, nil) when the record does not exist; it
// is the service layer's job to turn that into a domain not-found error.
//
// No multi-collection transaction is assumed from any backend. The layers
// above must not depend on atomic cross-collection writes; within a single
// collection read-after-write consistency is expected.
package store

import (
	"context"
	"time"

	"github.com/openwealth/custody/pkg/models"
)

// Pagination bounds a list. A zero Limit means no explicit bound.
type Pagination struct {
	Offset int
	Limit  int
}

// PortfolioFilter narrows a portfolio listing. A zero CustodianID matches
// every portfolio; the consistency scan relies on that.
type PortfolioFilter struct {
	CustodianID models.CustodianID
}

// AccountFilter narrows an account listing.
type AccountFilter struct {
	PortfolioID models.PortfolioID
}

// PositionFilter narrows a position listing by owning account and optional
// as-of date range.
type PositionFilter struct {
	AccountID models.AccountID
	From      time.Time
	To        time.Time
}

// TransactionFilter narrows a transaction listing by owning account and
// optional trade-date range.
type TransactionFilter struct {
	AccountID models.AccountID
	From      time.Time
	To        time.Time
}

// Store is the uniform persistence contract over the five custody
// collections. List results are ordered by creation time so pagination is
// stable across calls.
type Store interface {
	CreateCustodian(ctx context.Context, c *models.Custodian) error
	GetCustodian(ctx context.Context, id models.CustodianID) (*models.Custodian, error)
	UpdateCustodian(ctx context.Context, c *models.Custodian) error
	DeleteCustodian(ctx context.Context, id models.CustodianID) error
	ListCustodians(ctx context.Context, page Pagination) ([]*models.Custodian, error)

	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, id models.PortfolioID) (*models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, p *models.Portfolio) error
	DeletePortfolio(ctx context.Context, id models.PortfolioID) error
	ListPortfolios(ctx context.Context, f PortfolioFilter, page Pagination) ([]*models.Portfolio, error)

	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id models.AccountID) (*models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) error
	DeleteAccount(ctx context.Context, id models.AccountID) error
	ListAccounts(ctx context.Context, f AccountFilter, page Pagination) ([]*models.Account, error)

	CreatePosition(ctx context.Context, p *models.Position) error
	GetPosition(ctx context.Context, id models.PositionID) (*models.Position, error)
	UpdatePosition(ctx context.Context, p *models.Position) error
	DeletePosition(ctx context.Context, id models.PositionID) error
	ListPositions(ctx context.Context, f PositionFilter, page Pagination) ([]*models.Position, error)

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id models.TransactionID) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
	DeleteTransaction(ctx context.Context, id models.TransactionID) error
	ListTransactions(ctx context.Context, f TransactionFilter, page Pagination) ([]*models.Transaction, error)

	// Reset clears every collection. The bulk loader calls it before a run so
	// re-running from a clean slate is always the recovery path.
	Reset(ctx context.Context) error

	// Migrate prepares the backend: for a schema-less store this is index
	// definitions only.
	Migrate(ctx context.Context) error

	Close() error
}
