// Package custodytesting provides in-memory doubles for the store and the
// event broker so service behavior can be tested without SurrealDB or
// RabbitMQ running.
package custodytesting

import (
	"context"
	"sync"
	"time"

	"github.com/openwealth/custody/pkg/models"
	"github.com/openwealth/custody/pkg/store"
)

// MemoryStore is a map-backed [store.Store]. Lists return entities in
// insertion order, which matches the created_at ordering of the real store
// as long as tests insert in time order.
type MemoryStore struct {
	mu sync.RWMutex

	failErr error

	custodians   map[models.CustodianID]*models.Custodian
	portfolios   map[models.PortfolioID]*models.Portfolio
	accounts     map[models.AccountID]*models.Account
	positions    map[models.PositionID]*models.Position
	transactions map[models.TransactionID]*models.Transaction

	custodianOrder   []models.CustodianID
	portfolioOrder   []models.PortfolioID
	accountOrder     []models.AccountID
	positionOrder    []models.PositionID
	transactionOrder []models.TransactionID
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.custodians = map[models.CustodianID]*models.Custodian{}
	s.portfolios = map[models.PortfolioID]*models.Portfolio{}
	s.accounts = map[models.AccountID]*models.Account{}
	s.positions = map[models.PositionID]*models.Position{}
	s.transactions = map[models.TransactionID]*models.Transaction{}
	s.custodianOrder = nil
	s.portfolioOrder = nil
	s.accountOrder = nil
	s.positionOrder = nil
	s.transactionOrder = nil
}

// FailWith makes every subsequent call return err until cleared with nil.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// barrier runs before any map access, under the caller's lock. A canceled or
// expired context fails the call the way a dead connection would on the real
// store, then any injected error applies.
func (s *MemoryStore) barrier(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.failErr
}

func paginate[T any](items []T, page store.Pagination) []T {
	if page.Offset >= len(items) {
		return nil
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

func (s *MemoryStore) CreateCustodian(ctx context.Context, c *models.Custodian) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	cp := *c
	s.custodians[c.ID] = &cp
	s.custodianOrder = append(s.custodianOrder, c.ID)
	return nil
}

func (s *MemoryStore) GetCustodian(ctx context.Context, id models.CustodianID) (*models.Custodian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.barrier(ctx); err != nil {
		return nil, err
	}
	c, ok := s.custodians[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) UpdateCustodian(ctx context.Context, c *models.Custodian) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	cp := *c
	s.custodians[c.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteCustodian(ctx context.Context, id models.CustodianID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	delete(s.custodians, id)
	return nil
}

func (s *MemoryStore) ListCustodians(ctx context.Context, page store.Pagination) ([]*models.Custodian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.barrier(ctx); err != nil {
		return nil, err
	}
	var out []*models.Custodian
	for _, id := range s.custodianOrder {
		if c, ok := s.custodians[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return paginate(out, page), nil
}

func (s *MemoryStore) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	cp := *p
	s.portfolios[p.ID] = &cp
	s.portfolioOrder = append(s.portfolioOrder, p.ID)
	return nil
}

func (s *MemoryStore) GetPortfolio(ctx context.Context, id models.PortfolioID) (*models.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.barrier(ctx); err != nil {
		return nil, err
	}
	p, ok := s.portfolios[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdatePortfolio(ctx context.Context, p *models.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	cp := *p
	s.portfolios[p.ID] = &cp
	return nil
}

func (s *MemoryStore) DeletePortfolio(ctx context.Context, id models.PortfolioID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	delete(s.portfolios, id)
	return nil
}

func (s *MemoryStore) ListPortfolios(ctx context.Context, f store.PortfolioFilter, page store.Pagination) ([]*models.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.barrier(ctx); err != nil {
		return nil, err
	}
	var out []*models.Portfolio
	for _, id := range s.portfolioOrder {
		p, ok := s.portfolios[id]
		if !ok {
			continue
		}
		if !f.CustodianID.IsZero() && p.CustodianID != f.CustodianID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return paginate(out, page), nil
}

func (s *MemoryStore) CreateAccount(ctx context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	cp := *a
	s.accounts[a.ID] = &cp
	s.accountOrder = append(s.accountOrder, a.ID)
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id models.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.barrier(ctx); err != nil {
		return nil, err
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) UpdateAccount(ctx context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteAccount(ctx context.Context, id models.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	delete(s.accounts, id)
	return nil
}

func (s *MemoryStore) ListAccounts(ctx context.Context, f store.AccountFilter, page store.Pagination) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.barrier(ctx); err != nil {
		return nil, err
	}
	var out []*models.Account
	for _, id := range s.accountOrder {
		a, ok := s.accounts[id]
		if !ok {
			continue
		}
		if !f.PortfolioID.IsZero() && a.PortfolioID != f.PortfolioID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return paginate(out, page), nil
}

func (s *MemoryStore) CreatePosition(ctx context.Context, p *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	cp := *p
	s.positions[p.ID] = &cp
	s.positionOrder = append(s.positionOrder, p.ID)
	return nil
}

func (s *MemoryStore) GetPosition(ctx context.Context, id models.PositionID) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.barrier(ctx); err != nil {
		return nil, err
	}
	p, ok := s.positions[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdatePosition(ctx context.Context, p *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *MemoryStore) DeletePosition(ctx context.Context, id models.PositionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	delete(s.positions, id)
	return nil
}

func (s *MemoryStore) ListPositions(ctx context.Context, f store.PositionFilter, page store.Pagination) ([]*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.barrier(ctx); err != nil {
		return nil, err
	}
	var out []*models.Position
	for _, id := range s.positionOrder {
		p, ok := s.positions[id]
		if !ok {
			continue
		}
		if !f.AccountID.IsZero() && p.AccountID != f.AccountID {
			continue
		}
		if !inRange(p.AsOfDate, f.From, f.To) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return paginate(out, page), nil
}

func (s *MemoryStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	cp := *t
	s.transactions[t.ID] = &cp
	s.transactionOrder = append(s.transactionOrder, t.ID)
	return nil
}

func (s *MemoryStore) GetTransaction(ctx context.Context, id models.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.barrier(ctx); err != nil {
		return nil, err
	}
	t, ok := s.transactions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	cp := *t
	s.transactions[t.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteTransaction(ctx context.Context, id models.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	delete(s.transactions, id)
	return nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, f store.TransactionFilter, page store.Pagination) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.barrier(ctx); err != nil {
		return nil, err
	}
	var out []*models.Transaction
	for _, id := range s.transactionOrder {
		t, ok := s.transactions[id]
		if !ok {
			continue
		}
		if !f.AccountID.IsZero() && t.AccountID != f.AccountID {
			continue
		}
		if !inRange(t.TradeDate, f.From, f.To) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return paginate(out, page), nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.barrier(ctx); err != nil {
		return err
	}
	s.reset()
	return nil
}

func (s *MemoryStore) Migrate(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.barrier(ctx)
}

func (s *MemoryStore) Close() error { return nil }

var _ store.Store = (*MemoryStore)(nil)
