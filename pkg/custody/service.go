package custody

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/openwealth/custody/pkg/events"
	"github.com/openwealth/custody/pkg/models"
	"github.com/openwealth/custody/pkg/store"
)

// Service is the only write path into the custody collections. Every
// mutation follows the same shape: validate the input, enforce referential
// integrity against the store, persist, publish a domain event, return the
// resulting entity. Reads delegate to the store and normalize absence into
// [NotFoundError].
type Service struct {
	store store.Store
	pub   events.Publisher
	cfg   *Config
	log   zerolog.Logger
}

func NewService(st store.Store, pub events.Publisher, cfg *Config, log zerolog.Logger) *Service {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &Service{store: st, pub: pub, cfg: cfg, log: log}
}

// opCtx bounds a store call so no request blocks indefinitely on the
// backend.
func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.StoreTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) publish(ctx context.Context, entityType string, op events.Operation, id string, payload any) {
	s.pub.Publish(ctx, events.Envelope{
		EntityType: entityType,
		Operation:  op,
		EntityID:   id,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	})
}

func (s *Service) page(p store.Pagination) store.Pagination {
	if p.Limit <= 0 {
		p.Limit = s.cfg.DefaultLimit
	}
	return p
}

func (s *Service) policy(p DeletePolicy) DeletePolicy {
	if p == "" {
		return s.cfg.DeletePolicy
	}
	return p
}

// Custodian operations

func (s *Service) CreateCustodian(ctx context.Context, c *models.Custodian) (*models.Custodian, error) {
	if c.ID.IsZero() {
		c.ID = models.NewCustodianID()
	}
	if vs := c.Validate(); len(vs) > 0 {
		return nil, &ValidationError{Entity: "custodian", Violations: vs}
	}

	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.CreateCustodian(octx, c); err != nil {
		return nil, storeError("create custodian", err)
	}

	s.publish(ctx, "custodian", events.OpCreated, c.ID.String(), c)
	return c, nil
}

func (s *Service) GetCustodian(ctx context.Context, id models.CustodianID) (*models.Custodian, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	c, err := s.store.GetCustodian(octx, id)
	if err != nil {
		return nil, storeError("get custodian", err)
	}
	if c == nil {
		return nil, &NotFoundError{Entity: "custodian", ID: id.String()}
	}
	return c, nil
}

func (s *Service) ListCustodians(ctx context.Context, page store.Pagination) ([]*models.Custodian, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	out, err := s.store.ListCustodians(octx, s.page(page))
	if err != nil {
		return nil, storeError("list custodians", err)
	}
	return out, nil
}

func (s *Service) UpdateCustodian(ctx context.Context, id models.CustodianID, patch CustodianPatch) (*models.Custodian, error) {
	existing, err := s.GetCustodian(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.apply(existing)
	if vs := existing.Validate(); len(vs) > 0 {
		return nil, &ValidationError{Entity: "custodian", Violations: vs}
	}
	existing.UpdatedAt = time.Now().UTC()

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.UpdateCustodian(octx, existing); err != nil {
		return nil, storeError("update custodian", err)
	}

	s.publish(ctx, "custodian", events.OpUpdated, existing.ID.String(), existing)
	return existing, nil
}

func (s *Service) DeleteCustodian(ctx context.Context, id models.CustodianID, policy DeletePolicy) error {
	existing, err := s.GetCustodian(ctx, id)
	if err != nil {
		return err
	}

	children, err := s.custodianChildren(ctx, id)
	if err != nil {
		return err
	}

	switch s.policy(policy) {
	case PolicyCascade:
		for _, p := range children {
			if err := s.deletePortfolioTree(ctx, p); err != nil {
				return err
			}
		}
	default:
		if len(children) > 0 {
			return &IntegrityError{Entity: "custodian", ID: id.String(), Children: "portfolios", Count: len(children)}
		}
	}

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.DeleteCustodian(octx, id); err != nil {
		return storeError("delete custodian", err)
	}

	s.publish(ctx, "custodian", events.OpDeleted, existing.ID.String(), nil)
	return nil
}

// Portfolio operations

func (s *Service) CreatePortfolio(ctx context.Context, p *models.Portfolio) (*models.Portfolio, error) {
	if p.ID.IsZero() {
		p.ID = models.NewPortfolioID()
	}
	if vs := p.Validate(); len(vs) > 0 {
		return nil, &ValidationError{Entity: "portfolio", Violations: vs}
	}
	if err := s.requireCustodian(ctx, p.CustodianID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.CreatePortfolio(octx, p); err != nil {
		return nil, storeError("create portfolio", err)
	}

	s.publish(ctx, "portfolio", events.OpCreated, p.ID.String(), p)
	return p, nil
}

func (s *Service) GetPortfolio(ctx context.Context, id models.PortfolioID) (*models.Portfolio, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	p, err := s.store.GetPortfolio(octx, id)
	if err != nil {
		return nil, storeError("get portfolio", err)
	}
	if p == nil {
		return nil, &NotFoundError{Entity: "portfolio", ID: id.String()}
	}
	return p, nil
}

func (s *Service) ListPortfolios(ctx context.Context, f store.PortfolioFilter, page store.Pagination) ([]*models.Portfolio, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	out, err := s.store.ListPortfolios(octx, f, s.page(page))
	if err != nil {
		return nil, storeError("list portfolios", err)
	}
	return out, nil
}

func (s *Service) UpdatePortfolio(ctx context.Context, id models.PortfolioID, patch PortfolioPatch) (*models.Portfolio, error) {
	existing, err := s.GetPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}

	parentChanged := patch.CustodianID != nil && *patch.CustodianID != existing.CustodianID
	patch.apply(existing)
	if vs := existing.Validate(); len(vs) > 0 {
		return nil, &ValidationError{Entity: "portfolio", Violations: vs}
	}
	if parentChanged {
		if err := s.requireCustodian(ctx, existing.CustodianID); err != nil {
			return nil, err
		}
	}
	existing.UpdatedAt = time.Now().UTC()

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.UpdatePortfolio(octx, existing); err != nil {
		return nil, storeError("update portfolio", err)
	}

	s.publish(ctx, "portfolio", events.OpUpdated, existing.ID.String(), existing)
	return existing, nil
}

func (s *Service) DeletePortfolio(ctx context.Context, id models.PortfolioID, policy DeletePolicy) error {
	existing, err := s.GetPortfolio(ctx, id)
	if err != nil {
		return err
	}

	children, err := s.portfolioChildren(ctx, id)
	if err != nil {
		return err
	}

	switch s.policy(policy) {
	case PolicyCascade:
		for _, a := range children {
			if err := s.deleteAccountTree(ctx, a); err != nil {
				return err
			}
		}
		if err := s.removePortfolio(ctx, existing); err != nil {
			return err
		}
		return nil
	default:
		if len(children) > 0 {
			return &IntegrityError{Entity: "portfolio", ID: id.String(), Children: "accounts", Count: len(children)}
		}
		return s.removePortfolio(ctx, existing)
	}
}

// Account operations

func (s *Service) CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	if a.ID.IsZero() {
		a.ID = models.NewAccountID()
	}
	if vs := a.Validate(); len(vs) > 0 {
		return nil, &ValidationError{Entity: "account", Violations: vs}
	}
	if err := s.requirePortfolio(ctx, a.PortfolioID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.CreateAccount(octx, a); err != nil {
		return nil, storeError("create account", err)
	}

	s.publish(ctx, "account", events.OpCreated, a.ID.String(), a)
	return a, nil
}

func (s *Service) GetAccount(ctx context.Context, id models.AccountID) (*models.Account, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	a, err := s.store.GetAccount(octx, id)
	if err != nil {
		return nil, storeError("get account", err)
	}
	if a == nil {
		return nil, &NotFoundError{Entity: "account", ID: id.String()}
	}
	return a, nil
}

func (s *Service) ListAccounts(ctx context.Context, f store.AccountFilter, page store.Pagination) ([]*models.Account, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	out, err := s.store.ListAccounts(octx, f, s.page(page))
	if err != nil {
		return nil, storeError("list accounts", err)
	}
	return out, nil
}

func (s *Service) UpdateAccount(ctx context.Context, id models.AccountID, patch AccountPatch) (*models.Account, error) {
	existing, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	parentChanged := patch.PortfolioID != nil && *patch.PortfolioID != existing.PortfolioID
	patch.apply(existing)
	if vs := existing.Validate(); len(vs) > 0 {
		return nil, &ValidationError{Entity: "account", Violations: vs}
	}
	if parentChanged {
		if err := s.requirePortfolio(ctx, existing.PortfolioID); err != nil {
			return nil, err
		}
	}
	existing.UpdatedAt = time.Now().UTC()

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.UpdateAccount(octx, existing); err != nil {
		return nil, storeError("update account", err)
	}

	s.publish(ctx, "account", events.OpUpdated, existing.ID.String(), existing)
	return existing, nil
}

func (s *Service) DeleteAccount(ctx context.Context, id models.AccountID, policy DeletePolicy) error {
	existing, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	positions, transactions, err := s.accountChildren(ctx, id)
	if err != nil {
		return err
	}

	switch s.policy(policy) {
	case PolicyCascade:
		for _, p := range positions {
			if err := s.removePosition(ctx, p); err != nil {
				return err
			}
		}
		for _, t := range transactions {
			if err := s.removeTransaction(ctx, t); err != nil {
				return err
			}
		}
		return s.removeAccount(ctx, existing)
	default:
		if n := len(positions) + len(transactions); n > 0 {
			return &IntegrityError{Entity: "account", ID: id.String(), Children: "positions and transactions", Count: n}
		}
		return s.removeAccount(ctx, existing)
	}
}

// Position operations

func (s *Service) CreatePosition(ctx context.Context, p *models.Position) (*models.Position, error) {
	if p.ID.IsZero() {
		p.ID = models.NewPositionID()
	}
	if vs := p.Validate(); len(vs) > 0 {
		return nil, &ValidationError{Entity: "position", Violations: vs}
	}
	if err := s.requireAccount(ctx, p.AccountID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.CreatePosition(octx, p); err != nil {
		return nil, storeError("create position", err)
	}

	s.publish(ctx, "position", events.OpCreated, p.ID.String(), p)
	return p, nil
}

func (s *Service) GetPosition(ctx context.Context, id models.PositionID) (*models.Position, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	p, err := s.store.GetPosition(octx, id)
	if err != nil {
		return nil, storeError("get position", err)
	}
	if p == nil {
		return nil, &NotFoundError{Entity: "position", ID: id.String()}
	}
	return p, nil
}

func (s *Service) ListPositions(ctx context.Context, f store.PositionFilter, page store.Pagination) ([]*models.Position, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	out, err := s.store.ListPositions(octx, f, s.page(page))
	if err != nil {
		return nil, storeError("list positions", err)
	}
	return out, nil
}

func (s *Service) UpdatePosition(ctx context.Context, id models.PositionID, patch PositionPatch) (*models.Position, error) {
	existing, err := s.GetPosition(ctx, id)
	if err != nil {
		return nil, err
	}

	parentChanged := patch.AccountID != nil && *patch.AccountID != existing.AccountID
	patch.apply(existing)
	if vs := existing.Validate(); len(vs) > 0 {
		return nil, &ValidationError{Entity: "position", Violations: vs}
	}
	if parentChanged {
		if err := s.requireAccount(ctx, existing.AccountID); err != nil {
			return nil, err
		}
	}
	existing.UpdatedAt = time.Now().UTC()

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.UpdatePosition(octx, existing); err != nil {
		return nil, storeError("update position", err)
	}

	s.publish(ctx, "position", events.OpUpdated, existing.ID.String(), existing)
	return existing, nil
}

func (s *Service) DeletePosition(ctx context.Context, id models.PositionID) error {
	existing, err := s.GetPosition(ctx, id)
	if err != nil {
		return err
	}
	return s.removePosition(ctx, existing)
}

// Transaction operations

func (s *Service) CreateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	if t.ID.IsZero() {
		t.ID = models.NewTransactionID()
	}
	if vs := t.Validate(); len(vs) > 0 {
		return nil, &ValidationError{Entity: "transaction", Violations: vs}
	}
	if err := s.requireAccount(ctx, t.AccountID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.CreateTransaction(octx, t); err != nil {
		return nil, storeError("create transaction", err)
	}

	s.publish(ctx, "transaction", events.OpCreated, t.ID.String(), t)
	return t, nil
}

func (s *Service) GetTransaction(ctx context.Context, id models.TransactionID) (*models.Transaction, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	t, err := s.store.GetTransaction(octx, id)
	if err != nil {
		return nil, storeError("get transaction", err)
	}
	if t == nil {
		return nil, &NotFoundError{Entity: "transaction", ID: id.String()}
	}
	return t, nil
}

func (s *Service) ListTransactions(ctx context.Context, f store.TransactionFilter, page store.Pagination) ([]*models.Transaction, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	out, err := s.store.ListTransactions(octx, f, s.page(page))
	if err != nil {
		return nil, storeError("list transactions", err)
	}
	return out, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, id models.TransactionID, patch TransactionPatch) (*models.Transaction, error) {
	existing, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	parentChanged := patch.AccountID != nil && *patch.AccountID != existing.AccountID
	patch.apply(existing)
	if vs := existing.Validate(); len(vs) > 0 {
		return nil, &ValidationError{Entity: "transaction", Violations: vs}
	}
	if parentChanged {
		if err := s.requireAccount(ctx, existing.AccountID); err != nil {
			return nil, err
		}
	}
	existing.UpdatedAt = time.Now().UTC()

	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.UpdateTransaction(octx, existing); err != nil {
		return nil, storeError("update transaction", err)
	}

	s.publish(ctx, "transaction", events.OpUpdated, existing.ID.String(), existing)
	return existing, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, id models.TransactionID) error {
	existing, err := s.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	return s.removeTransaction(ctx, existing)
}
