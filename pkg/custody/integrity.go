package custody

import (
	"context"

	"github.com/openwealth/custody/pkg/events"
	"github.com/openwealth/custody/pkg/models"
	"github.com/openwealth/custody/pkg/store"
)

// Parent existence checks. A missing parent surfaces as NotFoundError on
// the parent entity, not on the child being written.

func (s *Service) requireCustodian(ctx context.Context, id models.CustodianID) error {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	c, err := s.store.GetCustodian(octx, id)
	if err != nil {
		return storeError("get custodian", err)
	}
	if c == nil {
		return &NotFoundError{Entity: "custodian", ID: id.String()}
	}
	return nil
}

func (s *Service) requirePortfolio(ctx context.Context, id models.PortfolioID) error {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	p, err := s.store.GetPortfolio(octx, id)
	if err != nil {
		return storeError("get portfolio", err)
	}
	if p == nil {
		return &NotFoundError{Entity: "portfolio", ID: id.String()}
	}
	return nil
}

func (s *Service) requireAccount(ctx context.Context, id models.AccountID) error {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	a, err := s.store.GetAccount(octx, id)
	if err != nil {
		return storeError("get account", err)
	}
	if a == nil {
		return &NotFoundError{Entity: "account", ID: id.String()}
	}
	return nil
}

// Child enumeration for delete checks and cascades. No pagination: a delete
// decision has to see every child.

func (s *Service) custodianChildren(ctx context.Context, id models.CustodianID) ([]*models.Portfolio, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	out, err := s.store.ListPortfolios(octx, store.PortfolioFilter{CustodianID: id}, store.Pagination{})
	if err != nil {
		return nil, storeError("list portfolios", err)
	}
	return out, nil
}

func (s *Service) portfolioChildren(ctx context.Context, id models.PortfolioID) ([]*models.Account, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	out, err := s.store.ListAccounts(octx, store.AccountFilter{PortfolioID: id}, store.Pagination{})
	if err != nil {
		return nil, storeError("list accounts", err)
	}
	return out, nil
}

func (s *Service) accountChildren(ctx context.Context, id models.AccountID) ([]*models.Position, []*models.Transaction, error) {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	positions, err := s.store.ListPositions(octx, store.PositionFilter{AccountID: id}, store.Pagination{})
	if err != nil {
		return nil, nil, storeError("list positions", err)
	}
	transactions, err := s.store.ListTransactions(octx, store.TransactionFilter{AccountID: id}, store.Pagination{})
	if err != nil {
		return nil, nil, storeError("list transactions", err)
	}
	return positions, transactions, nil
}

// Cascade helpers. Deletion runs deepest first so no document ever
// references an already-removed parent, and deletion events are published
// in the same order.

func (s *Service) deletePortfolioTree(ctx context.Context, p *models.Portfolio) error {
	accounts, err := s.portfolioChildren(ctx, p.ID)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if err := s.deleteAccountTree(ctx, a); err != nil {
			return err
		}
	}
	return s.removePortfolio(ctx, p)
}

func (s *Service) deleteAccountTree(ctx context.Context, a *models.Account) error {
	positions, transactions, err := s.accountChildren(ctx, a.ID)
	if err != nil {
		return err
	}
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
	return s.removeAccount(ctx, a)
}

// remove* delete a single document and publish its tombstone. They assume
// child checks already ran.

func (s *Service) removePortfolio(ctx context.Context, p *models.Portfolio) error {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.DeletePortfolio(octx, p.ID); err != nil {
		return storeError("delete portfolio", err)
	}
	s.publish(ctx, "portfolio", events.OpDeleted, p.ID.String(), nil)
	return nil
}

func (s *Service) removeAccount(ctx context.Context, a *models.Account) error {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.DeleteAccount(octx, a.ID); err != nil {
		return storeError("delete account", err)
	}
	s.publish(ctx, "account", events.OpDeleted, a.ID.String(), nil)
	return nil
}

func (s *Service) removePosition(ctx context.Context, p *models.Position) error {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.DeletePosition(octx, p.ID); err != nil {
		return storeError("delete position", err)
	}
	s.publish(ctx, "position", events.OpDeleted, p.ID.String(), nil)
	return nil
}

func (s *Service) removeTransaction(ctx context.Context, t *models.Transaction) error {
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.DeleteTransaction(octx, t.ID); err != nil {
		return storeError("delete transaction", err)
	}
	s.publish(ctx, "transaction", events.OpDeleted, t.ID.String(), nil)
	return nil
}

// Dangling reports a child document whose parent reference resolves to
// nothing.
type Dangling struct {
	Entity   string `json:"entity"`
	ID       string `json:"id"`
	Parent   string `json:"parent"`
	ParentID string `json:"parent_id"`
}

// ConsistencyReport is the result of a full referential scan.
type ConsistencyReport struct {
	Scanned  map[string]int `json:"scanned"`
	Dangling []Dangling     `json:"dangling"`
}

// OK reports whether the scan found no dangling references.
func (r *ConsistencyReport) OK() bool { return len(r.Dangling) == 0 }

// CheckConsistency walks every child collection and verifies each parent
// reference resolves. The store offers no cross-collection transactions, so
// a crash between a parent delete and its cascade can leave orphans; this
// scan finds them. It reads the store directly and unpaginated: the scan is
// only meaningful over complete collections.
func (s *Service) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	report := &ConsistencyReport{Scanned: map[string]int{}}

	custodians := map[models.CustodianID]bool{}
	cs, err := s.store.ListCustodians(ctx, store.Pagination{})
	if err != nil {
		return nil, storeError("list custodians", err)
	}
	for _, c := range cs {
		custodians[c.ID] = true
	}
	report.Scanned["custodians"] = len(cs)

	portfolios := map[models.PortfolioID]bool{}
	ps, err := s.store.ListPortfolios(ctx, store.PortfolioFilter{}, store.Pagination{})
	if err != nil {
		return nil, storeError("list portfolios", err)
	}
	for _, p := range ps {
		portfolios[p.ID] = true
		if !custodians[p.CustodianID] {
			report.Dangling = append(report.Dangling, Dangling{
				Entity: "portfolio", ID: p.ID.String(),
				Parent: "custodian", ParentID: p.CustodianID.String(),
			})
		}
	}
	report.Scanned["portfolios"] = len(ps)

	accounts := map[models.AccountID]bool{}
	as, err := s.store.ListAccounts(ctx, store.AccountFilter{}, store.Pagination{})
	if err != nil {
		return nil, storeError("list accounts", err)
	}
	for _, a := range as {
		accounts[a.ID] = true
		if !portfolios[a.PortfolioID] {
			report.Dangling = append(report.Dangling, Dangling{
				Entity: "account", ID: a.ID.String(),
				Parent: "portfolio", ParentID: a.PortfolioID.String(),
			})
		}
	}
	report.Scanned["accounts"] = len(as)

	pos, err := s.store.ListPositions(ctx, store.PositionFilter{}, store.Pagination{})
	if err != nil {
		return nil, storeError("list positions", err)
	}
	for _, p := range pos {
		if !accounts[p.AccountID] {
			report.Dangling = append(report.Dangling, Dangling{
				Entity: "position", ID: p.ID.String(),
				Parent: "account", ParentID: p.AccountID.String(),
			})
		}
	}
	report.Scanned["positions"] = len(pos)

	txs, err := s.store.ListTransactions(ctx, store.TransactionFilter{}, store.Pagination{})
	if err != nil {
		return nil, storeError("list transactions", err)
	}
	for _, t := range txs {
		if !accounts[t.AccountID] {
			report.Dangling = append(report.Dangling, Dangling{
				Entity: "transaction", ID: t.ID.String(),
				Parent: "account", ParentID: t.AccountID.String(),
			})
		}
	}
	report.Scanned["transactions"] = len(txs)

	return report, nil
}
