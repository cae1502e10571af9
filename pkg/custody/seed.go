package custody

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/openwealth/custody/pkg/models"
)

// Seed input files. Each level is one JSON array; entities reference their
// parent by the symbolic ref declared on the parent record, so fixture
// files never contain database identifiers.
const (
	custodiansFile   = "custodians.json"
	portfoliosFile   = "portfolios.json"
	accountsFile     = "accounts.json"
	positionsFile    = "positions.json"
	transactionsFile = "transactions.json"
)

// LoadError pinpoints the record that stopped a seed run.
type LoadError struct {
	Level string
	Index int
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("seed %s[%d]: %v", e.Level, e.Index, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SeedStats counts what a seed run wrote.
type SeedStats struct {
	Custodians   int `json:"custodians"`
	Portfolios   int `json:"portfolios"`
	Accounts     int `json:"accounts"`
	Positions    int `json:"positions"`
	Transactions int `json:"transactions"`
}

type seedCustodian struct {
	Ref            string            `json:"ref"`
	Name           string            `json:"name"`
	Code           string            `json:"code"`
	Description    string            `json:"description"`
	ContactInfo    map[string]string `json:"contact_info"`
	APICredentials map[string]string `json:"api_credentials"`
}

type seedPortfolio struct {
	Ref          string `json:"ref"`
	CustodianRef string `json:"custodian_ref"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Currency     string `json:"currency"`
}

type seedAccount struct {
	Ref          string         `json:"ref"`
	PortfolioRef string         `json:"portfolio_ref"`
	Name         string         `json:"name"`
	AccountType  string         `json:"account_type"`
	Currency     string         `json:"currency"`
	Balance      models.Decimal `json:"balance"`
}

type seedPosition struct {
	AccountRef   string          `json:"account_ref"`
	SecurityID   string          `json:"security_id"`
	SecurityType string          `json:"security_type"`
	Quantity     models.Decimal  `json:"quantity"`
	MarketValue  models.Decimal  `json:"market_value"`
	Currency     string          `json:"currency"`
	CostBasis    *models.Decimal `json:"cost_basis"`
	UnrealizedPL *models.Decimal `json:"unrealized_pl"`
	AsOfDate     string          `json:"as_of_date"`
}

type seedTransaction struct {
	AccountRef      string          `json:"account_ref"`
	TransactionType string          `json:"transaction_type"`
	SecurityID      string          `json:"security_id"`
	SecurityType    string          `json:"security_type"`
	Quantity        *models.Decimal `json:"quantity"`
	Price           *models.Decimal `json:"price"`
	Amount          models.Decimal  `json:"amount"`
	Currency        string          `json:"currency"`
	TradeDate       string          `json:"trade_date"`
	SettlementDate  string          `json:"settlement_date"`
	Description     string          `json:"description"`
}

// Seed wipes the collections and reloads them from fixture files in
// hierarchy order, replaying every record through the service create path
// so seeded data passes the same validation and integrity checks as live
// writes. Any failure is fatal to the run; there is no partial rollback,
// re-running from the Reset is the recovery path.
func (s *Service) Seed(ctx context.Context, fsys fs.FS) (*SeedStats, error) {
	if err := s.store.Reset(ctx); err != nil {
		return nil, storeError("reset", err)
	}

	stats := &SeedStats{}

	var scs []seedCustodian
	if err := readSeedFile(fsys, custodiansFile, &scs); err != nil {
		return nil, err
	}
	custodianRefs := map[string]models.CustodianID{}
	for i, sc := range scs {
		if sc.Ref == "" {
			return stats, &LoadError{Level: "custodians", Index: i, Err: fmt.Errorf("missing ref")}
		}
		if _, dup := custodianRefs[sc.Ref]; dup {
			return stats, &LoadError{Level: "custodians", Index: i, Err: fmt.Errorf("duplicate ref %q", sc.Ref)}
		}
		c, err := s.CreateCustodian(ctx, &models.Custodian{
			Name:           sc.Name,
			Code:           sc.Code,
			Description:    sc.Description,
			ContactInfo:    sc.ContactInfo,
			APICredentials: sc.APICredentials,
		})
		if err != nil {
			return stats, &LoadError{Level: "custodians", Index: i, Err: err}
		}
		custodianRefs[sc.Ref] = c.ID
		stats.Custodians++
	}

	var sps []seedPortfolio
	if err := readSeedFile(fsys, portfoliosFile, &sps); err != nil {
		return stats, err
	}
	portfolioRefs := map[string]models.PortfolioID{}
	for i, sp := range sps {
		parent, ok := custodianRefs[sp.CustodianRef]
		if !ok {
			return stats, &LoadError{Level: "portfolios", Index: i, Err: fmt.Errorf("unknown custodian_ref %q", sp.CustodianRef)}
		}
		if sp.Ref == "" {
			return stats, &LoadError{Level: "portfolios", Index: i, Err: fmt.Errorf("missing ref")}
		}
		if _, dup := portfolioRefs[sp.Ref]; dup {
			return stats, &LoadError{Level: "portfolios", Index: i, Err: fmt.Errorf("duplicate ref %q", sp.Ref)}
		}
		p, err := s.CreatePortfolio(ctx, &models.Portfolio{
			CustodianID: parent,
			Name:        sp.Name,
			Description: sp.Description,
			Currency:    sp.Currency,
		})
		if err != nil {
			return stats, &LoadError{Level: "portfolios", Index: i, Err: err}
		}
		portfolioRefs[sp.Ref] = p.ID
		stats.Portfolios++
	}

	var sas []seedAccount
	if err := readSeedFile(fsys, accountsFile, &sas); err != nil {
		return stats, err
	}
	accountRefs := map[string]models.AccountID{}
	for i, sa := range sas {
		parent, ok := portfolioRefs[sa.PortfolioRef]
		if !ok {
			return stats, &LoadError{Level: "accounts", Index: i, Err: fmt.Errorf("unknown portfolio_ref %q", sa.PortfolioRef)}
		}
		if sa.Ref == "" {
			return stats, &LoadError{Level: "accounts", Index: i, Err: fmt.Errorf("missing ref")}
		}
		if _, dup := accountRefs[sa.Ref]; dup {
			return stats, &LoadError{Level: "accounts", Index: i, Err: fmt.Errorf("duplicate ref %q", sa.Ref)}
		}
		a, err := s.CreateAccount(ctx, &models.Account{
			PortfolioID: parent,
			Name:        sa.Name,
			AccountType: sa.AccountType,
			Currency:    sa.Currency,
			Balance:     sa.Balance,
		})
		if err != nil {
			return stats, &LoadError{Level: "accounts", Index: i, Err: err}
		}
		accountRefs[sa.Ref] = a.ID
		stats.Accounts++
	}

	var spos []seedPosition
	if err := readSeedFile(fsys, positionsFile, &spos); err != nil {
		return stats, err
	}
	for i, sp := range spos {
		parent, ok := accountRefs[sp.AccountRef]
		if !ok {
			return stats, &LoadError{Level: "positions", Index: i, Err: fmt.Errorf("unknown account_ref %q", sp.AccountRef)}
		}
		asOf, err := parseSeedDate(sp.AsOfDate)
		if err != nil {
			return stats, &LoadError{Level: "positions", Index: i, Err: fmt.Errorf("as_of_date: %w", err)}
		}
		if _, err := s.CreatePosition(ctx, &models.Position{
			AccountID:    parent,
			SecurityID:   sp.SecurityID,
			SecurityType: sp.SecurityType,
			Quantity:     sp.Quantity,
			MarketValue:  sp.MarketValue,
			Currency:     sp.Currency,
			CostBasis:    sp.CostBasis,
			UnrealizedPL: sp.UnrealizedPL,
			AsOfDate:     asOf,
		}); err != nil {
			return stats, &LoadError{Level: "positions", Index: i, Err: err}
		}
		stats.Positions++
	}

	var stxs []seedTransaction
	if err := readSeedFile(fsys, transactionsFile, &stxs); err != nil {
		return stats, err
	}
	for i, st := range stxs {
		parent, ok := accountRefs[st.AccountRef]
		if !ok {
			return stats, &LoadError{Level: "transactions", Index: i, Err: fmt.Errorf("unknown account_ref %q", st.AccountRef)}
		}
		tradeDate, err := parseSeedDate(st.TradeDate)
		if err != nil {
			return stats, &LoadError{Level: "transactions", Index: i, Err: fmt.Errorf("trade_date: %w", err)}
		}
		var settlement *time.Time
		if st.SettlementDate != "" {
			sd, err := parseSeedDate(st.SettlementDate)
			if err != nil {
				return stats, &LoadError{Level: "transactions", Index: i, Err: fmt.Errorf("settlement_date: %w", err)}
			}
			settlement = &sd
		}
		if _, err := s.CreateTransaction(ctx, &models.Transaction{
			AccountID:       parent,
			TransactionType: st.TransactionType,
			SecurityID:      st.SecurityID,
			SecurityType:    st.SecurityType,
			Quantity:        st.Quantity,
			Price:           st.Price,
			Amount:          st.Amount,
			Currency:        st.Currency,
			TradeDate:       tradeDate,
			SettlementDate:  settlement,
			Description:     st.Description,
		}); err != nil {
			return stats, &LoadError{Level: "transactions", Index: i, Err: err}
		}
		stats.Transactions++
	}

	return stats, nil
}

// readSeedFile loads one fixture level. A missing file is an empty level,
// so partial fixture sets load cleanly.
func readSeedFile(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// parseSeedDate accepts either a full RFC 3339 timestamp or a bare date.
func parseSeedDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
