package custody

import (
	"time"

	"github.com/openwealth/custody/pkg/models"
)

// Patch types carry partial updates. Nil fields are left untouched; the ID
// of an entity is never patchable. Parent references may be reassigned and
// are re-checked against the store when they change.

type CustodianPatch struct {
	Name           *string            `json:"name,omitempty"`
	Code           *string            `json:"code,omitempty"`
	Description    *string            `json:"description,omitempty"`
	ContactInfo    *map[string]string `json:"contact_info,omitempty"`
	APICredentials *map[string]string `json:"api_credentials,omitempty"`
}

func (p CustodianPatch) apply(c *models.Custodian) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Code != nil {
		c.Code = *p.Code
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.ContactInfo != nil {
		c.ContactInfo = *p.ContactInfo
	}
	if p.APICredentials != nil {
		c.APICredentials = *p.APICredentials
	}
}

type PortfolioPatch struct {
	CustodianID *models.CustodianID `json:"custodian_id,omitempty"`
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	Currency    *string             `json:"currency,omitempty"`
}

func (p PortfolioPatch) apply(pf *models.Portfolio) {
	if p.CustodianID != nil {
		pf.CustodianID = *p.CustodianID
	}
	if p.Name != nil {
		pf.Name = *p.Name
	}
	if p.Description != nil {
		pf.Description = *p.Description
	}
	if p.Currency != nil {
		pf.Currency = *p.Currency
	}
}

type AccountPatch struct {
	PortfolioID *models.PortfolioID `json:"portfolio_id,omitempty"`
	Name        *string             `json:"name,omitempty"`
	AccountType *string             `json:"account_type,omitempty"`
	Currency    *string             `json:"currency,omitempty"`
	Balance     *models.Decimal     `json:"balance,omitempty"`
}

func (p AccountPatch) apply(a *models.Account) {
	if p.PortfolioID != nil {
		a.PortfolioID = *p.PortfolioID
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.AccountType != nil {
		a.AccountType = *p.AccountType
	}
	if p.Currency != nil {
		a.Currency = *p.Currency
	}
	if p.Balance != nil {
		a.Balance = *p.Balance
	}
}

type PositionPatch struct {
	AccountID    *models.AccountID `json:"account_id,omitempty"`
	SecurityID   *string           `json:"security_id,omitempty"`
	SecurityType *string           `json:"security_type,omitempty"`
	Quantity     *models.Decimal   `json:"quantity,omitempty"`
	MarketValue  *models.Decimal   `json:"market_value,omitempty"`
	Currency     *string           `json:"currency,omitempty"`
	CostBasis    *models.Decimal   `json:"cost_basis,omitempty"`
	UnrealizedPL *models.Decimal   `json:"unrealized_pl,omitempty"`
	AsOfDate     *time.Time        `json:"as_of_date,omitempty"`
}

func (p PositionPatch) apply(pos *models.Position) {
	if p.AccountID != nil {
		pos.AccountID = *p.AccountID
	}
	if p.SecurityID != nil {
		pos.SecurityID = *p.SecurityID
	}
	if p.SecurityType != nil {
		pos.SecurityType = *p.SecurityType
	}
	if p.Quantity != nil {
		pos.Quantity = *p.Quantity
	}
	if p.MarketValue != nil {
		pos.MarketValue = *p.MarketValue
	}
	if p.Currency != nil {
		pos.Currency = *p.Currency
	}
	if p.CostBasis != nil {
		pos.CostBasis = p.CostBasis
	}
	if p.UnrealizedPL != nil {
		pos.UnrealizedPL = p.UnrealizedPL
	}
	if p.AsOfDate != nil {
		pos.AsOfDate = *p.AsOfDate
	}
}

type TransactionPatch struct {
	AccountID       *models.AccountID `json:"account_id,omitempty"`
	TransactionType *string           `json:"transaction_type,omitempty"`
	SecurityID      *string           `json:"security_id,omitempty"`
	SecurityType    *string           `json:"security_type,omitempty"`
	Quantity        *models.Decimal   `json:"quantity,omitempty"`
	Price           *models.Decimal   `json:"price,omitempty"`
	Amount          *models.Decimal   `json:"amount,omitempty"`
	Currency        *string           `json:"currency,omitempty"`
	TradeDate       *time.Time        `json:"trade_date,omitempty"`
	SettlementDate  *time.Time        `json:"settlement_date,omitempty"`
	Description     *string           `json:"description,omitempty"`
}

func (p TransactionPatch) apply(t *models.Transaction) {
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.TransactionType != nil {
		t.TransactionType = *p.TransactionType
	}
	if p.SecurityID != nil {
		t.SecurityID = *p.SecurityID
	}
	if p.SecurityType != nil {
		t.SecurityType = *p.SecurityType
	}
	if p.Quantity != nil {
		t.Quantity = p.Quantity
	}
	if p.Price != nil {
		t.Price = p.Price
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Currency != nil {
		t.Currency = *p.Currency
	}
	if p.TradeDate != nil {
		t.TradeDate = *p.TradeDate
	}
	if p.SettlementDate != nil {
		t.SettlementDate = p.SettlementDate
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
}
