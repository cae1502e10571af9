package models

import (
	"time"
)

// Custodian is the root of the hierarchy: a financial institution holding
// assets on behalf of clients. It has no parent.
type Custodian struct {
	ID             CustodianID       `json:"id"`
	Name           string            `json:"name"`
	Code           string            `json:"code"`
	Description    string            `json:"description,omitempty"`
	ContactInfo    map[string]string `json:"contact_info,omitempty"`
	APICredentials map[string]string `json:"api_credentials,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Portfolio is a named grouping of accounts belonging to one custodian.
type Portfolio struct {
	ID          PortfolioID `json:"id"`
	CustodianID CustodianID `json:"custodian_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Currency    string      `json:"currency"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Account is a holding account within a portfolio.
type Account struct {
	ID          AccountID   `json:"id"`
	PortfolioID PortfolioID `json:"portfolio_id"`
	Name        string      `json:"name"`
	AccountType string      `json:"account_type"`
	Currency    string      `json:"currency"`
	Balance     Decimal     `json:"balance"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Position is a point-in-time holding of an instrument within an account.
type Position struct {
	ID           PositionID `json:"id"`
	AccountID    AccountID  `json:"account_id"`
	SecurityID   string     `json:"security_id"`
	SecurityType string     `json:"security_type"`
	Quantity     Decimal    `json:"quantity"`
	MarketValue  Decimal    `json:"market_value"`
	Currency     string     `json:"currency"`
	CostBasis    *Decimal   `json:"cost_basis,omitempty"`
	UnrealizedPL *Decimal   `json:"unrealized_pl,omitempty"`
	AsOfDate     time.Time  `json:"as_of_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Transaction is a recorded movement against an account: a trade, transfer,
// dividend, fee and so on. Security fields are optional because cash
// movements carry no instrument.
type Transaction struct {
	ID              TransactionID `json:"id"`
	AccountID       AccountID     `json:"account_id"`
	TransactionType string        `json:"transaction_type"`
	SecurityID      string        `json:"security_id,omitempty"`
	SecurityType    string        `json:"security_type,omitempty"`
	Quantity        *Decimal      `json:"quantity,omitempty"`
	Price           *Decimal      `json:"price,omitempty"`
	Amount          Decimal       `json:"amount"`
	Currency        string        `json:"currency"`
	TradeDate       time.Time     `json:"trade_date"`
	SettlementDate  *time.Time    `json:"settlement_date,omitempty"`
	Description     string        `json:"description,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
