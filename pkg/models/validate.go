package models

import (
	"fmt"
	"strings"
)

// Violation is a single field-level validation failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Violations collects every failure found in one pass, so callers see the
// whole picture instead of fixing one field at a time.
type Violations []Violation

func (vs Violations) String() string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

func (vs *Violations) add(field, message string) {
	*vs = append(*vs, Violation{Field: field, Message: message})
}

// knownCurrencies is the set of ISO 4217 codes the service accepts.
var knownCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "CHF": {}, "JPY": {}, "CAD": {},
	"AUD": {}, "NZD": {}, "SEK": {}, "NOK": {}, "DKK": {}, "SGD": {},
	"HKD": {}, "CNY": {}, "ZAR": {}, "PLN": {}, "CZK": {}, "ILS": {},
}

func ValidCurrency(code string) bool {
	_, ok := knownCurrencies[code]
	return ok
}

func checkCurrency(vs *Violations, field, code string) {
	if code == "" {
		vs.add(field, "required")
		return
	}
	if !ValidCurrency(code) {
		vs.add(field, fmt.Sprintf("unrecognized currency code %q", code))
	}
}

// Validate reports field-level violations. An empty result means the
// custodian is acceptable for persistence.
func (c *Custodian) Validate() Violations {
	var vs Violations
	if c.Name == "" {
		vs.add("name", "required")
	}
	if c.Code == "" {
		vs.add("code", "required")
	}
	return vs
}

func (p *Portfolio) Validate() Violations {
	var vs Violations
	if p.CustodianID.IsZero() {
		vs.add("custodian_id", "required")
	}
	if p.Name == "" {
		vs.add("name", "required")
	}
	checkCurrency(&vs, "currency", p.Currency)
	return vs
}

func (a *Account) Validate() Violations {
	var vs Violations
	if a.PortfolioID.IsZero() {
		vs.add("portfolio_id", "required")
	}
	if a.Name == "" {
		vs.add("name", "required")
	}
	if a.AccountType == "" {
		vs.add("account_type", "required")
	}
	checkCurrency(&vs, "currency", a.Currency)
	return vs
}

func (p *Position) Validate() Violations {
	var vs Violations
	if p.AccountID.IsZero() {
		vs.add("account_id", "required")
	}
	if p.SecurityID == "" {
		vs.add("security_id", "required")
	}
	if p.SecurityType == "" {
		vs.add("security_type", "required")
	}
	if p.Quantity.IsNegative() {
		vs.add("quantity", "must not be negative")
	}
	checkCurrency(&vs, "currency", p.Currency)
	if p.AsOfDate.IsZero() {
		vs.add("as_of_date", "required")
	}
	return vs
}

func (t *Transaction) Validate() Violations {
	var vs Violations
	if t.AccountID.IsZero() {
		vs.add("account_id", "required")
	}
	if t.TransactionType == "" {
		vs.add("transaction_type", "required")
	}
	if t.Quantity != nil && t.Quantity.IsNegative() {
		vs.add("quantity", "must not be negative")
	}
	checkCurrency(&vs, "currency", t.Currency)
	if t.TradeDate.IsZero() {
		vs.add("trade_date", "required")
	}
	if t.SettlementDate != nil && t.SettlementDate.Before(t.TradeDate) {
		vs.add("settlement_date", "must not precede trade date")
	}
	return vs
}
