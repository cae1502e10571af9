package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func violationFields(vs Violations) []string {
	fields := make([]string, len(vs))
	for i, v := range vs {
		fields[i] = v.Field
	}
	return fields
}

func TestCustodianValidate(t *testing.T) {
	c := &Custodian{ID: NewCustodianID(), Name: "UBS Switzerland", Code: "UBS-CH"}
	assert.Empty(t, c.Validate())

	empty := &Custodian{ID: NewCustodianID()}
	vs := empty.Validate()
	assert.ElementsMatch(t, []string{"name", "code"}, violationFields(vs))
}

func TestPortfolioValidate(t *testing.T) {
	p := &Portfolio{
		ID:          NewPortfolioID(),
		CustodianID: NewCustodianID(),
		Name:        "Growth",
		Currency:    "CHF",
	}
	assert.Empty(t, p.Validate())

	p.Currency = "XYZ"
	vs := p.Validate()
	require.Len(t, vs, 1)
	assert.Equal(t, "currency", vs[0].Field)

	missing := &Portfolio{ID: NewPortfolioID()}
	assert.ElementsMatch(t, []string{"custodian_id", "name", "currency"},
		violationFields(missing.Validate()))
}

func TestAccountValidate(t *testing.T) {
	a := &Account{
		ID:          NewAccountID(),
		PortfolioID: NewPortfolioID(),
		Name:        "Cash",
		AccountType: "cash",
		Currency:    "USD",
		Balance:     MustDecimal("1000.50"),
	}
	assert.Empty(t, a.Validate())

	a.AccountType = ""
	vs := a.Validate()
	require.Len(t, vs, 1)
	assert.Equal(t, "account_type", vs[0].Field)
}

func TestPositionValidate(t *testing.T) {
	p := &Position{
		ID:           NewPositionID(),
		AccountID:    NewAccountID(),
		SecurityID:   "US0378331005",
		SecurityType: "equity",
		Quantity:     MustDecimal("120"),
		MarketValue:  MustDecimal("21030.00"),
		Currency:     "USD",
		AsOfDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.Empty(t, p.Validate())

	p.Quantity = MustDecimal("-1")
	vs := p.Validate()
	require.Len(t, vs, 1)
	assert.Equal(t, "quantity", vs[0].Field)
}

func TestTransactionValidate(t *testing.T) {
	trade := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	settle := trade.AddDate(0, 0, 2)
	amount := MustDecimal("-5250.00")
	tx := &Transaction{
		ID:              NewTransactionID(),
		AccountID:       NewAccountID(),
		TransactionType: "buy",
		SecurityID:      "US0378331005",
		SecurityType:    "equity",
		Amount:          amount,
		Currency:        "USD",
		TradeDate:       trade,
		SettlementDate:  &settle,
	}
	assert.Empty(t, tx.Validate())

	early := trade.AddDate(0, 0, -1)
	tx.SettlementDate = &early
	vs := tx.Validate()
	require.Len(t, vs, 1)
	assert.Equal(t, "settlement_date", vs[0].Field)
}

func TestTransactionValidateCashMovement(t *testing.T) {
	// Cash movements carry no instrument or quantity.
	tx := &Transaction{
		ID:              NewTransactionID(),
		AccountID:       NewAccountID(),
		TransactionType: "deposit",
		Amount:          MustDecimal("10000"),
		Currency:        "EUR",
		TradeDate:       time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	assert.Empty(t, tx.Validate())
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("USD"))
	assert.True(t, ValidCurrency("CHF"))
	assert.False(t, ValidCurrency("usd"))
	assert.False(t, ValidCurrency(""))
}
