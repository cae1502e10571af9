package custody

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwealth/custody/pkg/store"
)

func seedFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

var fullFixture = map[string]string{
	"custodians.json": `[
		{"ref": "ubs", "name": "UBS Switzerland", "code": "UBS-CH",
		 "contact_info": {"email": "custody@ubs.example"}},
		{"ref": "pictet", "name": "Pictet", "code": "PICTET"}
	]`,
	"portfolios.json": `[
		{"ref": "growth", "custodian_ref": "ubs", "name": "Growth", "currency": "CHF"},
		{"ref": "income", "custodian_ref": "pictet", "name": "Income", "currency": "EUR"}
	]`,
	"accounts.json": `[
		{"ref": "growth-trading", "portfolio_ref": "growth", "name": "Trading",
		 "account_type": "trading", "currency": "CHF", "balance": "100000"},
		{"ref": "income-cash", "portfolio_ref": "income", "name": "Cash",
		 "account_type": "cash", "currency": "EUR", "balance": "25000.50"}
	]`,
	"positions.json": `[
		{"account_ref": "growth-trading", "security_id": "CH0012032048",
		 "security_type": "equity", "quantity": "50", "market_value": "14400",
		 "currency": "CHF", "as_of_date": "2026-02-01"}
	]`,
	"transactions.json": `[
		{"account_ref": "growth-trading", "transaction_type": "buy",
		 "security_id": "CH0012032048", "security_type": "equity",
		 "quantity": "50", "price": "288", "amount": "-14400",
		 "currency": "CHF", "trade_date": "2026-02-01T09:30:00Z",
		 "settlement_date": "2026-02-03"},
		{"account_ref": "income-cash", "transaction_type": "deposit",
		 "amount": "25000.50", "currency": "EUR", "trade_date": "2026-01-15"}
	]`,
}

func TestSeedFullFixture(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	stats, err := svc.Seed(ctx, seedFS(fullFixture))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Custodians)
	assert.Equal(t, 2, stats.Portfolios)
	assert.Equal(t, 2, stats.Accounts)
	assert.Equal(t, 1, stats.Positions)
	assert.Equal(t, 2, stats.Transactions)

	// Refs resolved into real parent links.
	report, err := svc.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())

	custodians, err := svc.ListCustodians(ctx, store.Pagination{})
	require.NoError(t, err)
	require.Len(t, custodians, 2)
}

func TestSeedIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Seed(ctx, seedFS(fullFixture))
	require.NoError(t, err)
	stats, err := svc.Seed(ctx, seedFS(fullFixture))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Custodians)

	custodians, err := svc.ListCustodians(ctx, store.Pagination{})
	require.NoError(t, err)
	assert.Len(t, custodians, 2)
}

func TestSeedUnknownParentRef(t *testing.T) {
	svc, _, _ := newTestService(t)

	fsys := seedFS(map[string]string{
		"custodians.json": `[{"ref": "ubs", "name": "UBS", "code": "UBS"}]`,
		"portfolios.json": `[
			{"ref": "ok", "custodian_ref": "ubs", "name": "OK", "currency": "USD"},
			{"ref": "bad", "custodian_ref": "nope", "name": "Bad", "currency": "USD"}
		]`,
	})

	_, err := svc.Seed(context.Background(), fsys)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "portfolios", le.Level)
	assert.Equal(t, 1, le.Index)
}

func TestSeedDuplicateRef(t *testing.T) {
	svc, _, _ := newTestService(t)

	fsys := seedFS(map[string]string{
		"custodians.json": `[
			{"ref": "ubs", "name": "UBS", "code": "UBS"},
			{"ref": "ubs", "name": "UBS Again", "code": "UBS2"}
		]`,
	})

	_, err := svc.Seed(context.Background(), fsys)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "custodians", le.Level)
	assert.Equal(t, 1, le.Index)
}

func TestSeedValidationFailure(t *testing.T) {
	svc, _, _ := newTestService(t)

	fsys := seedFS(map[string]string{
		"custodians.json": `[{"ref": "bad", "name": "", "code": ""}]`,
	})

	_, err := svc.Seed(context.Background(), fsys)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	var ve *ValidationError
	assert.ErrorAs(t, le.Err, &ve)
}

func TestSeedMissingFilesAreEmptyLevels(t *testing.T) {
	svc, _, _ := newTestService(t)

	fsys := seedFS(map[string]string{
		"custodians.json": `[{"ref": "ubs", "name": "UBS", "code": "UBS"}]`,
	})

	stats, err := svc.Seed(context.Background(), fsys)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Custodians)
	assert.Zero(t, stats.Portfolios)
}

func TestSeedBadDate(t *testing.T) {
	svc, _, _ := newTestService(t)

	fsys := seedFS(map[string]string{
		"custodians.json": `[{"ref": "ubs", "name": "UBS", "code": "UBS"}]`,
		"portfolios.json": `[{"ref": "p", "custodian_ref": "ubs", "name": "P", "currency": "USD"}]`,
		"accounts.json": `[{"ref": "a", "portfolio_ref": "p", "name": "A",
			"account_type": "cash", "currency": "USD", "balance": "0"}]`,
		"positions.json": `[{"account_ref": "a", "security_id": "X",
			"security_type": "equity", "quantity": "1", "market_value": "1",
			"currency": "USD", "as_of_date": "02/01/2026"}]`,
	})

	_, err := svc.Seed(context.Background(), fsys)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "positions", le.Level)
	assert.Equal(t, 0, le.Index)
}
