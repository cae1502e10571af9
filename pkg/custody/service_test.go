package custody

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwealth/custody/pkg/custodytesting"
	"github.com/openwealth/custody/pkg/events"
	"github.com/openwealth/custody/pkg/models"
	"github.com/openwealth/custody/pkg/store"
)

// capturePublisher records envelopes synchronously so tests can assert on
// exact event order.
type capturePublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (p *capturePublisher) Publish(_ context.Context, env events.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) all() []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Envelope, len(p.envelopes))
	copy(out, p.envelopes)
	return out
}

func (p *capturePublisher) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = nil
}

func testConfig() *Config {
	return &Config{
		StoreTimeout: 5 * time.Second,
		DeletePolicy: PolicyStrict,
		DefaultLimit: 100,
	}
}

func newTestService(t *testing.T) (*Service, *custodytesting.MemoryStore, *capturePublisher) {
	t.Helper()
	st := custodytesting.NewMemoryStore()
	pub := &capturePublisher{}
	return NewService(st, pub, testConfig(), zerolog.Nop()), st, pub
}

func mustCustodian(t *testing.T, svc *Service) *models.Custodian {
	t.Helper()
	c, err := svc.CreateCustodian(context.Background(), &models.Custodian{
		Name: "Pictet", Code: "PICTET",
	})
	require.NoError(t, err)
	return c
}

func mustPortfolio(t *testing.T, svc *Service, custodianID models.CustodianID) *models.Portfolio {
	t.Helper()
	p, err := svc.CreatePortfolio(context.Background(), &models.Portfolio{
		CustodianID: custodianID, Name: "Balanced", Currency: "CHF",
	})
	require.NoError(t, err)
	return p
}

func mustAccount(t *testing.T, svc *Service, portfolioID models.PortfolioID) *models.Account {
	t.Helper()
	a, err := svc.CreateAccount(context.Background(), &models.Account{
		PortfolioID: portfolioID, Name: "Trading", AccountType: "trading",
		Currency: "CHF", Balance: models.MustDecimal("25000"),
	})
	require.NoError(t, err)
	return a
}

func mustPosition(t *testing.T, svc *Service, accountID models.AccountID) *models.Position {
	t.Helper()
	p, err := svc.CreatePosition(context.Background(), &models.Position{
		AccountID: accountID, SecurityID: "CH0012032048", SecurityType: "equity",
		Quantity: models.MustDecimal("50"), MarketValue: models.MustDecimal("14400"),
		Currency: "CHF", AsOfDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return p
}

func mustTransaction(t *testing.T, svc *Service, accountID models.AccountID) *models.Transaction {
	t.Helper()
	tx, err := svc.CreateTransaction(context.Background(), &models.Transaction{
		AccountID: accountID, TransactionType: "buy",
		SecurityID: "CH0012032048", SecurityType: "equity",
		Amount: models.MustDecimal("-14400"), Currency: "CHF",
		TradeDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return tx
}

func TestCreateHierarchy(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	c := mustCustodian(t, svc)
	assert.False(t, c.ID.IsZero())
	assert.False(t, c.CreatedAt.IsZero())

	p := mustPortfolio(t, svc, c.ID)
	a := mustAccount(t, svc, p.ID)

	got, err := svc.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, p.ID, got.PortfolioID)

	envs := pub.all()
	require.Len(t, envs, 3)
	assert.Equal(t, "custodian", envs[0].EntityType)
	assert.Equal(t, "portfolio", envs[1].EntityType)
	assert.Equal(t, "account", envs[2].EntityType)
	for _, env := range envs {
		assert.Equal(t, events.OpCreated, env.Operation)
	}
}

func TestCreateChildWithMissingParent(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePortfolio(ctx, &models.Portfolio{
		CustodianID: models.NewCustodianID(), Name: "Orphan", Currency: "USD",
	})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "custodian", nf.Entity)

	_, err = svc.CreateAccount(ctx, &models.Account{
		PortfolioID: models.NewPortfolioID(), Name: "Orphan",
		AccountType: "cash", Currency: "USD",
	})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "portfolio", nf.Entity)

	_, err = svc.CreatePosition(ctx, &models.Position{
		AccountID: models.NewAccountID(), SecurityID: "X", SecurityType: "equity",
		Quantity: models.MustDecimal("1"), MarketValue: models.MustDecimal("1"),
		Currency: "USD", AsOfDate: time.Now(),
	})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "account", nf.Entity)

	// Nothing was written, so nothing was published.
	assert.Empty(t, pub.all())
}

func TestCreateValidationFailure(t *testing.T) {
	svc, _, pub := newTestService(t)

	_, err := svc.CreateCustodian(context.Background(), &models.Custodian{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "custodian", ve.Entity)
	assert.NotEmpty(t, ve.Violations)
	assert.Empty(t, pub.all())
}

func TestGetMissing(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetCustodian(context.Background(), models.NewCustodianID())
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestUpdatePreservesIdentity(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	c := mustCustodian(t, svc)
	pub.clear()

	name := "Pictet Group"
	updated, err := svc.UpdateCustodian(ctx, c.ID, CustodianPatch{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, c.ID, updated.ID)
	assert.Equal(t, "Pictet Group", updated.Name)
	assert.Equal(t, "PICTET", updated.Code)
	assert.Equal(t, c.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.Before(c.UpdatedAt))

	envs := pub.all()
	require.Len(t, envs, 1)
	assert.Equal(t, events.OpUpdated, envs[0].Operation)
	assert.Equal(t, c.ID.String(), envs[0].EntityID)
}

func TestUpdateReassignParent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	c1 := mustCustodian(t, svc)
	c2, err := svc.CreateCustodian(ctx, &models.Custodian{Name: "Julius Baer", Code: "BAER"})
	require.NoError(t, err)
	p := mustPortfolio(t, svc, c1.ID)

	// Reassignment to an existing custodian is allowed.
	updated, err := svc.UpdatePortfolio(ctx, p.ID, PortfolioPatch{CustodianID: &c2.ID})
	require.NoError(t, err)
	assert.Equal(t, c2.ID, updated.CustodianID)

	// Reassignment to a missing custodian is rejected and leaves the
	// portfolio unchanged.
	ghost := models.NewCustodianID()
	_, err = svc.UpdatePortfolio(ctx, p.ID, PortfolioPatch{CustodianID: &ghost})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	current, err := svc.GetPortfolio(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, c2.ID, current.CustodianID)
}

func TestStrictDeleteBlockedByChildren(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	c := mustCustodian(t, svc)
	p := mustPortfolio(t, svc, c.ID)
	a := mustAccount(t, svc, p.ID)
	mustPosition(t, svc, a.ID)
	pub.clear()

	var ie *IntegrityError
	err := svc.DeleteCustodian(ctx, c.ID, "")
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "custodian", ie.Entity)
	assert.Equal(t, 1, ie.Count)

	err = svc.DeleteAccount(ctx, a.ID, "")
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "account", ie.Entity)

	// Blocked deletes publish nothing and remove nothing.
	assert.Empty(t, pub.all())
	_, err = svc.GetCustodian(ctx, c.ID)
	assert.NoError(t, err)
	_, err = svc.GetAccount(ctx, a.ID)
	assert.NoError(t, err)
}

func TestStrictDeleteLeaf(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	c := mustCustodian(t, svc)
	p := mustPortfolio(t, svc, c.ID)
	a := mustAccount(t, svc, p.ID)
	pos := mustPosition(t, svc, a.ID)
	pub.clear()

	require.NoError(t, svc.DeletePosition(ctx, pos.ID))
	require.NoError(t, svc.DeleteAccount(ctx, a.ID, ""))
	require.NoError(t, svc.DeletePortfolio(ctx, p.ID, ""))
	require.NoError(t, svc.DeleteCustodian(ctx, c.ID, ""))

	envs := pub.all()
	require.Len(t, envs, 4)
	for _, env := range envs {
		assert.Equal(t, events.OpDeleted, env.Operation)
		assert.Nil(t, env.Payload)
	}
}

func TestCascadeDeleteDeepestFirst(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	c := mustCustodian(t, svc)
	p := mustPortfolio(t, svc, c.ID)
	a := mustAccount(t, svc, p.ID)
	pos := mustPosition(t, svc, a.ID)
	tx := mustTransaction(t, svc, a.ID)
	pub.clear()

	require.NoError(t, svc.DeleteCustodian(ctx, c.ID, PolicyCascade))

	var nf *NotFoundError
	_, err := svc.GetPosition(ctx, pos.ID)
	assert.ErrorAs(t, err, &nf)
	_, err = svc.GetTransaction(ctx, tx.ID)
	assert.ErrorAs(t, err, &nf)
	_, err = svc.GetAccount(ctx, a.ID)
	assert.ErrorAs(t, err, &nf)
	_, err = svc.GetPortfolio(ctx, p.ID)
	assert.ErrorAs(t, err, &nf)
	_, err = svc.GetCustodian(ctx, c.ID)
	assert.ErrorAs(t, err, &nf)

	// Children go before their parents so consumers never see a tombstone
	// for a parent while children still exist.
	envs := pub.all()
	require.Len(t, envs, 5)
	types := make([]string, len(envs))
	for i, env := range envs {
		assert.Equal(t, events.OpDeleted, env.Operation)
		types[i] = env.EntityType
	}
	assert.Equal(t, []string{"position", "transaction", "account", "portfolio", "custodian"}, types)
}

func TestCascadePolicyFromConfig(t *testing.T) {
	st := custodytesting.NewMemoryStore()
	pub := &capturePublisher{}
	cfg := testConfig()
	cfg.DeletePolicy = PolicyCascade
	svc := NewService(st, pub, cfg, zerolog.Nop())
	ctx := context.Background()

	c := mustCustodian(t, svc)
	p := mustPortfolio(t, svc, c.ID)
	mustAccount(t, svc, p.ID)

	// Empty policy falls back to the configured default.
	require.NoError(t, svc.DeleteCustodian(ctx, c.ID, ""))

	var nf *NotFoundError
	_, err := svc.GetPortfolio(ctx, p.ID)
	assert.ErrorAs(t, err, &nf)
}

func TestPublishFailureDoesNotBlockWrites(t *testing.T) {
	st := custodytesting.NewMemoryStore()
	broker := custodytesting.NewRecordingBroker()
	broker.FailAll = true
	pub := events.NewPublisher(broker, events.Config{
		MaxAttempts: 2,
		RetryBase:   time.Millisecond,
	}, zerolog.Nop())
	svc := NewService(st, pub, testConfig(), zerolog.Nop())
	ctx := context.Background()

	c, err := svc.CreateCustodian(ctx, &models.Custodian{Name: "Vontobel", Code: "VONTOBEL"})
	require.NoError(t, err)

	// The write is durable and visible even though no event can be delivered.
	got, err := svc.GetCustodian(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Vontobel", got.Name)

	require.NoError(t, pub.Close())
	assert.Equal(t, uint64(1), pub.Dropped())
}

func TestStoreFailureSurfacesAsTransient(t *testing.T) {
	svc, st, _ := newTestService(t)

	c := mustCustodian(t, svc)

	// A canceled context fails the store call the way a dead connection
	// would, and the caller sees a retryable error.
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GetCustodian(canceled, c.ID)
	var te *TransientStoreError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.Canceled)

	// An expired deadline on a write is classified the same way.
	st.FailWith(context.DeadlineExceeded)
	_, err = svc.CreateCustodian(context.Background(), &models.Custodian{
		Name: "Lombard Odier", Code: "LODH",
	})
	require.ErrorAs(t, err, &te)
	st.FailWith(nil)

	// Other store failures pass through wrapped, not as transient.
	st.FailWith(errors.New("disk full"))
	_, err = svc.GetCustodian(context.Background(), c.ID)
	require.Error(t, err)
	var te2 *TransientStoreError
	assert.False(t, errors.As(err, &te2))
}

func TestListDateFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	c := mustCustodian(t, svc)
	p := mustPortfolio(t, svc, c.ID)
	a := mustAccount(t, svc, p.ID)

	day := func(d int) time.Time { return time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC) }
	for _, d := range []int{1, 10, 20} {
		_, err := svc.CreateTransaction(ctx, &models.Transaction{
			AccountID: a.ID, TransactionType: "buy",
			SecurityID: "CH0012032048", SecurityType: "equity",
			Amount: models.MustDecimal("-100"), Currency: "CHF",
			TradeDate: day(d),
		})
		require.NoError(t, err)
		_, err = svc.CreatePosition(ctx, &models.Position{
			AccountID: a.ID, SecurityID: "CH0012032048", SecurityType: "equity",
			Quantity: models.MustDecimal("1"), MarketValue: models.MustDecimal("100"),
			Currency: "CHF", AsOfDate: day(d),
		})
		require.NoError(t, err)
	}

	txs, err := svc.ListTransactions(ctx, store.TransactionFilter{
		AccountID: a.ID, From: day(5), To: day(15),
	}, store.Pagination{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, day(10), txs[0].TradeDate)

	// Bounds are inclusive.
	txs, err = svc.ListTransactions(ctx, store.TransactionFilter{
		AccountID: a.ID, From: day(10), To: day(20),
	}, store.Pagination{})
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	// One-sided bounds work on positions as well.
	positions, err := svc.ListPositions(ctx, store.PositionFilter{
		AccountID: a.ID, From: day(15),
	}, store.Pagination{})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, day(20), positions[0].AsOfDate)
}

func TestListPagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	c := mustCustodian(t, svc)
	for _, name := range []string{"P1", "P2", "P3"} {
		_, err := svc.CreatePortfolio(ctx, &models.Portfolio{
			CustodianID: c.ID, Name: name, Currency: "USD",
		})
		require.NoError(t, err)
	}

	page, err := svc.ListPortfolios(ctx, store.PortfolioFilter{CustodianID: c.ID},
		store.Pagination{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "P2", page[0].Name)
}
