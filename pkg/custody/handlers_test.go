package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwealth/custody/pkg/custodytesting"
	"github.com/openwealth/custody/pkg/models"
)

func newTestApp(t *testing.T) (*App, *capturePublisher) {
	t.Helper()
	st := custodytesting.NewMemoryStore()
	pub := &capturePublisher{}
	cfg := testConfig()
	return &App{
		service: NewService(st, pub, cfg, zerolog.Nop()),
		store:   st,
		pub:     pub,
		config:  cfg,
		log:     zerolog.Nop(),
	}, pub
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	app, _ := newTestApp(t)
	rec := doJSON(t, app.router(), "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestCustodianCRUDOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	router := app.router()

	rec := doJSON(t, router, "POST", "/api/custodians", map[string]string{
		"name": "UBS Switzerland", "code": "UBS-CH",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Custodian
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.False(t, created.ID.IsZero())

	rec = doJSON(t, router, "GET", "/api/custodians/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "PUT", "/api/custodians/"+created.ID.String(),
		map[string]string{"name": "UBS Group"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Custodian
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "UBS Group", updated.Name)
	assert.Equal(t, "UBS-CH", updated.Code)

	rec = doJSON(t, router, "DELETE", "/api/custodians/"+created.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, "GET", "/api/custodians/"+created.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	app, _ := newTestApp(t)
	router := app.router()

	// Validation failure: 400 with violations.
	rec := doJSON(t, router, "POST", "/api/custodians", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "violations")

	// Missing parent: 404.
	rec = doJSON(t, router, "POST", "/api/portfolios", map[string]string{
		"custodian_id": models.NewCustodianID().String(),
		"name":         "Orphan",
		"currency":     "USD",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed ID: 400.
	rec = doJSON(t, router, "GET", "/api/custodians/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Strict delete with children: 409.
	rec = doJSON(t, router, "POST", "/api/custodians", map[string]string{
		"name": "Pictet", "code": "PICTET",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var custodian models.Custodian
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &custodian))

	rec = doJSON(t, router, "POST", "/api/portfolios", map[string]string{
		"custodian_id": custodian.ID.String(),
		"name":         "Growth",
		"currency":     "CHF",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, "DELETE", "/api/custodians/"+custodian.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Cascade via query parameter succeeds.
	rec = doJSON(t, router, "DELETE",
		fmt.Sprintf("/api/custodians/%s?policy=cascade", custodian.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Unknown policy value: 400.
	rec = doJSON(t, router, "DELETE",
		fmt.Sprintf("/api/custodians/%s?policy=maybe", models.NewCustodianID()), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNestedListsOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	router := app.router()

	rec := doJSON(t, router, "POST", "/api/custodians", map[string]string{
		"name": "UBS", "code": "UBS",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var custodian models.Custodian
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &custodian))

	for _, name := range []string{"Growth", "Income"} {
		rec = doJSON(t, router, "POST", "/api/portfolios", map[string]string{
			"custodian_id": custodian.ID.String(),
			"name":         name,
			"currency":     "CHF",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = doJSON(t, router, "GET",
		"/api/custodians/"+custodian.ID.String()+"/portfolios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var portfolios []models.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &portfolios))
	assert.Len(t, portfolios, 2)

	rec = doJSON(t, router, "GET",
		"/api/custodians/"+custodian.ID.String()+"/portfolios?limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	portfolios = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &portfolios))
	require.Len(t, portfolios, 1)
	assert.Equal(t, "Income", portfolios[0].Name)
}

func TestDateFilteredListsOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	router := app.router()
	svc := app.service
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

	// Bare dates bound the window on both sides.
	rec := doJSON(t, router, "GET",
		"/api/accounts/"+a.ID.String()+"/transactions?from=2026-02-05&to=2026-02-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var transactions []models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transactions))
	require.Len(t, transactions, 1)
	assert.Equal(t, day(10), transactions[0].TradeDate)

	// RFC 3339 bounds are accepted too, and a one-sided bound is enough.
	rec = doJSON(t, router, "GET",
		"/api/accounts/"+a.ID.String()+"/positions?from=2026-02-10T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var positions []models.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	assert.Len(t, positions, 2)

	// A bound that parses as neither form is rejected.
	rec = doJSON(t, router, "GET",
		"/api/accounts/"+a.ID.String()+"/transactions?from=02-01-2026", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "GET",
		"/api/accounts/"+a.ID.String()+"/positions?to=not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
