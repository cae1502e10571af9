package custody

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/openwealth/custody/pkg/models"
	"github.com/openwealth/custody/pkg/store"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses:
// validation 400, missing entities 404, blocked deletes 409, retryable
// store failures 503, anything else 500.
func respondServiceError(w http.ResponseWriter, err error) {
	var (
		ve *ValidationError
		nf *NotFoundError
		ie *IntegrityError
		te *TransientStoreError
	)
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":      ve.Error(),
			"violations": ve.Violations,
		})
	case errors.As(err, &nf):
		respondError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &ie):
		respondError(w, http.StatusConflict, ie.Error())
	case errors.As(err, &te):
		respondError(w, http.StatusServiceUnavailable, te.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func parsePagination(r *http.Request) store.Pagination {
	var p store.Pagination
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	return p
}

func parseDateBound(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t, err = time.Parse("2006-01-02", v)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func parsePolicy(r *http.Request) (DeletePolicy, bool) {
	switch v := r.URL.Query().Get("policy"); v {
	case "":
		return "", true
	case string(PolicyStrict):
		return PolicyStrict, true
	case string(PolicyCascade):
		return PolicyCascade, true
	default:
		return "", false
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (a *App) handleConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.CheckConsistency(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Custodian handlers

func (a *App) handleCreateCustodian(w http.ResponseWriter, r *http.Request) {
	var custodian models.Custodian
	if err := json.NewDecoder(r.Body).Decode(&custodian); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	created, err := a.service.CreateCustodian(r.Context(), &custodian)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (a *App) handleGetCustodian(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseCustodianID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid custodian ID")
		return
	}

	custodian, err := a.service.GetCustodian(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, custodian)
}

func (a *App) handleListCustodians(w http.ResponseWriter, r *http.Request) {
	custodians, err := a.service.ListCustodians(r.Context(), parsePagination(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, custodians)
}

func (a *App) handleUpdateCustodian(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseCustodianID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid custodian ID")
		return
	}

	var patch CustodianPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	updated, err := a.service.UpdateCustodian(r.Context(), id, patch)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (a *App) handleDeleteCustodian(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseCustodianID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid custodian ID")
		return
	}
	policy, ok := parsePolicy(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid delete policy")
		return
	}

	if err := a.service.DeleteCustodian(r.Context(), id, policy); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Portfolio handlers

func (a *App) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var portfolio models.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&portfolio); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	created, err := a.service.CreatePortfolio(r.Context(), &portfolio)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (a *App) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParsePortfolioID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid portfolio ID")
		return
	}

	portfolio, err := a.service.GetPortfolio(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, portfolio)
}

func (a *App) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	custodianID, err := models.ParseCustodianID(mux.Vars(r)["custodianId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid custodian ID")
		return
	}

	portfolios, err := a.service.ListPortfolios(r.Context(),
		store.PortfolioFilter{CustodianID: custodianID}, parsePagination(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, portfolios)
}

func (a *App) handleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParsePortfolioID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid portfolio ID")
		return
	}

	var patch PortfolioPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	updated, err := a.service.UpdatePortfolio(r.Context(), id, patch)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (a *App) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParsePortfolioID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid portfolio ID")
		return
	}
	policy, ok := parsePolicy(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid delete policy")
		return
	}

	if err := a.service.DeletePortfolio(r.Context(), id, policy); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Account handlers

func (a *App) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var account models.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	created, err := a.service.CreateAccount(r.Context(), &account)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (a *App) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseAccountID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	account, err := a.service.GetAccount(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (a *App) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := models.ParsePortfolioID(mux.Vars(r)["portfolioId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid portfolio ID")
		return
	}

	accounts, err := a.service.ListAccounts(r.Context(),
		store.AccountFilter{PortfolioID: portfolioID}, parsePagination(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (a *App) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseAccountID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	var patch AccountPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	updated, err := a.service.UpdateAccount(r.Context(), id, patch)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (a *App) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseAccountID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}
	policy, ok := parsePolicy(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid delete policy")
		return
	}

	if err := a.service.DeleteAccount(r.Context(), id, policy); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Position handlers

func (a *App) handleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var position models.Position
	if err := json.NewDecoder(r.Body).Decode(&position); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	created, err := a.service.CreatePosition(r.Context(), &position)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (a *App) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParsePositionID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid position ID")
		return
	}

	position, err := a.service.GetPosition(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, position)
}

func (a *App) handleListPositions(w http.ResponseWriter, r *http.Request) {
	accountID, err := models.ParseAccountID(mux.Vars(r)["accountId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}
	from, err := parseDateBound(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid from date")
		return
	}
	to, err := parseDateBound(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid to date")
		return
	}

	filter := store.PositionFilter{AccountID: accountID}
	if from != nil {
		filter.From = *from
	}
	if to != nil {
		filter.To = *to
	}

	positions, err := a.service.ListPositions(r.Context(), filter, parsePagination(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, positions)
}

func (a *App) handleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParsePositionID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid position ID")
		return
	}

	var patch PositionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	updated, err := a.service.UpdatePosition(r.Context(), id, patch)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (a *App) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParsePositionID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid position ID")
		return
	}

	if err := a.service.DeletePosition(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Transaction handlers

func (a *App) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var transaction models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&transaction); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	created, err := a.service.CreateTransaction(r.Context(), &transaction)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (a *App) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseTransactionID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	transaction, err := a.service.GetTransaction(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transaction)
}

func (a *App) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := models.ParseAccountID(mux.Vars(r)["accountId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}
	from, err := parseDateBound(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid from date")
		return
	}
	to, err := parseDateBound(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid to date")
		return
	}

	filter := store.TransactionFilter{AccountID: accountID}
	if from != nil {
		filter.From = *from
	}
	if to != nil {
		filter.To = *to
	}

	transactions, err := a.service.ListTransactions(r.Context(), filter, parsePagination(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transactions)
}

func (a *App) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseTransactionID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	var patch TransactionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	updated, err := a.service.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (a *App) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseTransactionID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	if err := a.service.DeleteTransaction(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
