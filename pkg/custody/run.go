package custody

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Run starts the HTTP server for the custody API and blocks until the
// context is canceled or the server fails.
//
// Routes:
//
//	GET    /api/health                                   - Service health status
//
//	POST   /api/custodians                               - Create custodian
//	GET    /api/custodians                               - List custodians
//	GET    /api/custodians/{id}                          - Get custodian
//	PUT    /api/custodians/{id}                          - Update custodian
//	DELETE /api/custodians/{id}                          - Delete custodian
//	GET    /api/custodians/{custodianId}/portfolios      - List custodian's portfolios
//
//	POST   /api/portfolios                               - Create portfolio
//	GET    /api/portfolios/{id}                          - Get portfolio
//	PUT    /api/portfolios/{id}                          - Update portfolio
//	DELETE /api/portfolios/{id}                          - Delete portfolio
//	GET    /api/portfolios/{portfolioId}/accounts        - List portfolio's accounts
//
//	POST   /api/accounts                                 - Create account
//	GET    /api/accounts/{id}                            - Get account
//	PUT    /api/accounts/{id}                            - Update account
//	DELETE /api/accounts/{id}                            - Delete account
//	GET    /api/accounts/{accountId}/positions           - List account's positions
//	GET    /api/accounts/{accountId}/transactions        - List account's transactions
//
//	POST   /api/positions                                - Create position
//	GET    /api/positions/{id}                           - Get position
//	PUT    /api/positions/{id}                           - Update position
//	DELETE /api/positions/{id}                           - Delete position
//
//	POST   /api/transactions                             - Create transaction
//	GET    /api/transactions/{id}                        - Get transaction
//	PUT    /api/transactions/{id}                        - Update transaction
//	DELETE /api/transactions/{id}                        - Delete transaction
//
//	GET    /api/admin/consistency                        - Referential integrity scan
//
// Deletes accept an optional ?policy=strict|cascade query parameter; absent,
// the configured default applies. Position and transaction lists accept
// ?from and ?to (RFC 3339) date bounds, all lists accept ?offset and ?limit.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	router := a.router()

	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	a.log.Info().Str("addr", addr).Msg("starting custody server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (a *App) router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/custodians", a.handleCreateCustodian).Methods("POST")
	api.HandleFunc("/custodians", a.handleListCustodians).Methods("GET")
	api.HandleFunc("/custodians/{id}", a.handleGetCustodian).Methods("GET")
	api.HandleFunc("/custodians/{id}", a.handleUpdateCustodian).Methods("PUT")
	api.HandleFunc("/custodians/{id}", a.handleDeleteCustodian).Methods("DELETE")
	api.HandleFunc("/custodians/{custodianId}/portfolios", a.handleListPortfolios).Methods("GET")

	api.HandleFunc("/portfolios", a.handleCreatePortfolio).Methods("POST")
	api.HandleFunc("/portfolios/{id}", a.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{id}", a.handleUpdatePortfolio).Methods("PUT")
	api.HandleFunc("/portfolios/{id}", a.handleDeletePortfolio).Methods("DELETE")
	api.HandleFunc("/portfolios/{portfolioId}/accounts", a.handleListAccounts).Methods("GET")

	api.HandleFunc("/accounts", a.handleCreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", a.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}", a.handleUpdateAccount).Methods("PUT")
	api.HandleFunc("/accounts/{id}", a.handleDeleteAccount).Methods("DELETE")
	api.HandleFunc("/accounts/{accountId}/positions", a.handleListPositions).Methods("GET")
	api.HandleFunc("/accounts/{accountId}/transactions", a.handleListTransactions).Methods("GET")

	api.HandleFunc("/positions", a.handleCreatePosition).Methods("POST")
	api.HandleFunc("/positions/{id}", a.handleGetPosition).Methods("GET")
	api.HandleFunc("/positions/{id}", a.handleUpdatePosition).Methods("PUT")
	api.HandleFunc("/positions/{id}", a.handleDeletePosition).Methods("DELETE")

	api.HandleFunc("/transactions", a.handleCreateTransaction).Methods("POST")
	api.HandleFunc("/transactions/{id}", a.handleGetTransaction).Methods("GET")
	api.HandleFunc("/transactions/{id}", a.handleUpdateTransaction).Methods("PUT")
	api.HandleFunc("/transactions/{id}", a.handleDeleteTransaction).Methods("DELETE")

	api.HandleFunc("/admin/consistency", a.handleConsistency).Methods("GET")

	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	return router
}
