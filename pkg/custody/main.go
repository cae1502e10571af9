package custody

import (
	"context"
	"fmt"
)

// Main is the entry point for the custody application. It parses the
// arguments, wires the application and executes the selected command. It
// can be called directly from tests without building the binary.
//
// # Command Line Usage
//
//	custody run                         # Serve the HTTP API
//	custody seed                        # Wipe and reload from ./data
//	custody check                       # Referential integrity scan
//
// # Environment Variables
//
//	SURREALDB_URL              - SurrealDB WebSocket URL (default: ws://localhost:8000/rpc)
//	SURREALDB_NS               - SurrealDB namespace (default: custody)
//	SURREALDB_DB               - SurrealDB database (default: custodian_service)
//	SURREALDB_USER             - SurrealDB username (default: root)
//	SURREALDB_PASS             - SurrealDB password (default: root)
//	AMQP_URL                   - RabbitMQ connection URL
//	EVENTS_EXCHANGE            - Event exchange name (default: custodian.events)
//	EVENTS_CUSTODIAN_TOPIC     - Topic for hierarchy events (default: custodian.custodian)
//	EVENTS_TRANSACTION_TOPIC   - Topic for transaction events (default: custodian.transactions)
//	EVENTS_ENABLED             - Publish domain events (default: true)
//	EVENTS_MAX_ATTEMPTS        - Delivery attempts per event (default: 5)
//	PORT                       - HTTP server port (default: 8080)
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	return app.Main(ctx, cmd)
}
