package custody

import (
	"flag"
	"fmt"
	"time"
)

// Parse parses command line arguments and returns the command to execute,
// the application configuration, and any error that occurred. Configuration
// starts from [DefaultConfig] (the environment) and flags override it.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("custody", flag.ContinueOnError)

	config := DefaultConfig()

	var (
		port         = flagSet.String("port", config.ServerPort, "HTTP server port")
		surrealURL   = flagSet.String("surrealdb-url", config.SurrealDBURL, "SurrealDB RPC endpoint")
		amqpURL      = flagSet.String("amqp-url", config.AMQPURL, "RabbitMQ connection URL")
		noEvents     = flagSet.Bool("no-events", false, "Disable event publication")
		deletePolicy = flagSet.String("delete-policy", string(config.DeletePolicy), "Default delete policy: strict or cascade")
		storeTimeout = flagSet.Duration("store-timeout", config.StoreTimeout, "Per-operation store timeout")
		seedDir      = flagSet.String("seed-dir", "data", "Directory of seed fixture files (seed command)")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, fmt.Errorf(`subcommand required

Usage: custody [flags] <command>

Commands:
  run       Start the custody HTTP server
  seed      Wipe the collections and load fixture data
  check     Scan for dangling parent references

Examples:
  custody run                                  # Serve with environment config
  custody -port=8090 run                       # Custom port
  custody -no-events run                       # Serve without publishing events
  custody -delete-policy cascade run           # Cascade deletes by default
  custody seed                                 # Load fixtures from ./data
  custody -seed-dir=testdata/small seed        # Load a different fixture set
  custody check                                # Referential integrity scan`)
	}

	var cmd Command
	switch remainingArgs[0] {
	case "run":
		cmd = &RunCommand{}
	case "seed":
		cmd = &SeedCommand{Dir: *seedDir}
	case "check":
		cmd = &CheckCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: run, seed, check", remainingArgs[0])
	}

	switch DeletePolicy(*deletePolicy) {
	case PolicyStrict, PolicyCascade:
		config.DeletePolicy = DeletePolicy(*deletePolicy)
	default:
		return nil, nil, fmt.Errorf("invalid delete policy: %s (must be 'strict' or 'cascade')", *deletePolicy)
	}

	config.ServerPort = *port
	config.SurrealDBURL = *surrealURL
	config.AMQPURL = *amqpURL
	if *noEvents {
		config.EventsEnabled = false
	}
	if *storeTimeout > 0 {
		config.StoreTimeout = *storeTimeout
	} else {
		config.StoreTimeout = 10 * time.Second
	}

	return cmd, config, nil
}
