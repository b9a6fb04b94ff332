// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: one global instance initialised with Init().
//   - Context Scoping: each invocation can carry its own scoped logger with
//     extra fields (request method, uri, rotation run) without a new core.
//   - Environments: "dev" uses a colored console encoder, "prod" uses JSON.
//     Lambda runtimes should use "prod" so CloudWatch receives one JSON line
//     per entry.
//   - Levels: debug, info, warn, error (configurable via LOG_LEVEL).
//
// # Usage
//
// Initialisation (once in main.go):
//
//	logger.Init(logger.Config{
//	    Env:   os.Getenv("APP_ENV"),   // "dev" or "prod"
//	    Level: os.Getenv("LOG_LEVEL"), // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// With a context:
//
//	log := logger.From(ctx)
//	log.Info("public key created", logger.KeyID(id))
//
// Without a context (falls back to the singleton):
//
//	logger.L().Info("authorizer started")
package logger
