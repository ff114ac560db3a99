// Package app composes the pulse ledger into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   └── block/          # Ledger block model
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # ChainStore interface
//	│   └── memory/         # In-memory implementation
//	├── services/           # Business logic
//	│   └── chain/          # Append, validation, hashing, subscriptions
//	├── httpapi/            # HTTP handlers and routing
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus metrics
//
// The app package wires the chain service to its store and exposes it over
// HTTP. Business logic belongs in services/chain; this layer only composes.
package app
