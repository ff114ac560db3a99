// Package app composes the ledger's services, storage and lifecycle into a
// running application.
package app

import (
	"context"
	"fmt"

	"github.com/R3E-Network/pulse_ledger/internal/app/services/chain"
	"github.com/R3E-Network/pulse_ledger/internal/app/storage"
	"github.com/R3E-Network/pulse_ledger/internal/app/storage/memory"
	"github.com/R3E-Network/pulse_ledger/internal/app/system"
	"github.com/R3E-Network/pulse_ledger/pkg/logger"
)

// Stores encapsulates persistence dependencies. A nil store defaults to the
// in-memory implementation; the ledger is volatile by design.
type Stores struct {
	Chain storage.ChainStore
}

// Application ties the chain service together and manages its lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Chain *chain.Service
}

// New builds a fully initialised application with the provided stores. The
// chain is seeded with its genesis block before New returns.
func New(stores Stores, log *logger.Logger, chainOpts ...chain.Option) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	if stores.Chain == nil {
		stores.Chain = memory.New()
	}

	manager := system.NewManager()

	chainService, err := chain.New(stores.Chain, log.WithField("component", "chain"), chainOpts...)
	if err != nil {
		return nil, fmt.Errorf("init chain service: %w", err)
	}

	if err := manager.Register(system.NoopService{ServiceName: "chain"}); err != nil {
		return nil, fmt.Errorf("register chain service: %w", err)
	}

	return &Application{
		manager: manager,
		log:     log,
		Chain:   chainService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
