// Package system manages the lifecycle of application components.
package system

import "context"

// Service represents a lifecycle-managed component. Application modules
// implement this interface so the manager can start and stop them
// deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService satisfies Service for components without startup work.
type NoopService struct {
	ServiceName string
}

// Name returns the service name.
func (s NoopService) Name() string { return s.ServiceName }

// Start is a no-op.
func (s NoopService) Start(context.Context) error { return nil }

// Stop is a no-op.
func (s NoopService) Stop(context.Context) error { return nil }
