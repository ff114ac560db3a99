// Package chain implements the append-only hash-linked ledger: block
// construction, linkage validation and the single-writer append discipline.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/pulse_ledger/internal/app/domain/block"
	"github.com/R3E-Network/pulse_ledger/internal/app/metrics"
	"github.com/R3E-Network/pulse_ledger/internal/app/storage"
	"github.com/R3E-Network/pulse_ledger/pkg/logger"
)

// Clock supplies block timestamps. Tests inject a fixed clock so hashes are
// reproducible.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

func systemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}

// Result is the outcome of an append. The candidate block is present in both
// outcomes; Committed tells them apart, and Reason names the failed check when
// the candidate was discarded.
type Result struct {
	Block     block.Block `json:"block"`
	Committed bool        `json:"committed"`
	Reason    string      `json:"reason,omitempty"`
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the wall clock used for block timestamps.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Service owns ledger reads and the only externally triggered mutation. A
// single mutex serializes the read-tail, build, validate, commit sequence so
// two appends can never observe the same tail.
type Service struct {
	store storage.ChainStore
	log   *logger.Logger
	clock Clock

	mu sync.Mutex // guards the append critical section

	subMu   sync.RWMutex
	subs    map[int]chan block.Block
	nextSub int
}

// New constructs the chain service and seeds the genesis block if the store is
// empty. The ledger is never empty once New returns.
func New(store storage.ChainStore, log *logger.Logger, opts ...Option) (*Service, error) {
	if log == nil {
		log = logger.NewDefault("chain")
	}
	s := &Service{
		store: store,
		log:   log,
		clock: systemClock(),
		subs:  make(map[int]chan block.Block),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ensureGenesis(context.Background()); err != nil {
		return nil, fmt.Errorf("seed genesis: %w", err)
	}
	return s, nil
}

func (s *Service) ensureGenesis(ctx context.Context) error {
	height, err := s.store.Height(ctx)
	if err != nil {
		return err
	}
	if height > 0 {
		return nil
	}

	genesis := block.Block{
		Index:     0,
		Timestamp: s.clock.Now().Format(time.RFC3339Nano),
		BPM:       0,
		PrevHash:  "",
	}
	genesis.Hash = ComputeHash(genesis)

	if _, err := s.store.AppendBlock(ctx, genesis); err != nil {
		return err
	}
	metrics.SetChainHeight(1)
	s.log.WithField("hash", genesis.Hash).Info("genesis block created")
	return nil
}

// GenerateCandidate builds the successor of tail carrying the given reading.
// The candidate is not yet part of the ledger.
func (s *Service) GenerateCandidate(tail block.Block, bpm int64) block.Block {
	candidate := block.Block{
		Index:     tail.Index + 1,
		Timestamp: s.clock.Now().Format(time.RFC3339Nano),
		BPM:       bpm,
		PrevHash:  tail.Hash,
	}
	candidate.Hash = ComputeHash(candidate)
	return candidate
}

// IsValid reports whether candidate extends reference: sequential index,
// prev-hash linkage, and a hash that still matches the candidate's content.
// The re-hash guards against callers that mutated fields after construction.
func IsValid(candidate, reference block.Block) bool {
	return invalidReason(candidate, reference) == ""
}

func invalidReason(candidate, reference block.Block) string {
	if reference.Index+1 != candidate.Index {
		return "index out of sequence"
	}
	if reference.Hash != candidate.PrevHash {
		return "prev hash does not match tail hash"
	}
	if ComputeHash(candidate) != candidate.Hash {
		return "hash does not match block content"
	}
	return ""
}

// Append builds, validates and commits one block carrying the reading. The
// candidate is returned whether or not it was committed; rejection is not an
// error. Validation failure is defensive only and should not occur under
// normal operation.
func (s *Service) Append(ctx context.Context, bpm int64) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail, err := s.store.TailBlock(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read tail: %w", err)
	}

	candidate := s.GenerateCandidate(tail, bpm)

	if reason := invalidReason(candidate, tail); reason != "" {
		metrics.RecordAppend(false)
		s.log.WithField("index", candidate.Index).WithField("reason", reason).Warn("candidate rejected")
		return Result{Block: candidate, Reason: reason}, nil
	}

	if _, err := s.store.AppendBlock(ctx, candidate); err != nil {
		if errors.Is(err, storage.ErrLinkageMismatch) {
			metrics.RecordAppend(false)
			return Result{Block: candidate, Reason: err.Error()}, nil
		}
		return Result{}, fmt.Errorf("commit block: %w", err)
	}

	metrics.RecordAppend(true)
	metrics.SetChainHeight(candidate.Index + 1)
	s.log.WithField("index", candidate.Index).WithField("bpm", bpm).Info("block appended")
	s.notify(candidate)

	return Result{Block: candidate, Committed: true}, nil
}

// Snapshot returns a consistent copy of the full chain in order.
func (s *Service) Snapshot(ctx context.Context) ([]block.Block, error) {
	return s.store.ListBlocks(ctx)
}

// Tail returns the most recently committed block.
func (s *Service) Tail(ctx context.Context) (block.Block, error) {
	return s.store.TailBlock(ctx)
}

// Height returns the number of committed blocks.
func (s *Service) Height(ctx context.Context) (int64, error) {
	return s.store.Height(ctx)
}

// Subscribe registers a listener for committed blocks. The returned cancel
// func must be called to release the subscription. Slow listeners miss blocks
// rather than stall the append path.
func (s *Service) Subscribe() (<-chan block.Block, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan block.Block, 16)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (s *Service) notify(b block.Block) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- b:
		default:
		}
	}
}
