// Package memory holds the in-memory chain store. The ledger is volatile by
// design: it lives only in process memory and restarts at genesis.
package memory

import (
	"context"
	"sync"

	"github.com/R3E-Network/pulse_ledger/internal/app/domain/block"
	"github.com/R3E-Network/pulse_ledger/internal/app/storage"
)

// Store is the in-memory implementation of storage.ChainStore. It is safe for
// concurrent use: appends take the write lock, reads copy under the read lock.
type Store struct {
	mu     sync.RWMutex
	blocks []block.Block
}

var _ storage.ChainStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) AppendBlock(_ context.Context, b block.Block) (block.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.blocks) == 0 {
		if b.Index != 0 || b.PrevHash != "" {
			return block.Block{}, storage.ErrLinkageMismatch
		}
		s.blocks = append(s.blocks, b)
		return b, nil
	}

	tail := s.blocks[len(s.blocks)-1]
	if b.Index != tail.Index+1 || b.PrevHash != tail.Hash {
		return block.Block{}, storage.ErrLinkageMismatch
	}

	s.blocks = append(s.blocks, b)
	return b, nil
}

func (s *Store) TailBlock(_ context.Context) (block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.blocks) == 0 {
		return block.Block{}, storage.ErrEmptyChain
	}
	return s.blocks[len(s.blocks)-1], nil
}

func (s *Store) ListBlocks(_ context.Context) ([]block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]block.Block, len(s.blocks))
	copy(out, s.blocks)
	return out, nil
}

func (s *Store) Height(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.blocks)), nil
}
