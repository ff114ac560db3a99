package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/pulse_ledger/internal/app/domain/block"
)

// ErrEmptyChain is returned when the tail of an uninitialized chain is requested.
var ErrEmptyChain = errors.New("chain is empty")

// ErrLinkageMismatch is returned when an appended block does not extend the
// current tail. The store re-checks linkage inside its write lock so a commit
// can never interleave with another writer.
var ErrLinkageMismatch = errors.New("block does not link to current tail")

// ChainStore owns the ordered block sequence. Appends are atomic with respect
// to concurrent readers and writers; reads return consistent copies.
type ChainStore interface {
	// AppendBlock commits a block to the chain. The first block must carry
	// index 0 and an empty prev hash; every later block must carry the tail's
	// index+1 and the tail's hash. Returns ErrLinkageMismatch otherwise.
	AppendBlock(ctx context.Context, b block.Block) (block.Block, error)

	// TailBlock returns the most recently committed block.
	TailBlock(ctx context.Context) (block.Block, error)

	// ListBlocks returns a point-in-time copy of the full chain in order.
	ListBlocks(ctx context.Context) ([]block.Block, error)

	// Height returns the number of committed blocks.
	Height(ctx context.Context) (int64, error)
}
