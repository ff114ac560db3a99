package chain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/R3E-Network/pulse_ledger/internal/app/domain/block"
	"github.com/R3E-Network/pulse_ledger/internal/app/storage/memory"
)

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := New(memory.New(), nil, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestGenesisInvariant(t *testing.T) {
	svc := newTestService(t)

	blocks, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected exactly one block, got %d", len(blocks))
	}

	genesis := blocks[0]
	if genesis.Index != 0 {
		t.Fatalf("genesis index = %d, want 0", genesis.Index)
	}
	if genesis.PrevHash != "" {
		t.Fatalf("genesis prev hash = %q, want empty", genesis.PrevHash)
	}
	if genesis.Hash != ComputeHash(genesis) {
		t.Fatalf("genesis hash %q does not match its content", genesis.Hash)
	}
}

func TestGenesisNotReseededOnExistingChain(t *testing.T) {
	store := memory.New()
	first, err := New(store, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := first.Append(context.Background(), 70); err != nil {
		t.Fatalf("append: %v", err)
	}

	second, err := New(store, nil)
	if err != nil {
		t.Fatalf("reopen service: %v", err)
	}
	height, err := second.Height(context.Background())
	if err != nil {
		t.Fatalf("height: %v", err)
	}
	if height != 2 {
		t.Fatalf("height = %d, want 2 (genesis must not be reseeded)", height)
	}
}

func TestGenerateCandidate(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, WithClock(fixedClock(ts)))

	tail, err := svc.Tail(context.Background())
	if err != nil {
		t.Fatalf("tail: %v", err)
	}

	candidate := svc.GenerateCandidate(tail, 88)
	if candidate.Index != tail.Index+1 {
		t.Fatalf("candidate index = %d, want %d", candidate.Index, tail.Index+1)
	}
	if candidate.PrevHash != tail.Hash {
		t.Fatalf("candidate prev hash = %q, want %q", candidate.PrevHash, tail.Hash)
	}
	if candidate.BPM != 88 {
		t.Fatalf("candidate bpm = %d, want 88", candidate.BPM)
	}
	if candidate.Timestamp != ts.Format(time.RFC3339Nano) {
		t.Fatalf("candidate timestamp = %q, want clock time", candidate.Timestamp)
	}
	if candidate.Hash != ComputeHash(candidate) {
		t.Fatalf("candidate hash does not seal its content")
	}
}

func TestIsValidRejectsBadLinkage(t *testing.T) {
	svc := newTestService(t)
	tail, _ := svc.Tail(context.Background())
	good := svc.GenerateCandidate(tail, 60)

	if !IsValid(good, tail) {
		t.Fatalf("expected freshly generated candidate to be valid")
	}

	badIndex := good
	badIndex.Index += 1
	badIndex.Hash = ComputeHash(badIndex)
	if IsValid(badIndex, tail) {
		t.Fatalf("expected out-of-sequence index to be rejected")
	}

	badPrev := good
	badPrev.PrevHash = "deadbeef"
	badPrev.Hash = ComputeHash(badPrev)
	if IsValid(badPrev, tail) {
		t.Fatalf("expected prev hash mismatch to be rejected")
	}
}

func TestIsValidRejectsTampering(t *testing.T) {
	svc := newTestService(t)
	tail, _ := svc.Tail(context.Background())

	tampered := map[string]func(*block.Block){
		"index":     func(b *block.Block) { b.Index += 2 },
		"timestamp": func(b *block.Block) { b.Timestamp = "later" },
		"bpm":       func(b *block.Block) { b.BPM = 999 },
		"prev_hash": func(b *block.Block) { b.PrevHash = "forged" },
	}

	for field, mutate := range tampered {
		candidate := svc.GenerateCandidate(tail, 60)
		mutate(&candidate)
		// Hash deliberately not recomputed.
		if IsValid(candidate, tail) {
			t.Fatalf("expected tampered %s to be rejected", field)
		}
	}
}

func TestAppendEndToEnd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	genesis, _ := svc.Tail(ctx)

	res, err := svc.Append(ctx, 60)
	if err != nil {
		t.Fatalf("append 60: %v", err)
	}
	if !res.Committed {
		t.Fatalf("append 60 rejected: %s", res.Reason)
	}
	if res.Block.Index != 1 || res.Block.PrevHash != genesis.Hash {
		t.Fatalf("block 1 linkage wrong: index=%d prev=%q", res.Block.Index, res.Block.PrevHash)
	}
	if res.Block.Hash != ComputeHash(res.Block) {
		t.Fatalf("block 1 hash does not seal its content")
	}

	res2, err := svc.Append(ctx, 75)
	if err != nil {
		t.Fatalf("append 75: %v", err)
	}
	if !res2.Committed || res2.Block.Index != 2 || res2.Block.PrevHash != res.Block.Hash {
		t.Fatalf("block 2 linkage wrong: %+v", res2.Block)
	}

	blocks, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("chain length = %d, want 3", len(blocks))
	}
	verifyLinkage(t, blocks)
}

func TestAppendMonotonic(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const n = 25
	for i := 0; i < n; i++ {
		res, err := svc.Append(ctx, int64(50+i))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if !res.Committed {
			t.Fatalf("append %d rejected: %s", i, res.Reason)
		}
	}

	blocks, _ := svc.Snapshot(ctx)
	if len(blocks) != n+1 {
		t.Fatalf("chain length = %d, want %d", len(blocks), n+1)
	}
	verifyLinkage(t, blocks)
}

func TestAppendAcceptsZeroAndNegativeReadings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, bpm := range []int64{0, -40} {
		res, err := svc.Append(ctx, bpm)
		if err != nil {
			t.Fatalf("append %d: %v", bpm, err)
		}
		if !res.Committed {
			t.Fatalf("append %d rejected: %s", bpm, res.Reason)
		}
		if res.Block.BPM != bpm {
			t.Fatalf("stored bpm = %d, want %d", res.Block.BPM, bpm)
		}
	}
}

func TestConcurrentAppendSafety(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	committed := make([]bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Append(ctx, int64(i))
			if err != nil {
				t.Errorf("append %d: %v", i, err)
				return
			}
			committed[i] = res.Committed
		}(i)
	}
	wg.Wait()

	commits := 0
	for _, ok := range committed {
		if ok {
			commits++
		}
	}

	blocks, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(blocks) != 1+commits {
		t.Fatalf("chain length = %d, want %d", len(blocks), 1+commits)
	}
	verifyLinkage(t, blocks)
}

func TestSubscribeReceivesCommittedBlocks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	blocks, cancel := svc.Subscribe()
	defer cancel()

	res, err := svc.Append(ctx, 64)
	if err != nil || !res.Committed {
		t.Fatalf("append: err=%v committed=%v", err, res.Committed)
	}

	select {
	case got := <-blocks:
		if got.Hash != res.Block.Hash {
			t.Fatalf("streamed block %q, want %q", got.Hash, res.Block.Hash)
		}
	case <-time.After(time.Second):
		t.Fatalf("no block received on subscription")
	}

	cancel()
	if _, ok := <-blocks; ok {
		t.Fatalf("expected subscription channel closed after cancel")
	}
}

func verifyLinkage(t *testing.T, blocks []block.Block) {
	t.Helper()
	for i, b := range blocks {
		if b.Index != int64(i) {
			t.Fatalf("block %d has index %d", i, b.Index)
		}
		if b.Hash != ComputeHash(b) {
			t.Fatalf("block %d hash does not seal its content", i)
		}
		if i == 0 {
			if b.PrevHash != "" {
				t.Fatalf("genesis prev hash = %q, want empty", b.PrevHash)
			}
			continue
		}
		if b.PrevHash != blocks[i-1].Hash {
			t.Fatalf("block %d prev hash does not match block %d", i, i-1)
		}
	}
}
