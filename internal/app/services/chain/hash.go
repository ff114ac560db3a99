package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/R3E-Network/pulse_ledger/internal/app/domain/block"
)

// ComputeHash returns the lowercase-hex SHA-256 digest sealing a block. The
// record is the concatenation of index, timestamp, bpm and prev hash, with the
// integers rendered in decimal. Deterministic and side-effect free.
func ComputeHash(b block.Block) string {
	record := strconv.FormatInt(b.Index, 10) + b.Timestamp + strconv.FormatInt(b.BPM, 10) + b.PrevHash
	sum := sha256.Sum256([]byte(record))
	return hex.EncodeToString(sum[:])
}
