// Package block defines the ledger's block model. Blocks are immutable value
// objects; they hold no references and copy freely.
package block

// Block is one hash-sealed entry in the ledger. Hash covers index, timestamp,
// bpm and prev_hash and is never recomputed after construction. PrevHash is
// empty only for the genesis block.
type Block struct {
	Index     int64  `json:"index"`
	Timestamp string `json:"timestamp"`
	BPM       int64  `json:"bpm"`
	Hash      string `json:"hash"`
	PrevHash  string `json:"prev_hash"`
}
