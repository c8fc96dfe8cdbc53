package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ChainHash computes the next link of a client's chain.
//
//	hash = SHA-256( prevHash || canonicalParams || canonicalOutcome )
func ChainHash(prevHash string, canonParams, canonOutcome []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonParams)
	h.Write(canonOutcome)
	return hex.EncodeToString(h.Sum(nil))
}

// Link is the part of a ledger row needed to verify and archive the chain.
type Link struct {
	Seq          int64     `json:"seq"`
	InvocationID string    `json:"invocation_id"`
	Hash         string    `json:"hash"`
	PrevHash     string    `json:"prev_hash"`
	ParamsCanon  []byte    `json:"params_canon"`
	OutcomeCanon []byte    `json:"outcome_canon"`
	ReceivedAt   time.Time `json:"received_at"`
}

// VerifyFrom checks links in order, starting from the hash that preceded
// the first of them ("" for the head of a chain).
func VerifyFrom(prevHash string, links []Link) error {
	prev := prevHash
	for i, l := range links {
		if l.PrevHash != prev {
			return fmt.Errorf("audit.VerifyFrom: link %d (%s) points at %q, want %q", i, l.InvocationID, l.PrevHash, prev)
		}
		if want := ChainHash(prev, l.ParamsCanon, l.OutcomeCanon); l.Hash != want {
			return fmt.Errorf("audit.VerifyFrom: link %d (%s) hash mismatch: expected %s, got %s", i, l.InvocationID, want, l.Hash)
		}
		prev = l.Hash
	}
	return nil
}
