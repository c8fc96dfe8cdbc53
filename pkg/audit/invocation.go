package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Invocation is one ledger row. Credentials are never part of it.
type Invocation struct {
	InvocationID string
	EventID      string
	ClientID     string
	Tool         string
	Resource     string
	Operation    string
	Params       json.RawMessage
	Status       string
	ErrorMsg     string
	ItemCount    int
	DurationMS   int64
	ReceivedAt   time.Time

	// Set by Seal.
	ParamsCanon  []byte
	OutcomeCanon []byte
	Hash         string
	PrevHash     string
}

type sealedParams struct {
	Tool      string          `json:"tool"`
	Resource  string          `json:"resource"`
	Operation string          `json:"operation"`
	Params    json.RawMessage `json:"params"`
	EventID   string          `json:"event_id,omitempty"`
}

type sealedOutcome struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	ItemCount  int    `json:"item_count"`
	ReceivedAt string `json:"received_at"`
}

// Seal canonicalises the invocation and links it after prevHash.
func Seal(prevHash string, inv *Invocation) error {
	inv.Params = sanitizeParams(inv.Params)

	paramsCanon, err := CanonicalJSON(sealedParams{
		Tool:      inv.Tool,
		Resource:  inv.Resource,
		Operation: inv.Operation,
		Params:    inv.Params,
		EventID:   inv.EventID,
	})
	if err != nil {
		return fmt.Errorf("audit.Seal params: %w", err)
	}
	outcomeCanon, err := CanonicalJSON(sealedOutcome{
		Status:     inv.Status,
		Error:      inv.ErrorMsg,
		ItemCount:  inv.ItemCount,
		ReceivedAt: inv.ReceivedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("audit.Seal outcome: %w", err)
	}

	inv.ParamsCanon = paramsCanon
	inv.OutcomeCanon = outcomeCanon
	inv.PrevHash = prevHash
	inv.Hash = ChainHash(prevHash, paramsCanon, outcomeCanon)
	return nil
}

// sanitizeParams keeps valid JSON as is and stores anything else as a
// JSON string so the row can always be written.
func sanitizeParams(p json.RawMessage) json.RawMessage {
	if len(p) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(p) {
		return p
	}
	quoted, _ := json.Marshal(string(p))
	return quoted
}
