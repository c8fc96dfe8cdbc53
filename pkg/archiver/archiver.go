// Package archiver bundles verified ledger segments into object storage.
package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bturcanu/monterosa-connector/pkg/audit"
)

const defaultBatchSize = 1000

type LedgerStore interface {
	Checkpoint(ctx context.Context, clientID string) (audit.Checkpoint, error)
	Links(ctx context.Context, clientID string, afterSeq int64, limit int) ([]audit.Link, error)
	SaveCheckpoint(ctx context.Context, clientID string, cp audit.Checkpoint) error
	ClientIDs(ctx context.Context) ([]string, error)
}

type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

type Service struct {
	store     LedgerStore
	uploader  Uploader
	batchSize int
	now       func() time.Time
}

func New(store LedgerStore, uploader Uploader) *Service {
	return &Service{store: store, uploader: uploader, batchSize: defaultBatchSize, now: time.Now}
}

// SetBatchSize caps how many links go into one bundle.
func (s *Service) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

type Bundle struct {
	ClientID   string       `json:"client_id"`
	CreatedAt  time.Time    `json:"created_at"`
	LinkCount  int          `json:"link_count"`
	FromHash   string       `json:"from_hash"`
	Checkpoint string       `json:"checkpoint_hash"`
	Since      time.Time    `json:"since"`
	Until      time.Time    `json:"until"`
	Links      []audit.Link `json:"links"`
}

// ArchiveClient uploads the links written since the last checkpoint and
// advances it. It returns the object key, or "" when there was nothing new.
func (s *Service) ArchiveClient(ctx context.Context, clientID string) (string, error) {
	cp, err := s.store.Checkpoint(ctx, clientID)
	if err != nil {
		return "", err
	}
	links, err := s.store.Links(ctx, clientID, cp.Seq, s.batchSize)
	if err != nil {
		return "", err
	}
	if len(links) == 0 {
		return "", nil
	}
	if err := audit.VerifyFrom(cp.Hash, links); err != nil {
		return "", fmt.Errorf("archiver.ArchiveClient verify chain: %w", err)
	}

	last := links[len(links)-1]
	now := s.now().UTC()
	bundle := Bundle{
		ClientID:   clientID,
		CreatedAt:  now,
		LinkCount:  len(links),
		FromHash:   cp.Hash,
		Checkpoint: last.Hash,
		Since:      links[0].ReceivedAt,
		Until:      last.ReceivedAt,
		Links:      links,
	}
	body, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("archiver.ArchiveClient marshal bundle: %w", err)
	}

	key := fmt.Sprintf("audit/%s/%04d/%02d/%02d/%s.json", clientID, now.Year(), now.Month(), now.Day(), last.Hash)
	if err := s.uploader.Upload(ctx, key, body); err != nil {
		return "", err
	}
	if err := s.store.SaveCheckpoint(ctx, clientID, audit.Checkpoint{Seq: last.Seq, Hash: last.Hash, ArchivedAt: now}); err != nil {
		return "", err
	}
	return key, nil
}

// ArchiveAll runs ArchiveClient for every client and returns the uploaded
// keys. A failing client does not stop the others; the first error is
// returned after all have been tried.
func (s *Service) ArchiveAll(ctx context.Context) ([]string, error) {
	clients, err := s.store.ClientIDs(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	var firstErr error
	for _, id := range clients {
		key, err := s.ArchiveClient(ctx, id)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("archive client %s: %w", id, err)
			}
			continue
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys, firstErr
}
