package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "tombstone/internal/core/context"
	"tombstone/internal/core/id"
	"tombstone/internal/domain/lifecycle"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which entries are compressed.
const DefaultCompressThreshold = 4 * 1024

// AuditEntry is one lifecycle transition in sys_audit.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	Actor             string          `db:"actor"`
	TraceID           string          `db:"trace_id"`
	Root              bool            `db:"root"`
	Instant           *time.Time      `db:"instant"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditTrail writes every lifecycle transition to sys_audit inside the
// transaction that performs it.
type AuditTrail struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ lifecycle.Observer = (*AuditTrail)(nil)

// NewAuditTrail creates the audit observer. threshold <= 0 uses the default.
func NewAuditTrail(txManager *TxManager, threshold int) (*AuditTrail, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditTrail{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// Transitioned implements lifecycle.Observer.
func (a *AuditTrail) Transitioned(ctx context.Context, t lifecycle.Transition) error {
	changes, err := json.Marshal(t.Record.Fields)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}
	return a.Log(ctx, AuditEntry{
		EntityType: t.Record.Type,
		EntityID:   t.Record.ID,
		Action:     string(t.Operation),
		Root:       t.Root,
		Instant:    t.Instant,
		Changes:    changes,
	})
}

// Log records an audit entry.
func (a *AuditTrail) Log(ctx context.Context, entry AuditEntry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Actor == "" {
		entry.Actor = appctx.Actor(ctx)
	}
	if entry.TraceID == "" {
		entry.TraceID = appctx.TraceID(ctx)
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > a.compressThreshold {
		entry.ChangesCompressed = a.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	_, err := a.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, actor, trace_id, root, instant,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.Actor, entry.TraceID,
		entry.Root, entry.Instant, entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest entries for one record, decompressed.
func (a *AuditTrail) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := pgxscan.Select(ctx, a.txManager.GetQuerier(ctx), &entries, `
		SELECT id, entity_type, entity_id, action, actor, trace_id, root, instant,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}

	for i := range entries {
		if err := a.inflate(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (a *AuditTrail) inflate(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := a.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress audit changes: %w", err)
	}
	e.Changes = raw
	e.ChangesCompressed = nil
	return nil
}
