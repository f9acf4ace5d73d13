package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"zakupki/ingest-service/internal/model"
)

// ContractStore persists accepted notices and exposes the read interface
// consumed by the attachment-download stage. Duplicate inserts by natural
// key (archive_name, purchase_number) are silent no-ops.
type ContractStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewContractStore constructs a ContractStore.
func NewContractStore(pool *pgxpool.Pool, log zerolog.Logger) *ContractStore {
	return &ContractStore{pool: pool, log: log}
}

// InsertArchiveEntry records one container archive and returns its id.
// When archiveName was inserted before, the existing id is returned and
// inserted is false.
func (s *ContractStore) InsertArchiveEntry(ctx context.Context, fileName, archiveName string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO archive_entries (file_name, archive_name) VALUES ($1, $2)
		 ON CONFLICT (archive_name) DO NOTHING
		 RETURNING id`,
		fileName, archiveName,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, &PersistenceError{Op: "insert archive entry", Err: err}
	}

	// Conflict path: fetch the existing row's id.
	err = s.pool.QueryRow(ctx,
		`SELECT id FROM archive_entries WHERE archive_name = $1`,
		archiveName,
	).Scan(&id)
	if err != nil {
		return 0, false, &PersistenceError{Op: "lookup archive entry", Err: err}
	}

	s.log.Debug().Str("archive", archiveName).Int64("id", id).Msg("archive entry already present")
	return id, false, nil
}

// InsertNotice persists one accepted notice inside a transaction. A
// duplicate purchase_number rolls back as a no-op and returns
// inserted == false; it is not an error.
func (s *ContractStore) InsertNotice(ctx context.Context, archiveEntryID int64, n *model.Notice) (bool, error) {
	links, err := json.Marshal(n.DocumentationLinks)
	if err != nil {
		return false, &PersistenceError{Op: "marshal links", Err: err}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, &PersistenceError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO contract_data (
		    archive_entry_id, purchase_number, purchase_url, etp_name,
		    start_date, end_date, okpd2_code, okpd2_name,
		    purchase_object_info, customer_short_name, customer_inn,
		    customer_kpp, customer_address, documentation_links
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (purchase_number) DO NOTHING`,
		archiveEntryID, n.PurchaseNumber, n.PurchaseURL, n.ETPName,
		n.StartDate, n.EndDate, n.OKPD2Code, n.OKPD2Name,
		n.PurchaseObjectInfo, n.CustomerShortName, n.CustomerINN,
		n.CustomerKPP, n.CustomerAddress, links,
	)
	if err != nil {
		return false, &PersistenceError{Op: "insert notice", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, &PersistenceError{Op: "commit", Err: err}
	}

	if tag.RowsAffected() == 0 {
		s.log.Debug().Str("purchase_number", n.PurchaseNumber).Msg("duplicate purchase number, insert skipped")
		return false, nil
	}

	return true, nil
}

// PendingAttachmentLinks returns every persisted notice that carries
// documentation links, for the downstream attachment-download stage.
func (s *ContractStore) PendingAttachmentLinks(ctx context.Context) ([]model.AttachmentBatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, documentation_links
		 FROM contract_data
		 WHERE jsonb_array_length(documentation_links) > 0
		 ORDER BY id`,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "query pending links", Err: err}
	}
	defer rows.Close()

	var batches []model.AttachmentBatch
	for rows.Next() {
		var (
			b   model.AttachmentBatch
			raw []byte
		)
		if err := rows.Scan(&b.NoticeID, &raw); err != nil {
			return nil, &PersistenceError{Op: "scan pending links", Err: err}
		}
		if err := json.Unmarshal(raw, &b.Links); err != nil {
			return nil, &PersistenceError{Op: "decode pending links", Err: err}
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate pending links", Err: err}
	}

	return batches, nil
}
