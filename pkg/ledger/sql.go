package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
)

// SQL implements Ledger using database/sql, supporting both Postgres
// (lib/pq) and SQLite (modernc.org/sqlite) via standard drivers.
type SQL struct {
	db *sql.DB
}

// NewSQL wraps an open *sql.DB as a Ledger.
func NewSQL(db *sql.DB) *SQL { return &SQL{db: db} }

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	producer TEXT NOT NULL,
	type TEXT NOT NULL,
	content BLOB NOT NULL,
	content_hash TEXT NOT NULL,
	input_hashes TEXT,
	status TEXT NOT NULL,
	approved_by TEXT,
	approved_at TIMESTAMP,
	version INTEGER NOT NULL,
	schema_version TEXT NOT NULL,
	producer_request_hash TEXT,
	created_at TIMESTAMP NOT NULL
);
`

// Init creates the artifacts table if it does not already exist.
func (s *SQL) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQL) PutDraft(ctx context.Context, requestID string, typ contracts.ArtifactType, content []byte, inputHashes map[string]string, producer, schemaVersion, producerRequestHash string) (*contracts.Artifact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.PutDraft", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var pending int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM artifacts WHERE request_id = $1 AND type = $2 AND status = $3`,
		requestID, string(typ), string(contracts.StatusAwaitingApproval),
	).Scan(&pending)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.PutDraft", "check pending", err)
	}
	if pending > 0 {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.PutDraft",
			"an artifact of this type is already awaiting_approval for this request")
	}

	var maxVersion sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM artifacts WHERE request_id = $1 AND type = $2`,
		requestID, string(typ),
	).Scan(&maxVersion); err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.PutDraft", "max version", err)
	}
	version := 1
	if maxVersion.Valid {
		version = int(maxVersion.Int64) + 1
	}

	inputHashesJSON, err := hasher.JCSString(inputHashes)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindProtocol, "ledger.PutDraft", "encode input_hashes", err)
	}

	art := &contracts.Artifact{
		ID:                  uuid.NewString(),
		RequestID:           requestID,
		Producer:            producer,
		Type:                typ,
		Content:             content,
		ContentHash:         hasher.Hash(content),
		InputHashes:         inputHashes,
		Status:              contracts.StatusAwaitingApproval,
		Version:             version,
		SchemaVersion:       schemaVersion,
		ProducerRequestHash: producerRequestHash,
		CreatedAt:           time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO artifacts (id, request_id, producer, type, content, content_hash, input_hashes,
			status, version, schema_version, producer_request_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		art.ID, art.RequestID, art.Producer, string(art.Type), art.Content, art.ContentHash,
		inputHashesJSON, string(art.Status), art.Version, art.SchemaVersion, art.ProducerRequestHash, art.CreatedAt,
	)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.PutDraft", "insert", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.PutDraft", "commit", err)
	}
	return art, nil
}

func (s *SQL) Approve(ctx context.Context, artifactID, approver string) (*contracts.Artifact, error) {
	art, err := s.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if art.Status == contracts.StatusApproved {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.Approve", "artifact is already approved")
	}
	if art.Status != contracts.StatusAwaitingApproval {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.Approve", "artifact is not awaiting_approval")
	}
	if hasher.Hash(art.Content) != art.ContentHash {
		return nil, contracts.NewError(contracts.KindIntegrity, "ledger.Approve",
			"recomputed content hash does not match stored content_hash")
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET status = $1, approved_by = $2, approved_at = $3
		 WHERE id = $4 AND status = $5`,
		string(contracts.StatusApproved), approver, now, artifactID, string(contracts.StatusAwaitingApproval),
	)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.Approve", "update", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.Approve", "concurrent status change, retry")
	}

	art.Status = contracts.StatusApproved
	art.ApprovedBy = approver
	art.ApprovedAt = &now
	return art, nil
}

func (s *SQL) Reject(ctx context.Context, artifactID, reason string) (*contracts.Artifact, error) {
	art, err := s.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if art.Status == contracts.StatusApproved {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.Reject", "cannot reject an approved artifact")
	}
	_, err = s.db.ExecContext(ctx, `UPDATE artifacts SET status = $1 WHERE id = $2`,
		string(contracts.StatusRejected), artifactID)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.Reject", "update", err)
	}
	art.Status = contracts.StatusRejected
	return art, nil
}

func (s *SQL) CurrentApproved(ctx context.Context, requestID string, typ contracts.ArtifactType) (*contracts.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM artifacts WHERE request_id = $1 AND type = $2 AND status = $3 LIMIT 1`,
		requestID, string(typ), string(contracts.StatusApproved))
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.CurrentApproved", "scan", err)
	}
	return s.Get(ctx, id)
}

func (s *SQL) FindByProducerRequestHash(ctx context.Context, requestID string, hash string) (*contracts.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM artifacts WHERE request_id = $1 AND producer_request_hash = $2
		 AND status IN ($3, $4) LIMIT 1`,
		requestID, hash, string(contracts.StatusAwaitingApproval), string(contracts.StatusApproved))
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.FindByProducerRequestHash", "scan", err)
	}
	return s.Get(ctx, id)
}

func (s *SQL) VerifyChain(ctx context.Context, artifactID string) error {
	art, err := s.Get(ctx, artifactID)
	if err != nil {
		return err
	}
	for role, wantHash := range art.InputHashes {
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM artifacts WHERE request_id = $1 AND status = $2 AND content_hash = $3`,
			art.RequestID, string(contracts.StatusApproved), wantHash,
		).Scan(&count)
		if err != nil {
			return contracts.WrapError(contracts.KindDependency, "ledger.VerifyChain", "scan", err)
		}
		if count == 0 {
			return contracts.NewError(contracts.KindIntegrity, "ledger.VerifyChain",
				"no currently-approved artifact matches input_hashes role "+role)
		}
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, artifactID string) (*contracts.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, request_id, producer, type, content, content_hash, input_hashes,
			status, approved_by, approved_at, version, schema_version, producer_request_hash, created_at
		FROM artifacts WHERE id = $1`, artifactID)

	var art contracts.Artifact
	var typ, status string
	var inputHashesJSON sql.NullString
	var approvedBy sql.NullString
	var approvedAt sql.NullTime

	err := row.Scan(&art.ID, &art.RequestID, &art.Producer, &typ, &art.Content, &art.ContentHash,
		&inputHashesJSON, &status, &approvedBy, &approvedAt, &art.Version, &art.SchemaVersion,
		&art.ProducerRequestHash, &art.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contracts.NewError(contracts.KindProtocol, "ledger.Get", "artifact not found")
		}
		return nil, contracts.WrapError(contracts.KindDependency, "ledger.Get", "scan", err)
	}

	art.Type = contracts.ArtifactType(typ)
	art.Status = contracts.ArtifactStatus(status)
	if approvedBy.Valid {
		art.ApprovedBy = approvedBy.String
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		art.ApprovedAt = &t
	}
	if inputHashesJSON.Valid && inputHashesJSON.String != "" {
		m := map[string]string{}
		if err := decodeJSON(inputHashesJSON.String, &m); err == nil {
			art.InputHashes = m
		}
	}
	return &art, nil
}
