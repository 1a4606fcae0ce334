package conductor

import (
	"context"
	"database/sql"
	"errors"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

// SQLStore is a database/sql-backed StateStore, supporting both Postgres
// and SQLite via standard drivers.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open *sql.DB as a StateStore.
func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const conductorSchema = `
CREATE TABLE IF NOT EXISTS conductor_states (
	request_id TEXT PRIMARY KEY,
	phase TEXT NOT NULL,
	locked BOOLEAN NOT NULL DEFAULT FALSE,
	awaiting_human BOOLEAN NOT NULL DEFAULT FALSE,
	last_agent TEXT
);
`

// Init creates the conductor_states table if it does not already exist.
func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, conductorSchema)
	return err
}

func (s *SQLStore) Get(ctx context.Context, requestID string) (*contracts.ConductorState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT request_id, phase, locked, awaiting_human, last_agent FROM conductor_states WHERE request_id = $1`,
		requestID)

	var state contracts.ConductorState
	var phase string
	var lastAgent sql.NullString
	if err := row.Scan(&state.RequestID, &phase, &state.Locked, &state.AwaitingHuman, &lastAgent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contracts.NewError(contracts.KindProtocol, "conductor.SQLStore.Get", "no conductor state for this request")
		}
		return nil, contracts.WrapError(contracts.KindDependency, "conductor.SQLStore.Get", "scan", err)
	}
	state.Phase = contracts.Phase(phase)
	if lastAgent.Valid {
		state.LastAgent = lastAgent.String
	}
	return &state, nil
}

func (s *SQLStore) Create(ctx context.Context, state *contracts.ConductorState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conductor_states (request_id, phase, locked, awaiting_human, last_agent) VALUES ($1,$2,$3,$4,$5)`,
		state.RequestID, string(state.Phase), state.Locked, state.AwaitingHuman, state.LastAgent)
	if err != nil {
		return contracts.WrapError(contracts.KindDependency, "conductor.SQLStore.Create", "insert", err)
	}
	return nil
}

// Save persists the new state in one UPDATE of conductor_states, outside
// any transaction; the Conductor's conductor_transition event is appended
// afterwards as a separate write.
func (s *SQLStore) Save(ctx context.Context, state *contracts.ConductorState) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conductor_states SET phase = $1, locked = $2, awaiting_human = $3, last_agent = $4 WHERE request_id = $5`,
		string(state.Phase), state.Locked, state.AwaitingHuman, state.LastAgent, state.RequestID)
	if err != nil {
		return contracts.WrapError(contracts.KindDependency, "conductor.SQLStore.Save", "update", err)
	}
	return nil
}
