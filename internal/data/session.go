package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type SessionState string

const (
	SessionIdle      SessionState = "IDLE"
	SessionBaseline  SessionState = "BASELINE"
	SessionPan       SessionState = "PAN"
	SessionReturn    SessionState = "RETURN"
	SessionAnalyzing SessionState = "ANALYZING"
	SessionComplete  SessionState = "COMPLETE"
	SessionError     SessionState = "ERROR"
	SessionTimeout   SessionState = "TIMEOUT"
	SessionCancelled SessionState = "CANCELLED"
)

type Session struct {
	SessionID string
	TenantID  string
	CreatedAt time.Time
	ExpiresAt time.Time
	State     SessionState
	ReturnURL string
	Metadata  json.RawMessage

	Tier1Score       *int
	Tier2Score       *int
	FinalTrustScore  *int
	CorrelationValue *float64
	Reasoning        string

	VideoKey *string
	IMUKey   *string
	FlowKey  *string
}

type SessionModel struct {
	DB DBTX
}

func (m SessionModel) Create(ctx context.Context, s Session) error {
	const q = `
		INSERT INTO sessions (session_id, tenant_id, created_at, expires_at, state, return_url, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := m.DB.ExecContext(ctx, q, s.SessionID, s.TenantID, s.CreatedAt, s.ExpiresAt, s.State, s.ReturnURL, s.Metadata)
	return err
}

func (m SessionModel) Get(ctx context.Context, tenantID, sessionID string) (*Session, error) {
	const q = `
		SELECT session_id, tenant_id, created_at, expires_at, state, return_url, metadata,
		       tier_1_score, tier_2_score, final_trust_score, correlation_value, reasoning,
		       video_key, imu_key, flow_key
		FROM sessions WHERE session_id = $1 AND tenant_id = $2`
	return scanSession(m.DB.QueryRowContext(ctx, q, sessionID, tenantID))
}

// GetAny fetches a session regardless of tenant; the caller must confirm
// the tenant match itself before proceeding.
func (m SessionModel) GetAny(ctx context.Context, sessionID string) (*Session, error) {
	const q = `
		SELECT session_id, tenant_id, created_at, expires_at, state, return_url, metadata,
		       tier_1_score, tier_2_score, final_trust_score, correlation_value, reasoning,
		       video_key, imu_key, flow_key
		FROM sessions WHERE session_id = $1`
	return scanSession(m.DB.QueryRowContext(ctx, q, sessionID))
}

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	var tier1, tier2, final sql.NullInt64
	var corr sql.NullFloat64
	var reasoning sql.NullString
	var videoKey, imuKey, flowKey sql.NullString
	var meta []byte

	err := row.Scan(
		&s.SessionID, &s.TenantID, &s.CreatedAt, &s.ExpiresAt, &s.State, &s.ReturnURL, &meta,
		&tier1, &tier2, &final, &corr, &reasoning,
		&videoKey, &imuKey, &flowKey,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Metadata = meta
	if tier1.Valid {
		v := int(tier1.Int64)
		s.Tier1Score = &v
	}
	if tier2.Valid {
		v := int(tier2.Int64)
		s.Tier2Score = &v
	}
	if final.Valid {
		v := int(final.Int64)
		s.FinalTrustScore = &v
	}
	if corr.Valid {
		s.CorrelationValue = &corr.Float64
	}
	s.Reasoning = reasoning.String
	if videoKey.Valid {
		s.VideoKey = &videoKey.String
	}
	if imuKey.Valid {
		s.IMUKey = &imuKey.String
	}
	if flowKey.Valid {
		s.FlowKey = &flowKey.String
	}
	return &s, nil
}

func (m SessionModel) SetState(ctx context.Context, sessionID string, state SessionState) error {
	const q = `UPDATE sessions SET state = $1 WHERE session_id = $2`
	_, err := m.DB.ExecContext(ctx, q, state, sessionID)
	return err
}

func (m SessionModel) ExtendExpiry(ctx context.Context, sessionID string, newExpiry time.Time) error {
	const q = `UPDATE sessions SET expires_at = $1 WHERE session_id = $2`
	_, err := m.DB.ExecContext(ctx, q, newExpiry, sessionID)
	return err
}

// SetResults is atomic: a session either has all scoring outputs or none,
// matching the invariant that state=COMPLETE implies non-null outputs.
func (m SessionModel) SetResults(ctx context.Context, sessionID string, tier1, tier2, final int, correlation float64, reasoning string) error {
	const q = `
		UPDATE sessions
		SET tier_1_score = $1, tier_2_score = $2, final_trust_score = $3,
		    correlation_value = $4, reasoning = $5, state = $6
		WHERE session_id = $7`
	_, err := m.DB.ExecContext(ctx, q, tier1, tier2, final, correlation, reasoning, SessionComplete, sessionID)
	return err
}

func (m SessionModel) SetArtifactKeys(ctx context.Context, sessionID string, videoKey, imuKey, flowKey *string) error {
	const q = `UPDATE sessions SET video_key = $1, imu_key = $2, flow_key = $3 WHERE session_id = $4`
	_, err := m.DB.ExecContext(ctx, q, videoKey, imuKey, flowKey, sessionID)
	return err
}

func (m SessionModel) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]Session, error) {
	const q = `
		SELECT session_id, tenant_id, created_at, expires_at, state, return_url, metadata,
		       tier_1_score, tier_2_score, final_trust_score, correlation_value, reasoning,
		       video_key, imu_key, flow_key
		FROM sessions WHERE tenant_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := m.DB.QueryContext(ctx, q, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var tier1, tier2, final sql.NullInt64
		var corr sql.NullFloat64
		var reasoning sql.NullString
		var videoKey, imuKey, flowKey sql.NullString
		var meta []byte

		if err := rows.Scan(
			&s.SessionID, &s.TenantID, &s.CreatedAt, &s.ExpiresAt, &s.State, &s.ReturnURL, &meta,
			&tier1, &tier2, &final, &corr, &reasoning,
			&videoKey, &imuKey, &flowKey,
		); err != nil {
			return nil, err
		}
		s.Metadata = meta
		if tier1.Valid {
			v := int(tier1.Int64)
			s.Tier1Score = &v
		}
		if tier2.Valid {
			v := int(tier2.Int64)
			s.Tier2Score = &v
		}
		if final.Valid {
			v := int(final.Int64)
			s.FinalTrustScore = &v
		}
		if corr.Valid {
			s.CorrelationValue = &corr.Float64
		}
		s.Reasoning = reasoning.String
		if videoKey.Valid {
			s.VideoKey = &videoKey.String
		}
		if imuKey.Valid {
			s.IMUKey = &imuKey.String
		}
		if flowKey.Valid {
			s.FlowKey = &flowKey.String
		}
		out = append(out, s)
	}
	return out, nil
}

// ReapExpired moves every non-terminal session whose expiry has passed into
// TIMEOUT, returning the affected session ids so the caller can free any
// in-process Sensor Windows still held for them.
func (m SessionModel) ReapExpired(ctx context.Context, now time.Time) ([]string, error) {
	const q = `
		UPDATE sessions SET state = $1
		WHERE expires_at <= $2 AND state NOT IN ($3, $4, $5, $6)
		RETURNING session_id`
	rows, err := m.DB.QueryContext(ctx, q, SessionTimeout, now, SessionComplete, SessionError, SessionTimeout, SessionCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
