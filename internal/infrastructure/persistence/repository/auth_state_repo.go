package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
	"github.com/garyjia/biller/internal/infrastructure/persistence/sqlite"
)

// AuthStateRepository implements port.AuthStateRepository over the
// auth_state row keyed "owner" and its webauthn_credentials children
type AuthStateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuthStateRepository creates a new auth state repository
func NewAuthStateRepository(db *sql.DB, logger *zap.Logger) port.AuthStateRepository {
	return &AuthStateRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate loads the owner state and its credentials oldest first
func (r *AuthStateRepository) GetOrCreate(ctx context.Context) (*entity.AuthState, error) {
	if err := r.ensure(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT singleton_key, pin_failed_attempts, pin_lock_until, current_challenge,
			challenge_state, challenge_expires_at, created_at, updated_at
		FROM auth_state
		WHERE singleton_key = ?
	`

	var (
		state      entity.AuthState
		lockUntil  sql.NullTime
		expiresAt  sql.NullTime
		challState []byte
	)
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, entity.OwnerKey).Scan(
		&state.SingletonKey,
		&state.PINFailedAttempts,
		&lockUntil,
		&state.CurrentChallenge,
		&challState,
		&expiresAt,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to load auth state", zap.Error(err))
		return nil, fmt.Errorf("failed to load auth state: %w", err)
	}

	state.PINLockUntil = timePtr(lockUntil)
	state.ChallengeExpiresAt = timePtr(expiresAt)
	if len(challState) > 0 {
		state.ChallengeState = challState
	}
	state.CreatedAt = state.CreatedAt.UTC()
	state.UpdatedAt = state.UpdatedAt.UTC()

	creds, err := r.listCredentials(ctx)
	if err != nil {
		return nil, err
	}
	state.WebAuthnCredentials = creds

	return &state, nil
}

// RecordPINFailure increments the counter in one statement so concurrent
// failures are never lost
func (r *AuthStateRepository) RecordPINFailure(ctx context.Context, maxAttempts int, lockUntil time.Time) (int, error) {
	if err := r.ensure(ctx); err != nil {
		return 0, err
	}

	query := `
		UPDATE auth_state SET
			pin_failed_attempts = pin_failed_attempts + 1,
			pin_lock_until = CASE WHEN pin_failed_attempts + 1 >= ? THEN ? ELSE pin_lock_until END,
			updated_at = ?
		WHERE singleton_key = ?
		RETURNING pin_failed_attempts
	`

	var attempts int
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, maxAttempts, lockUntil.UTC(), time.Now().UTC(), entity.OwnerKey).Scan(&attempts)
	if err != nil {
		r.logger.Error("Failed to record PIN failure", zap.Error(err))
		return 0, fmt.Errorf("failed to record pin failure: %w", err)
	}
	return attempts, nil
}

// ResetPINFailures clears the counter and any lock
func (r *AuthStateRepository) ResetPINFailures(ctx context.Context) error {
	return r.exec(ctx, "reset pin failures",
		`UPDATE auth_state SET pin_failed_attempts = 0, pin_lock_until = NULL, updated_at = ? WHERE singleton_key = ?`,
		time.Now().UTC(), entity.OwnerKey)
}

// SetChallenge replaces the pending challenge slot
func (r *AuthStateRepository) SetChallenge(ctx context.Context, challenge string, state []byte, expiresAt time.Time) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	return r.exec(ctx, "set challenge",
		`UPDATE auth_state SET current_challenge = ?, challenge_state = ?, challenge_expires_at = ?, updated_at = ? WHERE singleton_key = ?`,
		challenge, state, expiresAt.UTC(), time.Now().UTC(), entity.OwnerKey)
}

// ClearChallenge empties the pending challenge slot
func (r *AuthStateRepository) ClearChallenge(ctx context.Context) error {
	return r.exec(ctx, "clear challenge",
		`UPDATE auth_state SET current_challenge = '', challenge_state = NULL, challenge_expires_at = NULL, updated_at = ? WHERE singleton_key = ?`,
		time.Now().UTC(), entity.OwnerKey)
}

// SaveCredential inserts a credential, replacing any with the same ID
func (r *AuthStateRepository) SaveCredential(ctx context.Context, cred *entity.WebAuthnCredential) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	transports, err := json.Marshal(nonNilStrings(cred.Transports))
	if err != nil {
		return fmt.Errorf("failed to encode transports: %w", err)
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	deviceType := cred.DeviceType
	if deviceType == "" {
		deviceType = entity.DefaultDeviceType
	}

	query := `
		INSERT OR REPLACE INTO webauthn_credentials (
			credential_id, singleton_key, label, public_key, counter, transports,
			device_type, backed_up, created_at, last_used_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return r.exec(ctx, "save credential", query,
		cred.CredentialID,
		entity.OwnerKey,
		cred.Label,
		cred.PublicKey,
		int64(cred.Counter),
		string(transports),
		deviceType,
		cred.BackedUp,
		cred.CreatedAt.UTC(),
		nullTime(cred.LastUsedAt),
	)
}

// UpdateCredentialUsage stores the authenticator counter after a login
func (r *AuthStateRepository) UpdateCredentialUsage(ctx context.Context, credentialID string, counter uint32, usedAt time.Time) error {
	return r.execOne(ctx, "update credential usage",
		`UPDATE webauthn_credentials SET counter = ?, last_used_at = ? WHERE credential_id = ? AND singleton_key = ?`,
		int64(counter), usedAt.UTC(), credentialID, entity.OwnerKey)
}

// UpdateCredentialLabel renames a credential
func (r *AuthStateRepository) UpdateCredentialLabel(ctx context.Context, credentialID, label string) error {
	return r.execOne(ctx, "update credential label",
		`UPDATE webauthn_credentials SET label = ? WHERE credential_id = ? AND singleton_key = ?`,
		label, credentialID, entity.OwnerKey)
}

// DeleteCredential removes a credential
func (r *AuthStateRepository) DeleteCredential(ctx context.Context, credentialID string) error {
	return r.execOne(ctx, "delete credential",
		`DELETE FROM webauthn_credentials WHERE credential_id = ? AND singleton_key = ?`,
		credentialID, entity.OwnerKey)
}

func (r *AuthStateRepository) ensure(ctx context.Context) error {
	now := time.Now().UTC()
	_, err := r.getExecutor(ctx).ExecContext(ctx,
		`INSERT OR IGNORE INTO auth_state (singleton_key, created_at, updated_at) VALUES (?, ?, ?)`,
		entity.OwnerKey, now, now)
	if err != nil {
		r.logger.Error("Failed to create auth state", zap.Error(err))
		return fmt.Errorf("failed to create auth state: %w", err)
	}
	return nil
}

func (r *AuthStateRepository) listCredentials(ctx context.Context) ([]entity.WebAuthnCredential, error) {
	query := `
		SELECT credential_id, label, public_key, counter, transports, device_type,
			backed_up, created_at, last_used_at
		FROM webauthn_credentials
		WHERE singleton_key = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, entity.OwnerKey)
	if err != nil {
		r.logger.Error("Failed to list credentials", zap.Error(err))
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	creds := make([]entity.WebAuthnCredential, 0)
	for rows.Next() {
		var (
			cred       entity.WebAuthnCredential
			counter    int64
			transports string
			lastUsedAt sql.NullTime
		)
		if err := rows.Scan(
			&cred.CredentialID,
			&cred.Label,
			&cred.PublicKey,
			&counter,
			&transports,
			&cred.DeviceType,
			&cred.BackedUp,
			&cred.CreatedAt,
			&lastUsedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		if err := json.Unmarshal([]byte(transports), &cred.Transports); err != nil {
			return nil, fmt.Errorf("failed to decode transports of %s: %w", cred.CredentialID, err)
		}
		cred.Counter = uint32(counter)
		cred.CreatedAt = cred.CreatedAt.UTC()
		cred.LastUsedAt = timePtr(lastUsedAt)
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

func (r *AuthStateRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

// execOne is exec that reports ErrNotFound when no row matched
func (r *AuthStateRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return requireAffected(result, "credential")
}

func (r *AuthStateRepository) getExecutor(ctx context.Context) sqlite.Execer {
	return sqlite.Executor(ctx, r.db)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
