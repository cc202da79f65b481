package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
	"github.com/garyjia/biller/internal/infrastructure/persistence/sqlite"
)

const clientColumns = `id, name, company, address, city, country, phone, email, vat_id, notes, created_at, updated_at`

// ClientRepository implements port.ClientRepository
type ClientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *sql.DB, logger *zap.Logger) port.ClientRepository {
	return &ClientRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new client record
func (r *ClientRepository) Create(ctx context.Context, client *entity.Client) error {
	now := time.Now().UTC()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	query := `
		INSERT INTO clients (name, company, address, city, country, phone, email, vat_id, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		client.Name,
		client.Company,
		client.Address,
		client.City,
		client.Country,
		client.Phone,
		client.Email,
		client.VatID,
		client.Notes,
		client.CreatedAt,
		client.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create client", zap.String("name", client.Name), zap.Error(err))
		return fmt.Errorf("failed to create client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	client.ID = id
	return nil
}

// GetByID retrieves a client by ID
func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*entity.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = ?`

	client, err := scanClient(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get client by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

// Update overwrites every editable field of a client
func (r *ClientRepository) Update(ctx context.Context, client *entity.Client) error {
	client.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE clients SET
			name = ?, company = ?, address = ?, city = ?, country = ?,
			phone = ?, email = ?, vat_id = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		client.Name,
		client.Company,
		client.Address,
		client.City,
		client.Country,
		client.Phone,
		client.Email,
		client.VatID,
		client.Notes,
		client.UpdatedAt,
		client.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update client", zap.Int64("id", client.ID), zap.Error(err))
		return fmt.Errorf("failed to update client: %w", err)
	}
	return requireAffected(result, "client")
}

// Delete removes a client
func (r *ClientRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete client", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return requireAffected(result, "client")
}

// List returns all clients sorted by name
func (r *ClientRepository) List(ctx context.Context) ([]*entity.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY name ASC, id ASC`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list clients", zap.Error(err))
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]*entity.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *ClientRepository) getExecutor(ctx context.Context) sqlite.Execer {
	return sqlite.Executor(ctx, r.db)
}

func scanClient(row rowScanner) (*entity.Client, error) {
	var client entity.Client
	if err := row.Scan(
		&client.ID,
		&client.Name,
		&client.Company,
		&client.Address,
		&client.City,
		&client.Country,
		&client.Phone,
		&client.Email,
		&client.VatID,
		&client.Notes,
		&client.CreatedAt,
		&client.UpdatedAt,
	); err != nil {
		return nil, err
	}
	client.CreatedAt = client.CreatedAt.UTC()
	client.UpdatedAt = client.UpdatedAt.UTC()
	return &client, nil
}
