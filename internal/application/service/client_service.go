package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
	"github.com/garyjia/biller/pkg/utils"
)

// ClientService manages saved clients
type ClientService interface {
	List(ctx context.Context) ([]*entity.Client, error)
	Get(ctx context.Context, id int64) (*entity.Client, error)
	Create(ctx context.Context, client *entity.Client) (*entity.Client, error)
	Update(ctx context.Context, id int64, client *entity.Client) (*entity.Client, error)
	Delete(ctx context.Context, id int64) error
}

type clientServiceImpl struct {
	clientRepo port.ClientRepository
	logger     Logger
}

// NewClientService creates a new ClientService
func NewClientService(clientRepo port.ClientRepository, logger Logger) ClientService {
	return &clientServiceImpl{
		clientRepo: clientRepo,
		logger:     logger,
	}
}

func (s *clientServiceImpl) List(ctx context.Context) ([]*entity.Client, error) {
	return s.clientRepo.List(ctx)
}

func (s *clientServiceImpl) Get(ctx context.Context, id int64) (*entity.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("client %d: %w", id, entity.ErrNotFound)
	}
	return client, nil
}

func (s *clientServiceImpl) Create(ctx context.Context, client *entity.Client) (*entity.Client, error) {
	if err := validateClient(client); err != nil {
		return nil, err
	}
	client.ID = 0
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}
	s.logger.Info("Client created", "client_id", client.ID, "name", client.Name)
	return client, nil
}

func (s *clientServiceImpl) Update(ctx context.Context, id int64, client *entity.Client) (*entity.Client, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateClient(client); err != nil {
		return nil, err
	}

	client.ID = existing.ID
	client.CreatedAt = existing.CreatedAt
	if err := s.clientRepo.Update(ctx, client); err != nil {
		return nil, err
	}
	s.logger.Info("Client updated", "client_id", id)
	return client, nil
}

func (s *clientServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := s.clientRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Client deleted", "client_id", id)
	return nil
}

func validateClient(c *entity.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.Name == "" {
		return entity.NewValidationError("Client name is required")
	}
	if c.Email != "" && utils.ValidateEmail(c.Email) != nil {
		return entity.NewValidationError("Client email is not a valid address")
	}
	return nil
}
