package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atvirokodosprendimai/stripekeys/internal/core/domain"
	"github.com/atvirokodosprendimai/stripekeys/internal/core/ports"
)

const (
	LookupCreated  = "created"
	LookupExisting = "existing"

	defaultListLimit = 100
	maxListLimit     = 1000
)

type APIKeyService struct {
	repo    ports.APIKeyRepository
	metrics ports.APIKeyMetrics
	log     zerolog.Logger
}

func NewAPIKeyService(repo ports.APIKeyRepository, metrics ports.APIKeyMetrics, log zerolog.Logger) *APIKeyService {
	return &APIKeyService{
		repo:    repo,
		metrics: metrics,
		log:     log.With().Str("component", "apikey_service").Logger(),
	}
}

// GetOrCreateByAPIKey returns the record stored for secret, inserting it with
// the type and livemode derived from its prefix if it does not exist yet.
func (s *APIKeyService) GetOrCreateByAPIKey(ctx context.Context, secret string) (domain.APIKey, bool, error) {
	return s.getOrCreate(ctx, secret, "")
}

// GetOrCreateWithName behaves like GetOrCreateByAPIKey; name is stored only
// when the record is inserted.
func (s *APIKeyService) GetOrCreateWithName(ctx context.Context, secret, name string) (domain.APIKey, bool, error) {
	return s.getOrCreate(ctx, secret, name)
}

func (s *APIKeyService) getOrCreate(ctx context.Context, secret, name string) (domain.APIKey, bool, error) {
	key, err := s.newKey(secret, name)
	if err != nil {
		return domain.APIKey{}, false, err
	}

	stored, created, err := s.repo.GetOrCreate(ctx, key)
	if err != nil {
		return domain.APIKey{}, false, fmt.Errorf("get or create api key: %w", err)
	}

	if created {
		s.metrics.RecordLookup(LookupCreated)
		s.metrics.RecordCreated(stored.Type, stored.Livemode)
		s.log.Info().
			Str("api_key_id", stored.ID).
			Str("type", string(stored.Type)).
			Bool("livemode", stored.Livemode).
			Str("secret", stored.SecretRedacted()).
			Msg("api key created")
	} else {
		s.metrics.RecordLookup(LookupExisting)
	}
	return stored, created, nil
}

// Create stores a new record for secret. A duplicate secret surfaces as the
// storage layer's uniqueness error.
func (s *APIKeyService) Create(ctx context.Context, secret, name string) (domain.APIKey, error) {
	key, err := s.newKey(secret, name)
	if err != nil {
		return domain.APIKey{}, err
	}

	stored, err := s.repo.Create(ctx, key)
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("create api key: %w", err)
	}

	s.metrics.RecordCreated(stored.Type, stored.Livemode)
	s.log.Info().
		Str("api_key_id", stored.ID).
		Str("secret", stored.SecretRedacted()).
		Msg("api key created")
	return stored, nil
}

func (s *APIKeyService) Get(ctx context.Context, id string) (domain.APIKey, error) {
	if err := validateID(id); err != nil {
		return domain.APIKey{}, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *APIKeyService) List(ctx context.Context, filter domain.APIKeyFilter) ([]domain.APIKey, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	filter.Limit = ListLimit(filter.Limit)
	return s.repo.List(ctx, filter)
}

// ListLimit returns the page size List uses for a requested limit.
func ListLimit(requested int) int {
	switch {
	case requested <= 0:
		return defaultListLimit
	case requested > maxListLimit:
		return maxListLimit
	default:
		return requested
	}
}

func (s *APIKeyService) Delete(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info().Str("api_key_id", id).Msg("api key deleted")
	}
	return deleted, nil
}

type ImportEntry struct {
	Secret string `yaml:"secret"`
	Name   string `yaml:"name"`
}

type ImportResult struct {
	Key     domain.APIKey
	Created bool
}

// ImportKeys runs get-or-create for every entry and stops at the first error.
// Names only apply to records created by the import.
func (s *APIKeyService) ImportKeys(ctx context.Context, entries []ImportEntry) ([]ImportResult, error) {
	results := make([]ImportResult, 0, len(entries))
	for i, entry := range entries {
		key, created, err := s.getOrCreate(ctx, strings.TrimSpace(entry.Secret), entry.Name)
		if err != nil {
			return results, fmt.Errorf("import entry %d: %w", i, err)
		}
		results = append(results, ImportResult{Key: key, Created: created})
	}
	return results, nil
}

func (s *APIKeyService) newKey(secret, name string) (domain.APIKey, error) {
	keyType, livemode, err := domain.ParseAPIKeyDetails(secret)
	if err != nil {
		s.metrics.RecordRejected("format")
		return domain.APIKey{}, err
	}

	key := domain.APIKey{
		ID:       domain.GenerateAPIKeyID(),
		Type:     keyType,
		Name:     strings.TrimSpace(name),
		Secret:   secret,
		Livemode: livemode,
	}
	if err := key.Validate(); err != nil {
		reason := "field"
		if errors.Is(err, domain.ErrInvalidAPIKey) {
			reason = "format"
		}
		s.metrics.RecordRejected(reason)
		return domain.APIKey{}, err
	}
	return key, nil
}

func validateID(id string) error {
	if !strings.HasPrefix(id, domain.APIKeyIDPrefix) || len(id) > 255 {
		return domain.ErrNotFound
	}
	return nil
}
