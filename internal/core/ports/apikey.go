package ports

import (
	"context"

	"github.com/atvirokodosprendimai/stripekeys/internal/core/domain"
)

type APIKeyRepository interface {
	// GetOrCreate looks the key up by secret and inserts it only when absent.
	GetOrCreate(ctx context.Context, key domain.APIKey) (domain.APIKey, bool, error)
	Create(ctx context.Context, key domain.APIKey) (domain.APIKey, error)
	FindByID(ctx context.Context, id string) (domain.APIKey, error)
	FindBySecret(ctx context.Context, secret string) (domain.APIKey, error)
	List(ctx context.Context, filter domain.APIKeyFilter) ([]domain.APIKey, error)
	Delete(ctx context.Context, id string) (bool, error)
}
