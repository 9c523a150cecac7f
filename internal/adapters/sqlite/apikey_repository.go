package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/stripekeys/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/stripekeys/internal/core/domain"
)

type apiKeyModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Type      string    `gorm:"column:type;not null"`
	Name      string    `gorm:"column:name;not null"`
	Secret    string    `gorm:"column:secret;not null;uniqueIndex:idx_api_keys_secret"`
	Livemode  bool      `gorm:"column:livemode;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (apiKeyModel) TableName() string {
	return "api_keys"
}

type APIKeyRepository struct {
	db *gormsqlite.DB
}

func NewAPIKeyRepository(db *gormsqlite.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// GetOrCreate returns the row stored for key.Secret. Type, Name and Livemode
// of key are only used when the row has to be inserted.
func (r *APIKeyRepository) GetOrCreate(ctx context.Context, key domain.APIKey) (domain.APIKey, bool, error) {
	var (
		model   apiKeyModel
		created bool
	)
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		err := tx.Where("secret = ?", key.Secret).First(&model).Error
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("load api key: %w", err)
		}

		model = toModel(key, time.Now().UTC())
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert api key: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		// Another process may have inserted the same secret between our read
		// and write; the unique index rejects ours, so return theirs.
		if existing, findErr := r.FindBySecret(ctx, key.Secret); findErr == nil {
			return existing, false, nil
		}
		return domain.APIKey{}, false, err
	}
	return toAPIKeyDomain(model), created, nil
}

func (r *APIKeyRepository) Create(ctx context.Context, key domain.APIKey) (domain.APIKey, error) {
	model := toModel(key, time.Now().UTC())
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("insert api key: %w", err)
	}
	return toAPIKeyDomain(model), nil
}

func (r *APIKeyRepository) FindByID(ctx context.Context, id string) (domain.APIKey, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *APIKeyRepository) FindBySecret(ctx context.Context, secret string) (domain.APIKey, error) {
	return r.findOne(ctx, "secret = ?", secret)
}

func (r *APIKeyRepository) findOne(ctx context.Context, query string, arg string) (domain.APIKey, error) {
	var model apiKeyModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where(query, arg).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.APIKey{}, domain.ErrNotFound
		}
		return domain.APIKey{}, fmt.Errorf("find api key: %w", err)
	}
	return toAPIKeyDomain(model), nil
}

func (r *APIKeyRepository) List(ctx context.Context, filter domain.APIKeyFilter) ([]domain.APIKey, error) {
	var rows []apiKeyModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&apiKeyModel{})
		if filter.Type != "" {
			query = query.Where("type = ?", string(filter.Type))
		}
		if filter.Livemode != nil {
			query = query.Where("livemode = ?", *filter.Livemode)
		}
		if filter.AfterID != "" {
			query = query.Where("id > ?", filter.AfterID)
		}
		return query.Order("id ASC").Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	keys := make([]domain.APIKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, toAPIKeyDomain(row))
	}
	return keys, nil
}

func (r *APIKeyRepository) Delete(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("id = ?", id).Delete(&apiKeyModel{})
		if res.Error != nil {
			return fmt.Errorf("delete api key: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func toModel(key domain.APIKey, now time.Time) apiKeyModel {
	return apiKeyModel{
		ID:        key.ID,
		Type:      string(key.Type),
		Name:      key.Name,
		Secret:    key.Secret,
		Livemode:  key.Livemode,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func toAPIKeyDomain(model apiKeyModel) domain.APIKey {
	return domain.APIKey{
		ID:        model.ID,
		Type:      domain.APIKeyType(model.Type),
		Name:      model.Name,
		Secret:    model.Secret,
		Livemode:  model.Livemode,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
