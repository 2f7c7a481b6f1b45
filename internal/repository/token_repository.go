package repository

import (
	"context"
	"errors"

	"github.com/lshigami/iqtester/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TokenRepository interface {
	// Get returns the stored value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var token model.StoredToken
	err := r.db.WithContext(ctx).Where("name = ?", key).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token.Value, true, nil
}

func (r *tokenRepository) Save(ctx context.Context, key, value string) error {
	token := model.StoredToken{Name: key, Value: value}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&token).Error
}

func (r *tokenRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("name IN ?", keys).Delete(&model.StoredToken{}).Error
}
