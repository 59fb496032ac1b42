package utils

import (
	"context"
	"errors"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"gorm.io/gorm"
)

func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	var model T
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	for _, association := range associations {
		dbCtx = dbCtx.Preload(association)
	}
	if err := dbCtx.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &model, nil
}

func FetchAllModels[T any](ctx context.Context, associations ...string) ([]*T, error) {
	var model T
	var models []*T
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	for _, association := range associations {
		dbCtx = dbCtx.Preload(association)
	}
	if err := dbCtx.Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}
