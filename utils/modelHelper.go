package utils

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"gorm.io/gorm"
)

/* DB fetching */

// FetchModel loads one row by id, returning a NotFoundError named after resource.
func FetchModel[T any](ctx context.Context, resource string, id int, associations ...string) (*T, error) {
	return FetchModelTx[T](config.GetDB().WithContext(ctx), resource, id, associations...)
}

// FetchModelTx is FetchModel inside an open transaction.
func FetchModelTx[T any](tx *gorm.DB, resource string, id int, associations ...string) (*T, error) {
	dbCtx := tx
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound(resource, id)
		}
		return nil, err
	}
	return &result, nil
}

// FetchAllModels returns every row of T ordered by id.
func FetchAllModels[T any](ctx context.Context, associations ...string) ([]*T, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
