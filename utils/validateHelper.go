package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"gorm.io/gorm"
)

// ValidateResourceId checks that id exists in T's table.
func ValidateResourceId[T any](ctx context.Context, resource string, id int) error {
	return ValidateResourceIdTx[T](config.GetDB().WithContext(ctx), resource, id)
}

func ValidateResourceIdTx[T any](tx *gorm.DB, resource string, id int) error {
	count, err := ResourceCountWhere[T](tx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return NewNotFound(resource, id)
	}
	return nil
}

// ValidateUnique fails when another row already holds value in column.
func ValidateUnique[T any](ctx context.Context, column string, value interface{}, exceptId int) error {
	db := config.GetDB().WithContext(ctx)
	var count int64
	var err error
	if exceptId == 0 {
		count, err = ResourceCountWhere[T](db, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](db, column+" = ? AND NOT id = ?", value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return NewInvalidInput(column, "is already taken")
	}
	return nil
}

func ResourceCountWhere[T any](tx *gorm.DB, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	if err := tx.Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
