package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"gorm.io/gorm"
)

type MaterialCategory struct {
	ID        int                  `gorm:"primary_key" json:"id"`
	Name      string               `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Kind      MaterialCategoryKind `gorm:"type:enum('real','process');not null" json:"kind"`
	Stage     *StageKind           `gorm:"type:enum('trim','cut','hide_cut');uniqueIndex" json:"stage"`
	Role      *MaterialRole        `gorm:"type:enum('hide','lining','hardware')" json:"role"`
	CreatedAt time.Time            `gorm:"autoCreateTime" json:"created_at"`
}

type NewMaterialCategory struct {
	Name  string               `json:"name" binding:"required"`
	Kind  MaterialCategoryKind `json:"kind" binding:"required"`
	Stage *StageKind           `json:"stage"`
	Role  *MaterialRole        `json:"role"`
}

// only process categories name a stage, and only a producing one;
// only real categories carry a role
func (input *NewMaterialCategory) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return utils.NewInvalidInput("name", "is required")
	}
	if !input.Kind.IsValid() {
		return utils.NewInvalidInput("kind", "must be real or process")
	}
	if input.Kind == MaterialCategoryProcess {
		if input.Stage == nil || !input.Stage.ProducesMaterial() {
			return utils.NewInvalidInput("stage", "must be trim, cut or hide_cut for a process category")
		}
		if input.Role != nil {
			return utils.NewInvalidInput("role", "must be empty for a process category")
		}
	} else if input.Stage != nil {
		return utils.NewInvalidInput("stage", "must be empty for a real category")
	}
	if input.Role != nil && !input.Role.IsValid() {
		return utils.NewInvalidInput("role", "must be hide, lining or hardware")
	}
	return nil
}

func CreateMaterialCategory(ctx context.Context, input *NewMaterialCategory) (*MaterialCategory, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	category := MaterialCategory{
		Name:  strings.TrimSpace(input.Name),
		Kind:  input.Kind,
		Stage: input.Stage,
		Role:  input.Role,
	}
	if err := config.GetDB().WithContext(ctx).Create(&category).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, utils.NewInvalidInput("name", "category already exists")
		}
		return nil, err
	}
	return &category, nil
}

// GetStageCategory returns the process category holding a stage's output.
func GetStageCategory(tx *gorm.DB, stage StageKind) (*MaterialCategory, error) {
	var category MaterialCategory
	err := tx.Where("kind = ? AND stage = ?", MaterialCategoryProcess, stage).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewConsistencyViolation("no process category configured for stage %s", stage)
		}
		return nil, err
	}
	return &category, nil
}

func ListMaterialCategories(ctx context.Context) ([]*MaterialCategory, error) {
	return utils.FetchAllModels[MaterialCategory](ctx)
}

var defaultCategories = []NewMaterialCategory{
	{Name: "teri", Kind: MaterialCategoryReal, Role: rolePtr(MaterialRoleHide)},
	{Name: "astar", Kind: MaterialCategoryReal, Role: rolePtr(MaterialRoleLining)},
	{Name: "padoj", Kind: MaterialCategoryReal, Role: rolePtr(MaterialRoleHardware)},
	{Name: "zakatovka", Kind: MaterialCategoryProcess, Stage: stagePtr(StageTrim)},
	{Name: "kroy", Kind: MaterialCategoryProcess, Stage: stagePtr(StageCut)},
	{Name: "kosib", Kind: MaterialCategoryProcess, Stage: stagePtr(StageHideCut)},
}

func stagePtr(s StageKind) *StageKind {
	return &s
}

func rolePtr(r MaterialRole) *MaterialRole {
	return &r
}

// EnsureDefaultCategories creates the hide, lining and hardware categories
// and one process category per producing stage when missing.
func EnsureDefaultCategories(ctx context.Context) ([]*MaterialCategory, error) {
	db := config.GetDB().WithContext(ctx)
	var result []*MaterialCategory
	for _, input := range defaultCategories {
		category := MaterialCategory{Name: input.Name, Kind: input.Kind, Stage: input.Stage, Role: input.Role}
		if err := db.Where("name = ?", input.Name).FirstOrCreate(&category).Error; err != nil {
			return nil, err
		}
		if category.Role == nil && input.Role != nil {
			if err := db.Model(&category).Update("role", *input.Role).Error; err != nil {
				return nil, err
			}
			category.Role = input.Role
		}
		result = append(result, &category)
	}
	return result, nil
}
