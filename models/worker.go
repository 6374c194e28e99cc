package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"gorm.io/gorm"
)

// WorkerRole is a workshop position. Stage decides which production step
// the role may record.
type WorkerRole struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Stage     StageKind `gorm:"type:enum('trim','cut','hide_cut','finish','other');not null;default:'other'" json:"stage"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewWorkerRole struct {
	Name  string     `json:"name" binding:"required"`
	Stage *StageKind `json:"stage"`
}

type Worker struct {
	ID        int         `gorm:"primary_key" json:"id"`
	FullName  string      `gorm:"size:200;not null" json:"full_name"`
	Phone     string      `gorm:"size:30;default:null" json:"phone"`
	RoleId    int         `gorm:"index;not null" json:"role_id"`
	Role      *WorkerRole `gorm:"foreignKey:RoleId" json:"role,omitempty"`
	IsActive  *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWorker struct {
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
	RoleId   int    `json:"role_id" binding:"required"`
}

// CreateWorkerRole falls back to the role name when no stage is given.
func CreateWorkerRole(ctx context.Context, input *NewWorkerRole) (*WorkerRole, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, utils.NewInvalidInput("name", "is required")
	}
	stage := StageForRoleName(name)
	if input.Stage != nil {
		if !input.Stage.IsValid() {
			return nil, utils.NewInvalidInput("stage", "unknown stage")
		}
		stage = *input.Stage
	}
	role := WorkerRole{Name: name, Stage: stage}
	if err := config.GetDB().WithContext(ctx).Create(&role).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, utils.NewInvalidInput("name", "role already exists")
		}
		return nil, err
	}
	return &role, nil
}

func CreateWorker(ctx context.Context, input *NewWorker) (*Worker, error) {
	if strings.TrimSpace(input.FullName) == "" {
		return nil, utils.NewInvalidInput("full_name", "is required")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewInvalidInput("phone", err.Error())
		}
	}
	if err := utils.ValidateResourceId[WorkerRole](ctx, "worker role", input.RoleId); err != nil {
		return nil, err
	}
	worker := Worker{
		FullName: strings.TrimSpace(input.FullName),
		Phone:    input.Phone,
		RoleId:   input.RoleId,
		IsActive: utils.NewTrue(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&worker).Error; err != nil {
		return nil, err
	}
	return &worker, nil
}

// FetchWorkerWithRole loads a worker and its role inside tx.
func FetchWorkerWithRole(tx *gorm.DB, id int) (*Worker, error) {
	return utils.FetchModelTx[Worker](tx, "worker", id, "Role")
}

// Stage is the production step this worker records; other when the role is unknown.
func (w *Worker) Stage() StageKind {
	if w.Role == nil {
		return StageOther
	}
	return w.Role.Stage
}
