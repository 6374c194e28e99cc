package models

import "strings"

type MaterialCategoryKind string

const (
	MaterialCategoryReal    MaterialCategoryKind = "real"
	MaterialCategoryProcess MaterialCategoryKind = "process"
)

func (k MaterialCategoryKind) IsValid() bool {
	return k == MaterialCategoryReal || k == MaterialCategoryProcess
}

// MaterialRole is what a real category supplies to production: hides and
// lining feed the cut stage, hardware feeds the hide-cut stage.
type MaterialRole string

const (
	MaterialRoleHide     MaterialRole = "hide"
	MaterialRoleLining   MaterialRole = "lining"
	MaterialRoleHardware MaterialRole = "hardware"
)

func (r MaterialRole) IsValid() bool {
	return r == MaterialRoleHide || r == MaterialRoleLining || r == MaterialRoleHardware
}

type MaterialUnit string

const (
	MaterialUnitKg        MaterialUnit = "kg"
	MaterialUnitGram      MaterialUnit = "gr"
	MaterialUnitLitre     MaterialUnit = "lt"
	MaterialUnitPiece     MaterialUnit = "dona"
	MaterialUnitDecimetre MaterialUnit = "dm"
)

func (u MaterialUnit) IsValid() bool {
	switch u {
	case MaterialUnitKg, MaterialUnitGram, MaterialUnitLitre, MaterialUnitPiece, MaterialUnitDecimetre:
		return true
	}
	return false
}

type MaterialStatus string

const (
	MaterialStatusActive   MaterialStatus = "active"
	MaterialStatusInactive MaterialStatus = "inactive"
	MaterialStatusExpired  MaterialStatus = "expired"
)

type MovementKind string

const (
	MovementKindIntake              MovementKind = "intake"
	MovementKindConsumption         MovementKind = "consumption"
	MovementKindInventoryAdjustment MovementKind = "inventory_adjustment"
	MovementKindReturn              MovementKind = "return"
	MovementKindProvisioning        MovementKind = "provisioning"
)

func (k MovementKind) IsValid() bool {
	switch k {
	case MovementKindIntake, MovementKindConsumption, MovementKindInventoryAdjustment, MovementKindReturn, MovementKindProvisioning:
		return true
	}
	return false
}

// StageKind is the production step a worker role performs.
// Process categories carry the stage whose output they hold.
type StageKind string

const (
	StageTrim    StageKind = "trim"
	StageCut     StageKind = "cut"
	StageHideCut StageKind = "hide_cut"
	StageFinish  StageKind = "finish"
	StageOther   StageKind = "other"
)

func (s StageKind) IsValid() bool {
	switch s {
	case StageTrim, StageCut, StageHideCut, StageFinish, StageOther:
		return true
	}
	return false
}

// ProducesMaterial is true for stages whose output is tracked as a process material.
func (s StageKind) ProducesMaterial() bool {
	return s == StageTrim || s == StageCut || s == StageHideCut
}

// StageForRoleName maps the workshop's role names onto stages.
func StageForRoleName(name string) StageKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "zakatovka", "zakatovkachi":
		return StageTrim
	case "kroy", "rezak", "kroychi":
		return StageCut
	case "kosib", "kosibchi":
		return StageHideCut
	case "pardoz", "pardozchi":
		return StageFinish
	}
	return StageOther
}

type ProductionEventStatus string

const (
	ProductionEventStatusNew    ProductionEventStatus = "new"
	ProductionEventStatusClosed ProductionEventStatus = "closed"
)

type AllocationStatus string

const (
	AllocationStatusActive    AllocationStatus = "active"
	AllocationStatusReturned  AllocationStatus = "returned"
	AllocationStatusCompleted AllocationStatus = "completed"
)

type DiscountType string

const (
	DiscountTypePercent DiscountType = "P"
	DiscountTypeAmount  DiscountType = "A"
)

// reference types stamped on movements
const (
	ReferenceTypeProductionEvent = "production_event"
	ReferenceTypeHideConsumption = "hide_consumption"
	ReferenceTypeAllocationItem  = "allocation_item"
)
