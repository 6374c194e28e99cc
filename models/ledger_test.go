package models

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(v int) *int {
	return &v
}

func TestCheckKindInvariant(t *testing.T) {
	if err := CheckKindInvariant(MaterialCategoryProcess, intPtr(4)); err != nil {
		t.Fatalf("process material with product: unexpected error %v", err)
	}
	if err := CheckKindInvariant(MaterialCategoryReal, nil); err != nil {
		t.Fatalf("real material without product: unexpected error %v", err)
	}
	if err := CheckKindInvariant(MaterialCategoryProcess, nil); !errors.Is(err, utils.ErrConsistencyViolation) {
		t.Fatalf("process material without product: expected consistency violation, got %v", err)
	}
	if err := CheckKindInvariant(MaterialCategoryReal, intPtr(4)); !errors.Is(err, utils.ErrConsistencyViolation) {
		t.Fatalf("real material with product: expected consistency violation, got %v", err)
	}
	if err := CheckKindInvariant("virtual", nil); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("unknown kind: expected invalid input, got %v", err)
	}
}

func TestAggregatePoolRequests_SumsPerPoolInFirstSeenOrder(t *testing.T) {
	requests := []PoolRequest{
		{Pool: VariantPool(1, 10), Quantity: dec("6")},
		{Pool: MaterialPool(2), Quantity: dec("1.5")},
		{Pool: VariantPool(1, 10), Quantity: dec("6")},
		{Pool: VariantPool(1, 11), Quantity: dec("2")},
	}
	got := AggregatePoolRequests(requests)
	if len(got) != 3 {
		t.Fatalf("expected 3 pools, got %d", len(got))
	}
	expected := []struct {
		key string
		qty string
	}{
		{VariantPool(1, 10).Key(), "12"},
		{MaterialPool(2).Key(), "1.5"},
		{VariantPool(1, 11).Key(), "2"},
	}
	for i, e := range expected {
		if got[i].Pool.Key() != e.key || !got[i].Quantity.Equal(dec(e.qty)) {
			t.Fatalf("pool %d: expected %s=%s, got %s=%s", i, e.key, e.qty, got[i].Pool.Key(), got[i].Quantity)
		}
	}
	// input untouched
	if !requests[0].Quantity.Equal(dec("6")) {
		t.Fatalf("input request was mutated: %s", requests[0].Quantity)
	}
}

func TestStockPoolKeysDistinguishVariantFromAggregate(t *testing.T) {
	if MaterialPool(1).Key() == VariantPool(1, 1).Key() {
		t.Fatalf("aggregate and variant pools must not share a key")
	}
	if !VariantPool(1, 2).IsVariant() || MaterialPool(1).IsVariant() {
		t.Fatalf("IsVariant reports the wrong pool kind")
	}
}

func TestMovementDelta(t *testing.T) {
	cases := []struct {
		kind     MovementKind
		qty      string
		expected string
	}{
		{MovementKindIntake, "10", "10"},
		{MovementKindReturn, "3", "3"},
		{MovementKindConsumption, "12", "-12"},
		{MovementKindProvisioning, "50", "-50"},
		{MovementKindInventoryAdjustment, "-4", "-4"},
		{MovementKindInventoryAdjustment, "2.5", "2.5"},
	}
	for _, tc := range cases {
		m := MaterialMovement{Kind: tc.kind, Quantity: dec(tc.qty)}
		if got := m.Delta(); !got.Equal(dec(tc.expected)) {
			t.Fatalf("%s %s: expected delta %s, got %s", tc.kind, tc.qty, tc.expected, got)
		}
	}
}

func TestNewMaterialMovementValidate(t *testing.T) {
	valid := NewMaterialMovement{Pool: MaterialPool(1), Kind: MovementKindConsumption, Quantity: dec("1")}
	if err := valid.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := []NewMaterialMovement{
		{Pool: MaterialPool(1), Kind: "transfer", Quantity: dec("1")},
		{Pool: MaterialPool(0), Kind: MovementKindIntake, Quantity: dec("1")},
		{Pool: MaterialPool(1), Kind: MovementKindIntake, Quantity: dec("0")},
		{Pool: MaterialPool(1), Kind: MovementKindConsumption, Quantity: dec("-2")},
		{Pool: MaterialPool(1), Kind: MovementKindInventoryAdjustment, Quantity: dec("0")},
	}
	for i, input := range cases {
		if err := input.validate(); !errors.Is(err, utils.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
	adjustment := NewMaterialMovement{Pool: MaterialPool(1), Kind: MovementKindInventoryAdjustment, Quantity: dec("-3")}
	if err := adjustment.validate(); err != nil {
		t.Fatalf("negative adjustment should be allowed: %v", err)
	}
}

func TestNewMaterialCategoryValidate(t *testing.T) {
	cut := StageCut
	finish := StageFinish
	hide := MaterialRoleHide
	glue := MaterialRole("glue")
	cases := []struct {
		input NewMaterialCategory
		ok    bool
	}{
		{NewMaterialCategory{Name: "teri", Kind: MaterialCategoryReal}, true},
		{NewMaterialCategory{Name: "kroy", Kind: MaterialCategoryProcess, Stage: &cut}, true},
		{NewMaterialCategory{Name: "kroy", Kind: MaterialCategoryProcess}, false},
		{NewMaterialCategory{Name: "pardoz", Kind: MaterialCategoryProcess, Stage: &finish}, false},
		{NewMaterialCategory{Name: "teri", Kind: MaterialCategoryReal, Stage: &cut}, false},
		{NewMaterialCategory{Name: " ", Kind: MaterialCategoryReal}, false},
		{NewMaterialCategory{Name: "teri", Kind: MaterialCategoryReal, Role: &hide}, true},
		{NewMaterialCategory{Name: "yelim", Kind: MaterialCategoryReal, Role: &glue}, false},
		{NewMaterialCategory{Name: "kroy", Kind: MaterialCategoryProcess, Stage: &cut, Role: &hide}, false},
	}
	for i, tc := range cases {
		err := tc.input.validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d: unexpected error %v", i, err)
		}
		if !tc.ok && !errors.Is(err, utils.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}
