package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/leatherworks/models"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
)

func testCommon(qty int) StageCommon {
	return StageCommon{WorkerId: 1, ProductId: 2, Quantity: qty}
}

func TestStageInputValidation(t *testing.T) {
	perUnitZero := decimal.Zero
	perUnitOne := decimal.NewFromInt(1)
	cases := []struct {
		name  string
		input StageInput
	}{
		{"zero quantity", FinishInput{StageCommon: testCommon(0)}},
		{"missing worker", OtherInput{StageCommon: StageCommon{ProductId: 2, Quantity: 1}}},
		{"missing product", OtherInput{StageCommon: StageCommon{WorkerId: 1, Quantity: 1}}},
		{"trim without upstream", TrimInput{StageCommon: testCommon(1)}},
		{"trim with empty link", TrimInput{StageCommon: testCommon(1), Upstream: LinkedUpstream{}}},
		{"cut without hides", CutInput{StageCommon: testCommon(1)}},
		{"cut with zero per unit", CutInput{StageCommon: testCommon(1), Hides: []MaterialSource{{MaterialId: 1, PerUnit: &perUnitZero}}}},
		{"cut with bad lining", CutInput{StageCommon: testCommon(1), Hides: []MaterialSource{{MaterialId: 1}}, Lining: &MaterialSource{}}},
		{"hide cut without upstream", HideCutInput{StageCommon: testCommon(1), Hardware: MaterialSource{MaterialId: 3}}},
		{"hide cut without hardware", HideCutInput{StageCommon: testCommon(1), Upstream: StandaloneUpstream{}}},
		{"hide cut hardware per unit", HideCutInput{StageCommon: testCommon(1), Upstream: StandaloneUpstream{}, Hardware: MaterialSource{MaterialId: 3, PerUnit: &perUnitOne}}},
	}
	for _, tc := range cases {
		if err := tc.input.validate(); !errors.Is(err, utils.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
	}

	valid := []StageInput{
		TrimInput{StageCommon: testCommon(1), Upstream: StandaloneUpstream{}},
		TrimInput{StageCommon: testCommon(3), Upstream: LinkedUpstream{MaterialId: 9}},
		CutInput{StageCommon: testCommon(1), Hides: []MaterialSource{{MaterialId: 1}, {MaterialId: 1, VariantId: intPtr(4)}}},
		HideCutInput{StageCommon: testCommon(2), Upstream: LinkedUpstream{MaterialId: 9}, Hardware: MaterialSource{MaterialId: 3}},
		FinishInput{StageCommon: testCommon(5)},
	}
	for _, in := range valid {
		if err := in.validate(); err != nil {
			t.Fatalf("%s: unexpected error %v", in.Kind(), err)
		}
	}
}

func TestExecuteStageRejectsBeforeTouchingTheDatabase(t *testing.T) {
	if _, err := ExecuteStage(context.Background(), nil); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("nil input: expected invalid input, got %v", err)
	}
	if _, err := ExecuteStage(context.Background(), TrimInput{StageCommon: testCommon(0), Upstream: StandaloneUpstream{}}); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("qty 0: expected invalid input, got %v", err)
	}
}

func TestHideRequirement(t *testing.T) {
	perUnit, total := HideRequirement(nil, decimal.NewFromInt(1), 12)
	if !perUnit.Equal(decimal.NewFromInt(1)) || !total.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected 1 x 12 = 12, got %s / %s", perUnit, total)
	}

	override := decimal.RequireFromString("0.75")
	perUnit, total = HideRequirement(&override, decimal.NewFromInt(1), 4)
	if !perUnit.Equal(override) || !total.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 0.75 x 4 = 3, got %s / %s", perUnit, total)
	}
}

func TestStageRequestToInput(t *testing.T) {
	upstream := 9
	req := StageRequest{StageCommon: testCommon(2), UpstreamMaterialId: &upstream, Color: "red", Size: "42"}

	in, err := req.ToInput(models.StageTrim)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	trim, ok := in.(TrimInput)
	if !ok {
		t.Fatalf("expected TrimInput, got %T", in)
	}
	if link, ok := trim.Upstream.(LinkedUpstream); !ok || link.MaterialId != 9 {
		t.Fatalf("expected linked upstream 9, got %#v", trim.Upstream)
	}

	req.Standalone = true
	if _, err := req.ToInput(models.StageTrim); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("standalone with an upstream id: expected invalid input, got %v", err)
	}
	req.Hardware = &MaterialSource{MaterialId: 3}
	if _, err := req.ToInput(models.StageHideCut); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("standalone hide cut with an upstream id: expected invalid input, got %v", err)
	}
	req.UpstreamMaterialId = nil
	in, _ = req.ToInput(models.StageTrim)
	if _, ok := in.(TrimInput).Upstream.(StandaloneUpstream); !ok {
		t.Fatalf("expected standalone upstream, got %#v", in.(TrimInput).Upstream)
	}

	req.Hardware = nil
	if _, err := req.ToInput(models.StageHideCut); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("hide cut without hardware: expected invalid input, got %v", err)
	}
	req.Hardware = &MaterialSource{MaterialId: 3}
	in, err = req.ToInput(models.StageHideCut)
	if err != nil {
		t.Fatalf("hide cut: %v", err)
	}
	if hc := in.(HideCutInput); hc.Size != "42" || hc.Hardware.MaterialId != 3 {
		t.Fatalf("hide cut input lost fields: %#v", hc)
	}
	if _, ok := in.(HideCutInput).Upstream.(StandaloneUpstream); !ok {
		t.Fatalf("expected standalone hide cut")
	}

	if in, _ := req.ToInput(models.StageFinish); in.Kind() != models.StageFinish {
		t.Fatalf("expected finish input, got %s", in.Kind())
	}
	if _, err := req.ToInput("glue"); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("unknown stage: expected invalid input, got %v", err)
	}
}

func intPtr(v int) *int {
	return &v
}
