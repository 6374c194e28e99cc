package workflow

import (
	"bitbucket.org/mmdatafocus/leatherworks/models"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
)

// StageRequest is the flat form submitted by the workshop screens. ToInput
// turns it into the typed input for one stage.
type StageRequest struct {
	StageCommon
	Standalone         bool             `json:"standalone"`
	UpstreamMaterialId *int             `json:"upstream_material_id"`
	Hides              []MaterialSource `json:"hides"`
	Lining             *MaterialSource  `json:"lining"`
	Hardware           *MaterialSource  `json:"hardware"`
	Color              string           `json:"color"`
	Size               string           `json:"size"`
}

// upstream is nil when neither field is set; the stage then reports the missing input.
func (req StageRequest) upstream() (Upstream, error) {
	if req.Standalone {
		if req.UpstreamMaterialId != nil {
			return nil, utils.NewInvalidInput("upstream_material_id", "must be empty for standalone work")
		}
		return StandaloneUpstream{}, nil
	}
	if req.UpstreamMaterialId != nil {
		return LinkedUpstream{MaterialId: *req.UpstreamMaterialId}, nil
	}
	return nil, nil
}

func (req StageRequest) ToInput(stage models.StageKind) (StageInput, error) {
	switch stage {
	case models.StageTrim:
		upstream, err := req.upstream()
		if err != nil {
			return nil, err
		}
		return TrimInput{StageCommon: req.StageCommon, Upstream: upstream, Color: req.Color}, nil
	case models.StageCut:
		return CutInput{StageCommon: req.StageCommon, Hides: req.Hides, Lining: req.Lining, Color: req.Color}, nil
	case models.StageHideCut:
		if req.Hardware == nil {
			return nil, utils.NewInvalidInput("hardware", "is required")
		}
		upstream, err := req.upstream()
		if err != nil {
			return nil, err
		}
		return HideCutInput{StageCommon: req.StageCommon, Upstream: upstream, Hardware: *req.Hardware, Color: req.Color, Size: req.Size}, nil
	case models.StageFinish:
		return FinishInput{StageCommon: req.StageCommon}, nil
	case models.StageOther:
		return OtherInput{StageCommon: req.StageCommon}, nil
	}
	return nil, utils.NewInvalidInput("stage", "unknown stage "+string(stage))
}
