package domain

// FindingType represents one detectable dental condition.
type FindingType string

const (
	FindingMissingTooth           FindingType = "MISSING_TOOTH"
	FindingImplant                FindingType = "IMPLANT"
	FindingFilling                FindingType = "FILLING"
	FindingCaries                 FindingType = "CARIES"
	FindingRootCanalFilling       FindingType = "ROOT_CANAL_FILLING"
	FindingCrownOrBridge          FindingType = "CROWN_OR_BRIDGE"
	FindingPeriapicalRadiolucency FindingType = "PERIAPICAL_RADIOLUCENCY"
	FindingResidualRoot           FindingType = "RESIDUAL_ROOT"
)

var knownFindingTypes = map[FindingType]bool{
	FindingMissingTooth:           true,
	FindingImplant:                true,
	FindingFilling:                true,
	FindingCaries:                 true,
	FindingRootCanalFilling:       true,
	FindingCrownOrBridge:          true,
	FindingPeriapicalRadiolucency: true,
	FindingResidualRoot:           true,
}

// IsValid reports whether the finding type is part of the known enumeration.
func (t FindingType) IsValid() bool {
	return knownFindingTypes[t]
}

// Finding represents one detected condition on one tooth.
// Multiple findings may share a tooth position; findings keep the
// detection order reported by the remote model and are never re-sorted.
type Finding struct {
	ToothPosition   string      `json:"fdi"`
	FindingType     FindingType `json:"finding"`
	ConfidenceScore float64     `json:"score"`
}

// IsValidFDI reports whether code is a syntactically valid two-digit FDI
// tooth position: quadrant digit 1-8, tooth digit 1-9.
func IsValidFDI(code string) bool {
	if len(code) != 2 {
		return false
	}
	q, t := code[0], code[1]
	return q >= '1' && q <= '8' && t >= '1' && t <= '9'
}

// Validate checks tooth position, finding type, and confidence range.
// Returns:
//   - error: a *ValidationError describing the first violation, or nil.
func (f *Finding) Validate() error {
	if !IsValidFDI(f.ToothPosition) {
		return &ValidationError{Field: "fdi", Message: "invalid FDI tooth position: " + f.ToothPosition}
	}
	if !f.FindingType.IsValid() {
		return &ValidationError{Field: "finding", Message: "unknown finding type: " + string(f.FindingType)}
	}
	if f.ConfidenceScore < 0 || f.ConfidenceScore > 1 {
		return &ValidationError{Field: "score", Message: "confidence score out of [0,1] range"}
	}
	return nil
}
