package models

import "fmt"

// GenerationStep identifies the patent section a retrieval is made for
type GenerationStep int

const (
	StepUnknown GenerationStep = iota
	StepFieldOfInvention
	StepBackground
	StepSummary
	StepTechnologyPlatform
	StepDescription
	StepProducts
	StepUses
	StepAbstract
	StepClaims
)

var stepNames = map[GenerationStep]string{
	StepUnknown:            "unknown",
	StepFieldOfInvention:   "field_of_invention",
	StepBackground:         "background",
	StepSummary:            "summary",
	StepTechnologyPlatform: "technology_platform",
	StepDescription:        "description",
	StepProducts:           "products",
	StepUses:               "uses",
	StepAbstract:           "abstract",
	StepClaims:             "claims",
}

func (s GenerationStep) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ParseGenerationStep maps a step name back to its enum value.
// An empty name yields StepUnknown without error.
func ParseGenerationStep(name string) (GenerationStep, error) {
	if name == "" {
		return StepUnknown, nil
	}
	for step, n := range stepNames {
		if n == name {
			return step, nil
		}
	}
	return StepUnknown, fmt.Errorf("unknown generation step: %q", name)
}
