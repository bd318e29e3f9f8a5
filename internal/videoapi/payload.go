package videoapi

import (
	"errors"

	"vidrelay/internal/models"
)

// Model family constants for payload construction.
const (
	SubjectReferenceModel = "S2V-01"
	FallbackResolution    = "768P"
	WatermarkTag          = "hailuo"
)

// ErrImageRequired is returned when the subject-reference model is asked to
// generate without a reference image.
var ErrImageRequired = errors.New("subject reference model requires a reference image")

// SubjectReference is a single character reference for S2V-01.
type SubjectReference struct {
	Type  string   `json:"type"`
	Image []string `json:"image"`
}

// SubjectPayload is the S2V-01 request body. Duration and resolution are not
// accepted by that model.
type SubjectPayload struct {
	Model            string             `json:"model"`
	Prompt           string             `json:"prompt"`
	PromptOptimizer  bool               `json:"prompt_optimizer"`
	SubjectReference []SubjectReference `json:"subject_reference"`
}

// FramePayload is the request body for frame-conditioned models.
type FramePayload struct {
	Prompt          string `json:"prompt"`
	Model           string `json:"model"`
	Duration        int    `json:"duration"`
	PromptOptimizer bool   `json:"prompt_optimizer"`
	FirstFrameImage string `json:"first_frame_image,omitempty"`
	Watermark       string `json:"watermark,omitempty"`
	Resolution      string `json:"resolution"`
}

// BuildPayload selects the payload shape for the request's model. image is
// the inline reference for this job, empty for text-only generation.
func BuildPayload(req models.GenerationRequest, image string) (any, error) {
	if req.Model == SubjectReferenceModel {
		if image == "" {
			return nil, ErrImageRequired
		}
		return SubjectPayload{
			Model:           req.Model,
			Prompt:          req.Prompt,
			PromptOptimizer: req.PromptOptimizer,
			SubjectReference: []SubjectReference{{
				Type:  "character",
				Image: []string{image},
			}},
		}, nil
	}

	p := FramePayload{
		Prompt:          req.Prompt,
		Model:           req.Model,
		Duration:        req.Duration,
		PromptOptimizer: req.PromptOptimizer,
		FirstFrameImage: image,
		Resolution:      FallbackResolution,
	}
	if req.Watermark {
		p.Watermark = WatermarkTag
	}
	// The upstream only honours a custom resolution at the default duration.
	if req.Duration == models.DefaultDuration {
		p.Resolution = req.Resolution
	}
	return p, nil
}
