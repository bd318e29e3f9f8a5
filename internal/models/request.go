package models

// Generation defaults applied when a request omits the field.
const (
	DefaultModel          = "MiniMax-Hailuo-02"
	DefaultDuration       = 6
	DefaultResolution     = "768P"
	DefaultVideosPerImage = 1
)

// MaxJobsPerRequest caps the fan-out of a single generation request.
const MaxJobsPerRequest = 100

// GenerationRequest is the body of POST /api/generate. Each request carries
// its own upstream base URL and credential.
type GenerationRequest struct {
	APIURL          string   `json:"api_url"`
	APIKey          string   `json:"api_key"`
	Prompt          string   `json:"prompt"`
	Model           string   `json:"model"`
	PromptOptimizer bool     `json:"prompt_optimizer"`
	Watermark       bool     `json:"watermark"`
	VideosPerImage  int      `json:"videos_per_image"`
	Duration        int      `json:"duration"`
	Resolution      string   `json:"resolution"`
	Images          []string `json:"images"`
}

// NewGenerationRequest returns a request pre-filled with defaults so that
// decoding JSON on top of it only overrides the fields the client sent.
func NewGenerationRequest() GenerationRequest {
	return GenerationRequest{
		Model:           DefaultModel,
		PromptOptimizer: true,
		Watermark:       true,
		VideosPerImage:  DefaultVideosPerImage,
		Duration:        DefaultDuration,
		Resolution:      DefaultResolution,
	}
}

// JobCount is the number of jobs the request fans out into.
func (r GenerationRequest) JobCount() int {
	if len(r.Images) == 0 {
		return r.VideosPerImage
	}
	return len(r.Images) * r.VideosPerImage
}
