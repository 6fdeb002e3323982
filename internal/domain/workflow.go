package domain

// Stage is the coarse phase a session moves through. It normally only advances
// forward, but nothing may assume it cannot be reset by a future action.
type Stage string

const (
	StageUpload            Stage = "UPLOAD"
	StageScenarioSelection Stage = "SCENARIO_SELECTION"
	StageGenerating        Stage = "GENERATING"
	StageReady             Stage = "READY"
)

// CustomScenarioTitle is the fixed title used when the user submits free text
// instead of picking a suggested scenario.
const CustomScenarioTitle = "Custom scenario"

// ImageRef holds an uploaded or generated image. Instances are replaced
// wholesale, never mutated.
type ImageRef struct {
	Data     []byte
	MimeType string
	Name     string
}

func (r ImageRef) Present() bool {
	return len(r.Data) > 0
}

// Scenario is a short narrative premise for a marketing video.
type Scenario struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CustomScenario wraps user-authored free text as a Scenario.
func CustomScenario(text string) Scenario {
	return Scenario{Title: CustomScenarioTitle, Description: text}
}

// ScenePrompt is one narrated segment of a scenario paired with its
// illustrative still. The slice index is the scene's identity for the rest of
// the session; scenes are never reordered or deleted.
type ScenePrompt struct {
	Prompt string
	Image  ImageRef
}

// VideoClip is a rendered clip for one scene, held in memory for playback.
type VideoClip struct {
	Data     []byte
	MimeType string
}

func (v VideoClip) Present() bool {
	return len(v.Data) > 0
}
