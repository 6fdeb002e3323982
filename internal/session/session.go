package session

import (
	"strings"
	"sync"
	"time"

	"studio/internal/domain"
)

// ImageSlot identifies one of the two grounding image slots.
type ImageSlot string

const (
	SlotProduct ImageSlot = "product"
	SlotModel   ImageSlot = "model"
)

// Session owns all state accumulated by one workflow run. Every mutation goes
// through a transition method; each transition takes the lock briefly, so no
// remote call ever holds it.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time

	stage              domain.Stage
	product            domain.ImageRef
	model              domain.ImageRef
	productDescription string
	scenarios          []domain.Scenario
	selected           *domain.Scenario
	scenes             []domain.ScenePrompt
	videos             map[int]domain.VideoClip

	busy        bool
	busyMessage string
	errMessage  string

	// stageBefore is the rollback target while the main pipeline is busy.
	stageBefore domain.Stage

	tracker *Tracker
}

func newSession(id string) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now(),
		stage:     domain.StageUpload,
		videos:    make(map[int]domain.VideoClip),
		tracker:   NewTracker(),
	}
}

func (s *Session) ID() string { return s.id }

// SetImage replaces one grounding image wholesale. Rejected while the main
// pipeline or any per-scene operation is running, since in-flight work grounds
// on the current images.
func (s *Session) SetImage(slot ImageSlot, img domain.ImageRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return domain.ErrPipelineBusy
	}
	if s.tracker.AnyInFlight() {
		return domain.ErrOperationInFlight
	}
	switch slot {
	case SlotProduct:
		s.product = img
	case SlotModel:
		s.model = img
	default:
		return domain.ErrNotFound
	}
	return nil
}

// BeginScenarioGeneration validates preconditions, marks the pipeline busy and
// returns the product image the remote call should ground on.
func (s *Session) BeginScenarioGeneration(productDescription string) (domain.ImageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return domain.ImageRef{}, domain.ErrPipelineBusy
	}
	if s.stage != domain.StageUpload && s.stage != domain.StageScenarioSelection {
		return domain.ImageRef{}, domain.ErrStageConflict
	}
	if !s.product.Present() || !s.model.Present() {
		return domain.ImageRef{}, domain.ErrImagesRequired
	}

	s.busy = true
	s.busyMessage = "Generating creative scenarios..."
	s.errMessage = ""
	s.productDescription = productDescription
	s.scenarios = nil
	s.stageBefore = s.stage
	return s.product, nil
}

// CompleteScenarioGeneration stores the suggested scenarios and advances to
// scenario selection. An empty batch is accepted; the custom-scenario input
// remains available.
func (s *Session) CompleteScenarioGeneration(scenarios []domain.Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scenarios = scenarios
	s.stage = domain.StageScenarioSelection
	s.clearBusy()
}

func (s *Session) FailScenarioGeneration(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stage = s.stageBefore
	s.errMessage = message
	s.clearBusy()
}

// BeginSceneGeneration records the chosen scenario and optimistically advances
// to the Generating stage before the remote call resolves.
func (s *Session) BeginSceneGeneration(scenario domain.Scenario) (model, product domain.ImageRef, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return domain.ImageRef{}, domain.ImageRef{}, domain.ErrPipelineBusy
	}
	if s.stage != domain.StageScenarioSelection {
		return domain.ImageRef{}, domain.ImageRef{}, domain.ErrStageConflict
	}
	if !s.product.Present() || !s.model.Present() {
		return domain.ImageRef{}, domain.ImageRef{}, domain.ErrImagesRequired
	}

	s.selected = &scenario
	s.stage = domain.StageGenerating
	s.busy = true
	s.busyMessage = "Building a storyboard from your scenario..."
	s.errMessage = ""
	s.scenes = nil
	s.videos = make(map[int]domain.VideoClip)
	return s.model, s.product, nil
}

// SetBusyMessage updates the loading message while the pipeline stays busy.
func (s *Session) SetBusyMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		s.busyMessage = message
	}
}

// CompleteSceneGeneration fixes the scene sequence for the rest of the session
// and advances to Ready. Indices are stable from here on.
func (s *Session) CompleteSceneGeneration(scenes []domain.ScenePrompt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scenes = scenes
	s.stage = domain.StageReady
	s.clearBusy()
}

// FailSceneGeneration rolls back to scenario selection so the user can retry.
func (s *Session) FailSceneGeneration(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stage = domain.StageScenarioSelection
	s.errMessage = message
	s.clearBusy()
}

// BeginSceneOperation starts a per-scene side operation. It returns the scene
// and grounding images the remote call needs plus a release handle that must
// run unconditionally on the exit path.
func (s *Session) BeginSceneOperation(kind OpKind, index int) (scene domain.ScenePrompt, model, product domain.ImageRef, release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != domain.StageReady {
		return domain.ScenePrompt{}, domain.ImageRef{}, domain.ImageRef{}, nil, domain.ErrStageConflict
	}
	if index < 0 || index >= len(s.scenes) {
		return domain.ScenePrompt{}, domain.ImageRef{}, domain.ImageRef{}, nil, domain.ErrNotFound
	}
	release, err = s.tracker.Begin(kind, index)
	if err != nil {
		return domain.ScenePrompt{}, domain.ImageRef{}, domain.ImageRef{}, nil, err
	}
	s.errMessage = ""
	return s.scenes[index], s.model, s.product, release, nil
}

// CompleteRegeneration swaps in the new still for one scene. The stored video
// for that index is dropped because it references the replaced image.
func (s *Session) CompleteRegeneration(index int, img domain.ImageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.scenes) {
		return
	}
	s.scenes[index].Image = img
	delete(s.videos, index)
}

// SetVideo stores the rendered clip for one scene.
func (s *Session) SetVideo(index int, clip domain.VideoClip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[index] = clip
}

// SetError replaces the single user-visible error message slot.
func (s *Session) SetError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMessage = message
}

// Scene returns a copy of one scene prompt.
func (s *Session) Scene(index int) (domain.ScenePrompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.scenes) {
		return domain.ScenePrompt{}, false
	}
	return s.scenes[index], true
}

// Video returns the rendered clip for one scene, if any.
func (s *Session) Video(index int) (domain.VideoClip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clip, ok := s.videos[index]
	return clip, ok
}

// Scenario returns the suggested scenario at the given position.
func (s *Session) Scenario(index int) (domain.Scenario, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.scenarios) {
		return domain.Scenario{}, false
	}
	return s.scenarios[index], true
}

// PromptsText joins all scene prompts for the copy-all export.
func (s *Session) PromptsText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := make([]string, 0, len(s.scenes))
	for _, sc := range s.scenes {
		parts = append(parts, sc.Prompt)
	}
	return strings.Join(parts, "\n\n")
}

// Tracker exposes the per-scene operation tracker for read access.
func (s *Session) Tracker() *Tracker { return s.tracker }

func (s *Session) clearBusy() {
	s.busy = false
	s.busyMessage = ""
}

// View is a consistent read-only snapshot of the session for rendering.
type View struct {
	ID                 string            `json:"id"`
	Stage              domain.Stage      `json:"stage"`
	Busy               bool              `json:"busy"`
	BusyMessage        string            `json:"busy_message,omitempty"`
	Error              string            `json:"error,omitempty"`
	Product            ImageInfo         `json:"product"`
	Model              ImageInfo         `json:"model"`
	ProductDescription string            `json:"product_description,omitempty"`
	Scenarios          []domain.Scenario `json:"scenarios"`
	SelectedScenario   *domain.Scenario  `json:"selected_scenario,omitempty"`
	Scenes             []SceneView       `json:"scenes"`
	CreatedAt          time.Time         `json:"created_at"`
}

type ImageInfo struct {
	Present  bool   `json:"present"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type SceneView struct {
	Index          int    `json:"index"`
	Prompt         string `json:"prompt"`
	Regenerating   bool   `json:"regenerating"`
	RenderingVideo bool   `json:"rendering_video"`
	HasVideo       bool   `json:"has_video"`
}

// Snapshot copies the session state under the lock.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		ID:                 s.id,
		Stage:              s.stage,
		Busy:               s.busy,
		BusyMessage:        s.busyMessage,
		Error:              s.errMessage,
		Product:            imageInfo(s.product),
		Model:              imageInfo(s.model),
		ProductDescription: s.productDescription,
		Scenarios:          append([]domain.Scenario(nil), s.scenarios...),
		Scenes:             make([]SceneView, 0, len(s.scenes)),
		CreatedAt:          s.createdAt,
	}
	if view.Scenarios == nil {
		view.Scenarios = []domain.Scenario{}
	}
	if s.selected != nil {
		sel := *s.selected
		view.SelectedScenario = &sel
	}
	for i, sc := range s.scenes {
		_, hasVideo := s.videos[i]
		view.Scenes = append(view.Scenes, SceneView{
			Index:          i,
			Prompt:         sc.Prompt,
			Regenerating:   s.tracker.InFlight(OpRegenerate, i),
			RenderingVideo: s.tracker.InFlight(OpRenderVideo, i),
			HasVideo:       hasVideo,
		})
	}
	return view
}

func imageInfo(img domain.ImageRef) ImageInfo {
	return ImageInfo{
		Present:  img.Present(),
		Name:     img.Name,
		MimeType: img.MimeType,
	}
}

// Image returns a copy of the stored grounding image for a slot.
func (s *Session) Image(slot ImageSlot) (domain.ImageRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch slot {
	case SlotProduct:
		return s.product, s.product.Present()
	case SlotModel:
		return s.model, s.model.Present()
	}
	return domain.ImageRef{}, false
}
