package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/http/handlers"
	"studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/pipeline"
	"studio/internal/session"
)

type fakeGenerator struct {
	suggest   func(ctx context.Context, product domain.ImageRef, desc string) ([]domain.Scenario, error)
	decompose func(ctx context.Context, model, product domain.ImageRef, scenario string) ([]string, error)
	image     func(ctx context.Context, model, product domain.ImageRef, prompt string) (domain.ImageRef, error)
	video     func(ctx context.Context, prompt string, seed domain.ImageRef) (domain.VideoClip, error)
}

func (f *fakeGenerator) SuggestScenarios(ctx context.Context, product domain.ImageRef, desc string) ([]domain.Scenario, error) {
	return f.suggest(ctx, product, desc)
}

func (f *fakeGenerator) DecomposeScenario(ctx context.Context, model, product domain.ImageRef, scenario string) ([]string, error) {
	return f.decompose(ctx, model, product, scenario)
}

func (f *fakeGenerator) GenerateSceneImage(ctx context.Context, model, product domain.ImageRef, prompt string) (domain.ImageRef, error) {
	return f.image(ctx, model, product, prompt)
}

func (f *fakeGenerator) RenderVideo(ctx context.Context, prompt string, seed domain.ImageRef) (domain.VideoClip, error) {
	return f.video(ctx, prompt, seed)
}

func workingFake() *fakeGenerator {
	return &fakeGenerator{
		suggest: func(ctx context.Context, product domain.ImageRef, desc string) ([]domain.Scenario, error) {
			return []domain.Scenario{
				{Title: "Morning routine", Description: "model uses the product at sunrise"},
				{Title: "Street style", Description: "model shows the product downtown"},
			}, nil
		},
		decompose: func(ctx context.Context, model, product domain.ImageRef, scenario string) ([]string, error) {
			return []string{"scene one prompt", "scene two prompt"}, nil
		},
		image: func(ctx context.Context, model, product domain.ImageRef, prompt string) (domain.ImageRef, error) {
			return domain.ImageRef{Data: []byte("still:" + prompt), MimeType: "image/png"}, nil
		},
		video: func(ctx context.Context, prompt string, seed domain.ImageRef) (domain.VideoClip, error) {
			return domain.VideoClip{Data: []byte("clip:" + prompt), MimeType: "video/mp4"}, nil
		},
	}
}

func newTestServer(t *testing.T, gen pipeline.Generator) *httptest.Server {
	t.Helper()
	cfg := &infra.Config{
		DefaultLocale:      "en",
		CORSAllowedOrigins: []string{"http://localhost:5173"},
	}
	log := zerolog.Nop()
	orch := pipeline.New(gen, log, pipeline.Options{SceneImageInterval: time.Millisecond, SceneImageBurst: 4})
	store := session.NewStore(time.Hour)
	app := handlers.NewApp(cfg, log, store, orch)
	srv := httptest.NewServer(httpapi.NewRouter(app))
	t.Cleanup(srv.Close)
	return srv
}

type sessionView struct {
	ID               string `json:"id"`
	Stage            string `json:"stage"`
	Busy             bool   `json:"busy"`
	Error            string `json:"error"`
	Product          struct{ Present bool }
	Model            struct{ Present bool }
	Scenarios        []domain.Scenario `json:"scenarios"`
	SelectedScenario *domain.Scenario  `json:"selected_scenario"`
	Scenes           []struct {
		Index          int    `json:"index"`
		Prompt         string `json:"prompt"`
		Regenerating   bool   `json:"regenerating"`
		RenderingVideo bool   `json:"rendering_video"`
		HasVideo       bool   `json:"has_video"`
	} `json:"scenes"`
}

func doJSON(t *testing.T, method, url string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out.Bytes()
}

func decodeView(t *testing.T, body []byte) sessionView {
	t.Helper()
	var view sessionView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode session view: %v\n%s", err, body)
	}
	return view
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, base+"/v1/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d: %s", resp.StatusCode, body)
	}
	view := decodeView(t, body)
	if view.ID == "" || view.Stage != "UPLOAD" {
		t.Fatalf("new session view = %+v", view)
	}
	return view.ID
}

func uploadImages(t *testing.T, base, id string) {
	t.Helper()
	for _, slot := range []string{"product", "model"} {
		payload := map[string]string{
			"image_base64": base64.StdEncoding.EncodeToString([]byte(slot + "-bytes")),
			"mime_type":    "image/png",
			"name":         slot + ".png",
		}
		resp, body := doJSON(t, http.MethodPut, fmt.Sprintf("%s/v1/sessions/%s/images/%s", base, id, slot), payload)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("upload %s status = %d: %s", slot, resp.StatusCode, body)
		}
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, workingFake())
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestFullWorkflow(t *testing.T) {
	srv := newTestServer(t, workingFake())
	id := createSession(t, srv.URL)
	uploadImages(t, srv.URL, id)

	// Scenario suggestions.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios",
		map[string]string{"product_description": "a canvas tote bag"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate scenarios status = %d: %s", resp.StatusCode, body)
	}
	view := decodeView(t, body)
	if view.Stage != "SCENARIO_SELECTION" || len(view.Scenarios) != 2 {
		t.Fatalf("view after scenarios = %+v", view)
	}

	// Pick the second suggestion; the storyboard should come back Ready.
	one := 1
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios/select",
		map[string]any{"index": &one})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select scenario status = %d: %s", resp.StatusCode, body)
	}
	view = decodeView(t, body)
	if view.Stage != "READY" || len(view.Scenes) != 2 {
		t.Fatalf("view after select = %+v", view)
	}
	if view.SelectedScenario == nil || view.SelectedScenario.Title != "Street style" {
		t.Fatalf("selected scenario = %+v", view.SelectedScenario)
	}
	if view.Scenes[0].Prompt != "scene one prompt" || view.Scenes[1].Prompt != "scene two prompt" {
		t.Fatalf("scene prompts = %+v", view.Scenes)
	}

	// Prompts export is the two prompts joined as plain text.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/"+id+"/prompts", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export prompts status = %d", resp.StatusCode)
	}
	if got := string(body); got != "scene one prompt\n\nscene two prompt" {
		t.Fatalf("prompts export = %q", got)
	}

	// Scene still download.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/"+id+"/scenes/0/image", nil)
	if resp.StatusCode != http.StatusOK || string(body) != "still:scene one prompt" {
		t.Fatalf("scene image download = %d %q", resp.StatusCode, body)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "scene_1") {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	// Render and fetch a clip.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenes/1/video", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("render video status = %d: %s", resp.StatusCode, body)
	}
	view = decodeView(t, body)
	if !view.Scenes[1].HasVideo || view.Scenes[0].HasVideo {
		t.Fatalf("has_video flags = %+v", view.Scenes)
	}
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/"+id+"/scenes/1/video", nil)
	if resp.StatusCode != http.StatusOK || string(body) != "clip:scene two prompt" {
		t.Fatalf("video download = %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("video content type = %q", ct)
	}
}

func TestCustomScenarioSelection(t *testing.T) {
	gen := workingFake()
	var gotScenario string
	gen.decompose = func(ctx context.Context, model, product domain.ImageRef, scenario string) ([]string, error) {
		gotScenario = scenario
		return []string{"p1"}, nil
	}
	srv := newTestServer(t, gen)
	id := createSession(t, srv.URL)
	uploadImages(t, srv.URL, id)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios", nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios/select",
		map[string]string{"custom": "  a fast-paced unboxing  "})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select custom status = %d: %s", resp.StatusCode, body)
	}
	if gotScenario != "a fast-paced unboxing" {
		t.Fatalf("decomposed scenario = %q, want trimmed custom text", gotScenario)
	}
	view := decodeView(t, body)
	if view.SelectedScenario == nil || view.SelectedScenario.Title != domain.CustomScenarioTitle {
		t.Fatalf("selected scenario = %+v, want the custom sentinel title", view.SelectedScenario)
	}
}

func TestScenariosRequireImages(t *testing.T) {
	srv := newTestServer(t, workingFake())
	id := createSession(t, srv.URL)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var e struct{ Code, Message string }
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if e.Code != "images_required" {
		t.Fatalf("error code = %q, want images_required", e.Code)
	}
}

func TestErrorsAreLocalized(t *testing.T) {
	srv := newTestServer(t, workingFake())
	id := createSession(t, srv.URL)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios", nil,
		"X-Locale", "id")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var e struct{ Code, Message string }
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(e.Message, "unggah") {
		t.Fatalf("message = %q, want the Indonesian translation", e.Message)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	srv := newTestServer(t, workingFake())
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/does-not-exist", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", resp.StatusCode, body)
	}
}

func TestUploadRejectsNonImagePayload(t *testing.T) {
	srv := newTestServer(t, workingFake())
	id := createSession(t, srv.URL)

	payload := map[string]string{
		"image_base64": base64.StdEncoding.EncodeToString([]byte("x")),
		"mime_type":    "application/pdf",
	}
	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/v1/sessions/"+id+"/images/product", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	payload["mime_type"] = "image/png"
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/v1/sessions/"+id+"/images/banner", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad slot status = %d, want 400", resp.StatusCode)
	}
}

func TestSelectScenarioValidation(t *testing.T) {
	srv := newTestServer(t, workingFake())
	id := createSession(t, srv.URL)
	uploadImages(t, srv.URL, id)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios", nil)

	// Neither index nor custom text.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios/select", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty selection status = %d, want 400", resp.StatusCode)
	}

	// Index past the suggestion list.
	nine := 9
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios/select", map[string]any{"index": &nine})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("out-of-range index status = %d, want 404", resp.StatusCode)
	}
}

func TestGenerationFailureIsBadGateway(t *testing.T) {
	gen := workingFake()
	gen.suggest = func(ctx context.Context, product domain.ImageRef, desc string) ([]domain.Scenario, error) {
		return nil, fmt.Errorf("%w: upstream said no", domain.ErrGenerationFailed)
	}
	srv := newTestServer(t, gen)
	id := createSession(t, srv.URL)
	uploadImages(t, srv.URL, id)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", resp.StatusCode, body)
	}

	// The session keeps the failure in its error slot for the next poll.
	_, body = doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/"+id, nil)
	if view := decodeView(t, body); view.Error == "" || view.Stage != "UPLOAD" {
		t.Fatalf("view after failure = %+v", view)
	}
}

func TestMissingCredentialIsFailedDependency(t *testing.T) {
	gen := workingFake()
	gen.suggest = func(ctx context.Context, product domain.ImageRef, desc string) ([]domain.Scenario, error) {
		return nil, domain.ErrMissingCredential
	}
	srv := newTestServer(t, gen)
	id := createSession(t, srv.URL)
	uploadImages(t, srv.URL, id)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios", nil)
	if resp.StatusCode != http.StatusFailedDependency {
		t.Fatalf("status = %d, want 424", resp.StatusCode)
	}
}

func TestVideoDownloadBeforeRenderIs404(t *testing.T) {
	srv := newTestServer(t, workingFake())
	id := createSession(t, srv.URL)
	uploadImages(t, srv.URL, id)
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios", nil)
	zero := 0
	doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenarios/select", map[string]any{"index": &zero})

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/sessions/"+id+"/scenes/0/video", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRegenerateOutsideReadyStageConflicts(t *testing.T) {
	srv := newTestServer(t, workingFake())
	id := createSession(t, srv.URL)
	uploadImages(t, srv.URL, id)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/sessions/"+id+"/scenes/0/regenerate", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", resp.StatusCode, body)
	}
	var e struct{ Code string }
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if e.Code != "stage_conflict" {
		t.Fatalf("error code = %q, want stage_conflict", e.Code)
	}
}
