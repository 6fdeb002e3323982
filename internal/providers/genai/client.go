package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey          string
	BaseURL         string
	TextModel       string
	ImageModel      string
	VideoModel      string
	PollInterval    time.Duration
	PollMaxAttempts int
	HTTPClient      *http.Client
	Logger          *zerolog.Logger
}

// Client is a lightweight facade over the Gemini REST API covering the three
// capabilities the workflow needs: structured scenario suggestion, scene
// decomposition plus still-image synthesis, and long-running Veo video jobs.
// It performs no state mutation beyond returning results.
type Client struct {
	apiKey          string
	baseURL         string
	textModel       string
	imageModel      string
	videoModel      string
	pollInterval    time.Duration
	pollMaxAttempts int
	httpClient      *http.Client
	logger          zerolog.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature        float64  `json:"temperature,omitempty"`
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Status  string `json:"status,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

type scenarioPayload struct {
	Scenarios []domain.Scenario `json:"scenarios"`
}

type promptsPayload struct {
	Prompts []string `json:"prompts"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	textModel := opts.TextModel
	if textModel == "" {
		textModel = "gemini-2.5-flash"
	}
	imageModel := opts.ImageModel
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image"
	}
	videoModel := opts.VideoModel
	if videoModel == "" {
		videoModel = "veo-3.1-fast-generate-preview"
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	pollMaxAttempts := opts.PollMaxAttempts
	if pollMaxAttempts <= 0 {
		pollMaxAttempts = 60
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		apiKey:          strings.TrimSpace(opts.APIKey),
		baseURL:         baseURL,
		textModel:       textModel,
		imageModel:      imageModel,
		videoModel:      videoModel,
		pollInterval:    pollInterval,
		pollMaxAttempts: pollMaxAttempts,
		httpClient:      client,
		logger:          logger,
	}
}

// SuggestScenarios asks the text model for short marketing-video scenarios
// grounded on the product image. Any count, including zero, is accepted.
func (c *Client) SuggestScenarios(ctx context.Context, product domain.ImageRef, productDescription string) ([]domain.Scenario, error) {
	if c.apiKey == "" {
		return nil, domain.ErrMissingCredential
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				inlinePart(product),
				{Text: buildScenarioPrompt(productDescription)},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.7,
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.textModel)), payload, &response); err != nil {
		return nil, err
	}

	text := extractText(response)
	if text == "" {
		return nil, fmt.Errorf("%w: empty scenario response", domain.ErrGenerationFailed)
	}
	parsed, err := parsePayload[scenarioPayload](text)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed scenario payload: %v", domain.ErrGenerationFailed, err)
	}

	c.logger.Debug().
		Str("model", c.textModel).
		Int("count", len(parsed.Scenarios)).
		Msg("genai: suggested scenarios")

	return parsed.Scenarios, nil
}

// DecomposeScenario turns a chosen scenario into an ordered list of scene
// prompts. The model image is the recurring character, the product image the
// featured object.
func (c *Client) DecomposeScenario(ctx context.Context, model, product domain.ImageRef, scenarioDescription string) ([]string, error) {
	if c.apiKey == "" {
		return nil, domain.ErrMissingCredential
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				inlinePart(model),
				inlinePart(product),
				{Text: buildDecomposePrompt(scenarioDescription)},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.5,
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.textModel)), payload, &response); err != nil {
		return nil, err
	}

	text := extractText(response)
	if text == "" {
		return nil, fmt.Errorf("%w: empty decomposition response", domain.ErrGenerationFailed)
	}
	parsed, err := parsePayload[promptsPayload](text)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed prompts payload: %v", domain.ErrGenerationFailed, err)
	}

	var prompts []string
	for _, p := range parsed.Prompts {
		if strings.TrimSpace(p) != "" {
			prompts = append(prompts, p)
		}
	}

	c.logger.Debug().
		Str("model", c.textModel).
		Int("count", len(prompts)).
		Msg("genai: decomposed scenario into scene prompts")

	return prompts, nil
}

// GenerateSceneImage synthesizes one photorealistic still for a scene prompt,
// grounded on both reference images. The first inline image part wins.
func (c *Client) GenerateSceneImage(ctx context.Context, model, product domain.ImageRef, promptText string) (domain.ImageRef, error) {
	if c.apiKey == "" {
		return domain.ImageRef{}, domain.ErrMissingCredential
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				inlinePart(model),
				inlinePart(product),
				{Text: buildSceneImagePrompt(promptText)},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.imageModel)), payload, &response); err != nil {
		return domain.ImageRef{}, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return domain.ImageRef{}, fmt.Errorf("%w: decode inline image: %v", domain.ErrGenerationFailed, err)
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return domain.ImageRef{Data: data, MimeType: mime}, nil
		}
	}

	return domain.ImageRef{}, fmt.Errorf("%w: no image content returned", domain.ErrGenerationFailed)
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: invoke gemini: %v", domain.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode gemini response: %v", domain.ErrGenerationFailed, err)
	}
	return nil
}

func (c *Client) decodeAPIError(resp *http.Response) error {
	var apiErr geminiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
			strings.Contains(apiErr.Error.Message, "API key not valid") {
			return fmt.Errorf("%w: %s", domain.ErrMissingCredential, apiErr.Error.Message)
		}
		return fmt.Errorf("%w: gemini status %d: %s", domain.ErrGenerationFailed, resp.StatusCode, apiErr.Error.Message)
	}
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		return fmt.Errorf("%w: gemini status %d: %s", domain.ErrGenerationFailed, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return fmt.Errorf("%w: gemini status %d", domain.ErrGenerationFailed, resp.StatusCode)
}

func inlinePart(img domain.ImageRef) geminiPart {
	return geminiPart{InlineData: &geminiInlineData{
		MimeType: img.MimeType,
		Data:     base64.StdEncoding.EncodeToString(img.Data),
	}}
}

func buildScenarioPrompt(productDescription string) string {
	sb := &strings.Builder{}
	sb.WriteString("You are a creative director for social media marketing. Analyze the provided product image. ")
	if desc := strings.TrimSpace(productDescription); desc != "" {
		fmt.Fprintf(sb, "Also use this product description: %q. ", desc)
	}
	sb.WriteString("Based on the product, generate 5 engaging short-video scenarios (20-30 seconds each) for an affiliate marketing video. ")
	sb.WriteString("The video will feature a person (the model) and this product, highlighting the product's benefits in a visually compelling way. ")
	sb.WriteString(`Respond strictly as JSON matching this schema: {"scenarios":[{"title":string,"description":string}]}.`)
	return sb.String()
}

func buildDecomposePrompt(scenarioDescription string) string {
	sb := &strings.Builder{}
	sb.WriteString("Important: the first image provided is the 'model' and the second image is the 'product'. ")
	fmt.Fprintf(sb, "Based on this scenario: %q, break it down into 4 detailed scene-by-scene visual prompts for a video generation AI. ", scenarioDescription)
	sb.WriteString("The video stars a character based on the first reference image (the model) and features the product from the second reference image. ")
	sb.WriteString("Each prompt must describe a 5-7 second clip, and the prompts must flow together to tell the scenario's story. ")
	sb.WriteString(`Respond strictly as JSON matching this schema: {"prompts":[string]}.`)
	return sb.String()
}

func buildSceneImagePrompt(promptText string) string {
	sb := &strings.Builder{}
	sb.WriteString("IMPORTANT: the first image is the 'model', the second image is the 'product'. ")
	sb.WriteString("Create a photorealistic image based on the following video prompt. ")
	sb.WriteString("The image must show a model and a product closely matching the provided reference images. ")
	fmt.Fprintf(sb, "Prompt: %q", promptText)
	return sb.String()
}
