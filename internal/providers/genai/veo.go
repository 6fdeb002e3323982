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

	"studio/internal/domain"
)

type veoPredictRequest struct {
	Instances  []veoInstance  `json:"instances"`
	Parameters *veoParameters `json:"parameters,omitempty"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

type veoOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Error    *struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// RenderVideo submits a Veo video job seeded with one reference image, polls
// the long-running operation until it reports done, then downloads the result.
// The poll loop is bounded by PollMaxAttempts; beyond it the job is treated as
// failed even though the remote operation may still complete later.
func (c *Client) RenderVideo(ctx context.Context, promptText string, seed domain.ImageRef) (domain.VideoClip, error) {
	if c.apiKey == "" {
		return domain.VideoClip{}, domain.ErrMissingCredential
	}

	mime := seed.MimeType
	if mime == "" {
		mime = "image/png"
	}
	payload := veoPredictRequest{
		Instances: []veoInstance{{
			Prompt: promptText,
			Image: &veoImage{
				BytesBase64Encoded: base64.StdEncoding.EncodeToString(seed.Data),
				MimeType:           mime,
			},
		}},
		Parameters: &veoParameters{
			AspectRatio: "16:9",
			Resolution:  "720p",
		},
	}

	var op veoOperation
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.videoModel))
	if err := c.invoke(ctx, path, payload, &op); err != nil {
		return domain.VideoClip{}, err
	}
	if op.Name == "" {
		return domain.VideoClip{}, fmt.Errorf("%w: video job submission returned no operation", domain.ErrGenerationFailed)
	}

	c.logger.Info().
		Str("model", c.videoModel).
		Str("operation", op.Name).
		Msg("genai: video job submitted")

	final, err := c.pollVideoOperation(ctx, op.Name)
	if err != nil {
		return domain.VideoClip{}, err
	}

	uri := videoURI(final)
	if uri == "" {
		return domain.VideoClip{}, fmt.Errorf("%w: video job finished without output", domain.ErrGenerationFailed)
	}
	return c.downloadVideo(ctx, uri)
}

func (c *Client) pollVideoOperation(ctx context.Context, name string) (*veoOperation, error) {
	for attempt := 1; attempt <= c.pollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		op, err := c.getOperation(ctx, name)
		if err != nil {
			return nil, err
		}
		if op.Error != nil {
			return nil, fmt.Errorf("%w: video job failed: %s", domain.ErrGenerationFailed, op.Error.Message)
		}
		if op.Done {
			c.logger.Debug().
				Str("operation", name).
				Int("attempts", attempt).
				Msg("genai: video job completed")
			return op, nil
		}
	}
	return nil, fmt.Errorf("%w: video job did not finish within %d polls", domain.ErrGenerationFailed, c.pollMaxAttempts)
}

func (c *Client) getOperation(ctx context.Context, name string) (*veoOperation, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(name, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: poll video job: %v", domain.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.decodeAPIError(resp)
	}

	var op veoOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("%w: decode operation: %v", domain.ErrGenerationFailed, err)
	}
	return &op, nil
}

func (c *Client) downloadVideo(ctx context.Context, uri string) (domain.VideoClip, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return domain.VideoClip{}, fmt.Errorf("parse video uri: %w", err)
	}
	// The download locator requires the key as a query parameter.
	q := parsed.Query()
	q.Set("key", c.apiKey)
	parsed.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return domain.VideoClip{}, fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.VideoClip{}, fmt.Errorf("%w: download video: %v", domain.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return domain.VideoClip{}, fmt.Errorf("%w: download video status %d: %s", domain.ErrGenerationFailed, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return domain.VideoClip{}, fmt.Errorf("%w: read video: %v", domain.ErrGenerationFailed, err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") {
		mime = "video/mp4"
	}

	c.logger.Debug().
		Int("bytes", buf.Len()).
		Str("mime", mime).
		Msg("genai: downloaded rendered video")

	return domain.VideoClip{Data: buf.Bytes(), MimeType: mime}, nil
}

func videoURI(op *veoOperation) string {
	if op == nil || op.Response == nil {
		return ""
	}
	samples := op.Response.GenerateVideoResponse.GeneratedSamples
	if len(samples) == 0 {
		return ""
	}
	return samples[0].Video.URI
}
