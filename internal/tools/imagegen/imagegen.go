// Package imagegen provides the image generation tool: a thin client over
// an image rendering API plus the agent.Tool that exposes it to the model.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/haasonsaas/agentbridge/internal/agent"
)

// DefaultModel is used when the model omits the model parameter.
const DefaultModel = "gemini-2.5-flash-image"

// DefaultAspectRatio is used when the model omits the aspect ratio.
const DefaultAspectRatio = "1:1"

// DefaultTemperature is used when the model omits the temperature.
const DefaultTemperature = 0.7

// Client calls the image rendering API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an image API client. timeout bounds each request;
// zero means 60 seconds, since image rendering is slow.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GenerateRequest are the rendering parameters sent upstream.
type GenerateRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	AspectRatio string  `json:"aspect_ratio"`
}

type generateResponse struct {
	ImageURLs []string `json:"image_urls"`
	Error     string   `json:"error,omitempty"`
}

// Generate renders images and returns their URLs.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) ([]string, error) {
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.AspectRatio == "" {
		req.AspectRatio = DefaultAspectRatio
	}
	if req.Temperature == 0 {
		req.Temperature = DefaultTemperature
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image API returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("image API error: %s", parsed.Error)
	}
	if len(parsed.ImageURLs) == 0 {
		return nil, fmt.Errorf("image API returned no images")
	}
	return parsed.ImageURLs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Uploader re-hosts a generated image on the chat platform and returns
// the platform media key.
type Uploader interface {
	UploadImageFromURL(ctx context.Context, url string) (string, error)
}

// Tool exposes image generation to the model. Upload failures for
// individual images are tolerated; the image URL is still returned.
type Tool struct {
	client   *Client
	uploader Uploader
	logger   *slog.Logger
}

// NewTool creates the image generation tool. uploader may be nil, in
// which case results carry URLs only.
func NewTool(client *Client, uploader Uploader, logger *slog.Logger) *Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{client: client, uploader: uploader, logger: logger}
}

func (t *Tool) Name() string {
	return "generate_image"
}

func (t *Tool) Description() string {
	return "Generate images from a text prompt. Returns image URLs and, when available, platform image keys that can be embedded in chat messages."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"prompt": {
				"type": "string",
				"description": "Description of the image to generate"
			},
			"model": {
				"type": "string",
				"enum": ["gemini-2.5-flash-image", "gemini-3-pro-image-preview", "midjourney", "zimage", "seedream-4-5-251128"],
				"description": "Image model to use, defaults to gemini-2.5-flash-image"
			},
			"temperature": {
				"type": "number",
				"minimum": 0,
				"maximum": 2,
				"description": "Sampling temperature, defaults to 0.7"
			},
			"aspect_ratio": {
				"type": "string",
				"enum": ["1:1", "2:3", "3:2", "3:4", "4:3", "9:16", "16:9", "21:9"],
				"description": "Output aspect ratio, defaults to 1:1"
			}
		},
		"required": ["prompt"]
	}`)
}

type toolParams struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	AspectRatio string  `json:"aspect_ratio"`
}

type toolOutput struct {
	Success   bool     `json:"success"`
	ImageURLs []string `json:"imageUrls"`
	ImageKeys []string `json:"imageKeys,omitempty"`
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p toolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %s", err.Error())), nil
	}
	if p.Prompt == "" {
		return errorResult("prompt is required"), nil
	}

	urls, err := t.client.Generate(ctx, GenerateRequest{
		Prompt:      p.Prompt,
		Model:       p.Model,
		Temperature: p.Temperature,
		AspectRatio: p.AspectRatio,
	})
	if err != nil {
		t.logger.Warn("image generation failed", "error", err)
		return errorResult(err.Error()), nil
	}

	out := toolOutput{Success: true, ImageURLs: urls}
	if t.uploader != nil {
		for _, url := range urls {
			key, err := t.uploader.UploadImageFromURL(ctx, url)
			if err != nil {
				t.logger.Warn("image upload failed", "url", url, "error", err)
				continue
			}
			if key != "" {
				out.ImageKeys = append(out.ImageKeys, key)
			}
		}
	}

	content, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return &agent.ToolResult{Content: string(content)}, nil
}

func errorResult(msg string) *agent.ToolResult {
	content, _ := json.Marshal(map[string]string{"error": msg})
	return &agent.ToolResult{Content: string(content), IsError: true}
}
