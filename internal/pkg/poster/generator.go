package poster

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minivisionary/creditwallet/internal/pkg/env"
)

// GenerationRequest describes one poster to render.
type GenerationRequest struct {
	Prompt string
	Style  string
	Size   string
}

// GeneratedImage is the rendered output ready for upload.
type GeneratedImage struct {
	Data        []byte
	ContentType string
}

// Generator renders poster images from a text prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GeneratedImage, error)
}

// ImageClient calls an OpenAI-compatible image generation API.
type ImageClient struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

const defaultImageAPIBaseURL = "https://api.openai.com/v1"

// NewImageClientFromEnv builds the client from IMAGE_API_* environment
// variables.
func NewImageClientFromEnv() *ImageClient {
	return &ImageClient{
		APIKey:     strings.TrimSpace(env.GetEnv("IMAGE_API_KEY", "")),
		BaseURL:    strings.TrimRight(env.GetEnv("IMAGE_API_BASE_URL", defaultImageAPIBaseURL), "/"),
		Model:      env.GetEnv("IMAGE_API_MODEL", "gpt-image-1"),
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured reports whether an API key is present.
func (c *ImageClient) IsConfigured() bool {
	return c.APIKey != ""
}

type imageGenerationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imageGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate renders one image. A style is folded into the prompt; the provider
// only understands free text.
func (c *ImageClient) Generate(ctx context.Context, req GenerationRequest) (*GeneratedImage, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("image API is not configured")
	}

	prompt := req.Prompt
	if req.Style != "" {
		prompt = fmt.Sprintf("%s, in %s style", prompt, req.Style)
	}

	body, err := json.Marshal(imageGenerationRequest{
		Model:  c.Model,
		Prompt: prompt,
		N:      1,
		Size:   req.Size,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image API request failed: %w", err)
	}
	defer resp.Body.Close()

	var result imageGenerationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("image API returned unreadable response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("image API error: %s", msg)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("image API returned no images")
	}

	item := result.Data[0]
	if item.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("image API returned invalid base64: %w", err)
		}
		return &GeneratedImage{Data: data, ContentType: "image/png"}, nil
	}
	if item.URL != "" {
		return c.download(ctx, item.URL)
	}
	return nil, fmt.Errorf("image API returned neither data nor URL")
}

func (c *ImageClient) download(ctx context.Context, url string) (*GeneratedImage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download failed: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return &GeneratedImage{Data: data, ContentType: contentType}, nil
}
