// internal/analysis/client.go
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"time"

	"mcp-food-log/internal/models"
)

const (
	DefaultAPIURL    = "https://api.openai.com/v1/chat/completions"
	DefaultModel     = "gpt-4o"
	DefaultMaxTokens = 300
	DefaultTimeout   = 30 * time.Second

	// JPEGQuality is the fixed compression quality for uploaded photos.
	JPEGQuality = 80
)

const foodPrompt = `Analyze the food in this image. Respond with JSON only, no other text, in exactly this format:
{"foodName": "name of the food", "calories": 0, "protein": 0, "carbs": 0, "fat": 0, "healthScore": 0, "ingredients": "ingredient1, ingredient2"}

Rules:
- If there are multiple food items, give one combined name and sum their nutrition.
- calories is in kcal; protein, carbs and fat are in grams. All four are integers.
- healthScore is an integer from 1 (unhealthy) to 10 (very healthy).
- ingredients is a comma-separated list of the main ingredients.
- If there is no food in the image, return {"foodName": "No food detected", "calories": 0, "protein": 0, "carbs": 0, "fat": 0, "healthScore": 0, "ingredients": ""}.`

type Config struct {
	APIKey    string
	APIURL    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client sends food photos to a vision-capable chat-completion endpoint.
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
	maxTokens  int
}

func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiURL:    cfg.APIURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type completionRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

// EncodeJPEG compresses img at JPEGQuality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrEncoding)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

// Analyze makes exactly one request for img. Cancelling ctx aborts the
// request and surfaces as ErrTransport.
func (c *Client) Analyze(ctx context.Context, img image.Image) (*models.NutritionEstimate, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	return c.AnalyzeJPEG(ctx, data)
}

// AnalyzeJPEG is Analyze for an already encoded photo.
func (c *Client) AnalyzeJPEG(ctx context.Context, jpegData []byte) (*models.NutritionEstimate, error) {
	if len(jpegData) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrEncoding)
	}

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
	reqBody := completionRequest{
		Model: c.model,
		Messages: []message{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: foodPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
				},
			},
		},
		MaxTokens: c.maxTokens,
	}

	content, err := c.complete(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	est, err := ParseContent(content)
	if err != nil {
		log.Printf("[analysis] could not use model reply: %v", err)
		return nil, err
	}
	return est, nil
}

func (c *Client) complete(ctx context.Context, reqBody completionRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", ErrEncoding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create HTTP request: %v", ErrTransport, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[analysis] request failed with status %d: %s", resp.StatusCode, string(body))
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return extractContent(body)
}
