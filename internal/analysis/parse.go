package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mcp-food-log/internal/models"
)

// Food names the model uses to say "nothing to log".
var nonFoodSentinels = []string{
	"No food detected",
	"Multiple food items",
}

// StripCodeFence removes Markdown code-fence markers (``` and ```json)
// anywhere in a model reply and trims surrounding whitespace.
func StripCodeFence(content string) string {
	s := strings.ReplaceAll(content, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// wireEstimate has pointer fields so that missing keys can be told apart
// from zero values.
type wireEstimate struct {
	FoodName    *string `json:"foodName"`
	Calories    *int    `json:"calories"`
	Protein     *int    `json:"protein"`
	Carbs       *int    `json:"carbs"`
	Fat         *int    `json:"fat"`
	HealthScore *int    `json:"healthScore"`
	Ingredients *string `json:"ingredients"`
}

// ParseContent turns the message content of a completion into an estimate.
// The content must hold exactly one JSON object with the estimate's keys,
// optionally fenced. A sentinel food name yields ErrNoFoodDetected.
func ParseContent(content string) (*models.NutritionEstimate, error) {
	s := StripCodeFence(content)
	if s == "" {
		return nil, ErrEmptyResponse
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()

	var w wireEstimate
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrSchema)
	}

	var missing []string
	if w.FoodName == nil {
		missing = append(missing, "foodName")
	}
	if w.Calories == nil {
		missing = append(missing, "calories")
	}
	if w.Protein == nil {
		missing = append(missing, "protein")
	}
	if w.Carbs == nil {
		missing = append(missing, "carbs")
	}
	if w.Fat == nil {
		missing = append(missing, "fat")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrSchema, strings.Join(missing, ", "))
	}

	est := &models.NutritionEstimate{
		FoodName:    strings.TrimSpace(*w.FoodName),
		Calories:    *w.Calories,
		Protein:     *w.Protein,
		Carbs:       *w.Carbs,
		Fat:         *w.Fat,
		HealthScore: w.HealthScore,
	}
	if w.Ingredients != nil {
		est.Ingredients = strings.TrimSpace(*w.Ingredients)
	}

	if isNonFood(est.FoodName) {
		return nil, fmt.Errorf("%w: %q", ErrNoFoodDetected, est.FoodName)
	}
	if err := validate(est); err != nil {
		return nil, err
	}

	return est, nil
}

func isNonFood(name string) bool {
	for _, s := range nonFoodSentinels {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}

func validate(est *models.NutritionEstimate) error {
	if est.FoodName == "" {
		return fmt.Errorf("%w: empty foodName", ErrSchema)
	}
	if est.Calories < 0 || est.Protein < 0 || est.Carbs < 0 || est.Fat < 0 {
		return fmt.Errorf("%w: negative macro value", ErrSchema)
	}
	if est.HealthScore != nil && (*est.HealthScore < 0 || *est.HealthScore > 10) {
		return fmt.Errorf("%w: healthScore %d outside [0,10]", ErrSchema, *est.HealthScore)
	}
	return nil
}

type completionResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extractContent pulls choices[0].message.content out of a completion body.
func extractContent(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", ErrEmptyResponse
	}

	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	msg := resp.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", fmt.Errorf("%w: missing choices[0].message.content", ErrMalformedResponse)
	}
	if strings.TrimSpace(*msg.Content) == "" {
		return "", ErrEmptyResponse
	}

	return *msg.Content, nil
}
