package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bananaJSON = `{"foodName":"Banana","calories":105,"protein":1,"carbs":27,"fat":0,"healthScore":8,"ingredients":"banana"}`

func TestParseContent_Banana(t *testing.T) {
	inputs := map[string]string{
		"bare":         bananaJSON,
		"json fence":   "```json\n" + bananaJSON + "\n```",
		"plain fence":  "```\n" + bananaJSON + "\n```",
		"padded":       "\n\n  " + bananaJSON + "  \n",
		"inline fence": "```json " + bananaJSON + "```",
		"upper fence":  "```JSON\n" + bananaJSON + "\n```",
	}

	for name, content := range inputs {
		t.Run(name, func(t *testing.T) {
			est, err := ParseContent(content)
			require.NoError(t, err)
			assert.Equal(t, "Banana", est.FoodName)
			assert.Equal(t, 105, est.Calories)
			assert.Equal(t, 1, est.Protein)
			assert.Equal(t, 27, est.Carbs)
			assert.Equal(t, 0, est.Fat)
			require.NotNil(t, est.HealthScore)
			assert.Equal(t, 8, *est.HealthScore)
			assert.Equal(t, "banana", est.Ingredients)
		})
	}
}

func TestParseContent_OptionalFields(t *testing.T) {
	est, err := ParseContent(`{"foodName":"Rice","calories":200,"protein":4,"carbs":45,"fat":0}`)
	require.NoError(t, err)
	assert.Nil(t, est.HealthScore)
	assert.Empty(t, est.Ingredients)
}

func TestParseContent_NoFood(t *testing.T) {
	tests := []string{
		`{"foodName":"No food detected","calories":0,"protein":0,"carbs":0,"fat":0,"healthScore":0,"ingredients":""}`,
		"```json\n{\"foodName\":\"no food detected\",\"calories\":0,\"protein\":0,\"carbs\":0,\"fat\":0}\n```",
		`{"foodName":"Multiple food items","calories":0,"protein":0,"carbs":0,"fat":0}`,
	}

	for _, content := range tests {
		est, err := ParseContent(content)
		assert.Nil(t, est)
		assert.True(t, errors.Is(err, ErrNoFoodDetected), "got %v", err)
	}
}

func TestParseContent_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"prose", "Sorry, I cannot identify this image."},
		{"truncated", `{"foodName":"Banana","calories":10`},
		{"missing field", `{"foodName":"Banana","calories":105,"protein":1,"carbs":27}`},
		{"extra field", `{"foodName":"Banana","calories":105,"protein":1,"carbs":27,"fat":0,"sugar":14}`},
		{"wrong type", `{"foodName":"Banana","calories":"105","protein":1,"carbs":27,"fat":0}`},
		{"float macro", `{"foodName":"Banana","calories":105.5,"protein":1,"carbs":27,"fat":0}`},
		{"trailing object", bananaJSON + bananaJSON},
		{"array", `[` + bananaJSON + `]`},
		{"null", `null`},
		{"negative", `{"foodName":"Banana","calories":-5,"protein":1,"carbs":27,"fat":0}`},
		{"score too high", `{"foodName":"Banana","calories":105,"protein":1,"carbs":27,"fat":0,"healthScore":11}`},
		{"blank name", `{"foodName":"  ","calories":105,"protein":1,"carbs":27,"fat":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := ParseContent(tt.content)
			assert.Nil(t, est)
			assert.True(t, errors.Is(err, ErrSchema), "got %v", err)
		})
	}
}

func TestParseContent_Empty(t *testing.T) {
	_, err := ParseContent("```json\n```")
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestExtractContent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{"ok", `{"choices":[{"message":{"content":"hello"}}]}`, "hello", nil},
		{"empty body", "", "", ErrEmptyResponse},
		{"whitespace body", " \n", "", ErrEmptyResponse},
		{"not json", "<html>bad gateway</html>", "", ErrMalformedResponse},
		{"no choices", `{"choices":[]}`, "", ErrMalformedResponse},
		{"no message", `{"choices":[{}]}`, "", ErrMalformedResponse},
		{"no content", `{"choices":[{"message":{"role":"assistant"}}]}`, "", ErrMalformedResponse},
		{"empty content", `{"choices":[{"message":{"content":""}}]}`, "", ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractContent([]byte(tt.body))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
