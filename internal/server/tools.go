// internal/server/tools.go
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"mcp-food-log/internal/analysis"
	"mcp-food-log/internal/models"
)

const defaultEntryLimit = 20

type AnalyzeFoodParams struct {
	Image     string `json:"image" description:"Photo of the food, base64 or data URI (jpeg, png or gif)"`
	Timestamp string `json:"timestamp,omitempty" description:"RFC3339 capture time (defaults to now)"`
	Log       *bool  `json:"log,omitempty" description:"Append the result to the food log (default true)"`
}

type LogFoodParams struct {
	FoodName    string `json:"food_name" description:"Name of the food"`
	Calories    int    `json:"calories"`
	Protein     int    `json:"protein"`
	Carbs       int    `json:"carbs"`
	Fat         int    `json:"fat"`
	HealthScore *int   `json:"health_score,omitempty"`
	Ingredients string `json:"ingredients,omitempty"`
	Timestamp   string `json:"timestamp,omitempty" description:"RFC3339 time eaten (defaults to now)"`
}

type RemoveEntryParams struct {
	ID    string `json:"id,omitempty" description:"Entry ID"`
	Index *int   `json:"index,omitempty" description:"Position in the log, 0 is the oldest entry"`
}

type GetEntriesParams struct {
	Date      string `json:"date,omitempty" description:"Single day (YYYY-MM-DD)"`
	StartDate string `json:"start_date,omitempty" description:"First day of a range (YYYY-MM-DD)"`
	EndDate   string `json:"end_date,omitempty" description:"Last day of a range (YYYY-MM-DD)"`
	Limit     int    `json:"limit,omitempty" description:"Maximum number of entries, most recent kept"`
}

type DailySummaryParams struct {
	Date string `json:"date,omitempty" description:"Day to summarize (YYYY-MM-DD, defaults to today)"`
}

type AnalyzeFoodResult struct {
	Estimate *models.NutritionEstimate `json:"estimate"`
	Entry    *models.FoodEntry         `json:"entry,omitempty"`
}

type DailySummaryResult struct {
	models.DaySummary
	Streak        int           `json:"streak"`
	SessionTotals models.Macros `json:"session_totals"`
}

// extractParams converts the request arguments into target.
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}

	return nil
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func (s *FoodLogServer) registerTools() {
	tools := []struct {
		def     *protocol.Tool
		handler toolHandler
	}{
		{
			def: &protocol.Tool{
				Name:        "analyze_food",
				Description: "Estimate the nutrition of a food photo and add it to the food log",
				InputSchema: protocol.InputSchema{
					Type: protocol.Object,
					Properties: map[string]interface{}{
						"image":     prop("string", "Photo of the food, base64 or data URI (jpeg, png or gif)"),
						"timestamp": prop("string", "RFC3339 capture time (defaults to now)"),
						"log":       prop("boolean", "Append the result to the food log (default true)"),
					},
					Required: []string{"image"},
				},
			},
			handler: s.handleAnalyzeFood,
		},
		{
			def: &protocol.Tool{
				Name:        "log_food",
				Description: "Add a food entry with known nutrition values",
				InputSchema: protocol.InputSchema{
					Type: protocol.Object,
					Properties: map[string]interface{}{
						"food_name":    prop("string", "Name of the food"),
						"calories":     prop("integer", "Calories (kcal)"),
						"protein":      prop("integer", "Protein in grams"),
						"carbs":        prop("integer", "Carbohydrates in grams"),
						"fat":          prop("integer", "Fat in grams"),
						"health_score": prop("integer", "Health score from 0 to 10"),
						"ingredients":  prop("string", "Comma-separated ingredients"),
						"timestamp":    prop("string", "RFC3339 time eaten (defaults to now)"),
					},
					Required: []string{"food_name", "calories", "protein", "carbs", "fat"},
				},
			},
			handler: s.handleLogFood,
		},
		{
			def: &protocol.Tool{
				Name:        "remove_entry",
				Description: "Remove a food entry by ID or by position in the log",
				InputSchema: protocol.InputSchema{
					Type: protocol.Object,
					Properties: map[string]interface{}{
						"id":    prop("string", "Entry ID"),
						"index": prop("integer", "Position in the log, 0 is the oldest entry"),
					},
				},
			},
			handler: s.handleRemoveEntry,
		},
		{
			def: &protocol.Tool{
				Name:        "get_entries",
				Description: "List food entries for a day, a date range, or the most recent ones",
				InputSchema: protocol.InputSchema{
					Type: protocol.Object,
					Properties: map[string]interface{}{
						"date":       prop("string", "Single day (YYYY-MM-DD)"),
						"start_date": prop("string", "First day of a range (YYYY-MM-DD)"),
						"end_date":   prop("string", "Last day of a range (YYYY-MM-DD)"),
						"limit":      prop("integer", "Maximum number of entries, most recent kept"),
					},
				},
			},
			handler: s.handleGetEntries,
		},
		{
			def: &protocol.Tool{
				Name:        "daily_summary",
				Description: "Totals for a day against the daily goals, plus the logging streak",
				InputSchema: protocol.InputSchema{
					Type: protocol.Object,
					Properties: map[string]interface{}{
						"date": prop("string", "Day to summarize (YYYY-MM-DD, defaults to today)"),
					},
				},
			},
			handler: s.handleDailySummary,
		},
	}

	s.tools = make(map[string]toolHandler, len(tools))
	for _, t := range tools {
		s.tools[t.def.Name] = t.handler
		s.server.RegisterTool(t.def, s.mcpHandler(t.def.Name, t.handler))
		log.Printf("[server] registered tool: %s", t.def.Name)
	}
}

// handleAnalyzeFood sends the photo for analysis and logs the result.
// Nothing is logged if analysis fails or the caller went away meanwhile.
func (s *FoodLogServer) handleAnalyzeFood(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params AnalyzeFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.Image == "" {
		return nil, fmt.Errorf("%w: image is required", errInvalidParams)
	}

	timestamp, err := s.parseTimestamp(params.Timestamp)
	if err != nil {
		return nil, err
	}

	img, err := decodeImage(params.Image)
	if err != nil {
		return nil, err
	}
	jpegData, err := analysis.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}

	est, err := s.analyzer.AnalyzeJPEG(ctx, jpegData)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze food: %w", err)
	}

	result := AnalyzeFoodResult{Estimate: est}
	if params.Log == nil || *params.Log {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis finished after cancel, not logged: %w", err)
		}
		entry, err := s.foodLog.Record(*est, timestamp, jpegData)
		if err != nil {
			return nil, fmt.Errorf("failed to log entry: %w", err)
		}
		result.Entry = &entry
	}

	return s.createJSONResponse(result)
}

func (s *FoodLogServer) handleLogFood(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params LogFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.FoodName) == "" {
		return nil, fmt.Errorf("%w: food_name is required", errInvalidParams)
	}

	timestamp, err := s.parseTimestamp(params.Timestamp)
	if err != nil {
		return nil, err
	}

	entry, err := s.foodLog.Record(models.NutritionEstimate{
		FoodName:    params.FoodName,
		Calories:    params.Calories,
		Protein:     params.Protein,
		Carbs:       params.Carbs,
		Fat:         params.Fat,
		HealthScore: params.HealthScore,
		Ingredients: params.Ingredients,
	}, timestamp, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to log entry: %w", err)
	}

	return s.createJSONResponse(entry)
}

func (s *FoodLogServer) handleRemoveEntry(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params RemoveEntryParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	var removed models.FoodEntry
	var err error
	switch {
	case params.ID != "":
		removed, err = s.foodLog.Remove(params.ID)
	case params.Index != nil:
		removed, err = s.foodLog.RemoveAt(*params.Index)
	default:
		return nil, fmt.Errorf("%w: id or index is required", errInvalidParams)
	}
	if err != nil {
		return nil, err
	}

	return s.createJSONResponse(removed)
}

func (s *FoodLogServer) handleGetEntries(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetEntriesParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	var entries []models.FoodEntry
	switch {
	case params.Date != "":
		day, err := s.parseDate(params.Date)
		if err != nil {
			return nil, err
		}
		entries = s.foodLog.EntriesOnDate(day)
	case params.StartDate != "" || params.EndDate != "":
		from, to := time.Time{}, time.Now()
		var err error
		if params.StartDate != "" {
			if from, err = s.parseDate(params.StartDate); err != nil {
				return nil, err
			}
		}
		if params.EndDate != "" {
			if to, err = s.parseDate(params.EndDate); err != nil {
				return nil, err
			}
		}
		entries = s.foodLog.EntriesBetween(from, to)
	default:
		limit := params.Limit
		if limit <= 0 {
			limit = defaultEntryLimit
		}
		entries = s.foodLog.MostRecent(limit)
	}

	if params.Limit > 0 && len(entries) > params.Limit {
		entries = entries[len(entries)-params.Limit:]
	}
	if entries == nil {
		entries = []models.FoodEntry{}
	}

	return s.createJSONResponse(entries)
}

func (s *FoodLogServer) handleDailySummary(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params DailySummaryParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	day := time.Now()
	if params.Date != "" {
		var err error
		if day, err = s.parseDate(params.Date); err != nil {
			return nil, err
		}
	}

	return s.createJSONResponse(DailySummaryResult{
		DaySummary:    s.foodLog.Summary(day, s.config.Goals),
		Streak:        s.foodLog.Streak(day),
		SessionTotals: s.foodLog.Totals(),
	})
}

func (s *FoodLogServer) parseTimestamp(v string) (time.Time, error) {
	if v == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp format: %v", errInvalidParams, err)
	}
	return t, nil
}

func (s *FoodLogServer) parseDate(v string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", v, s.foodLog.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", errInvalidParams, v)
	}
	return t, nil
}

// decodeImage accepts raw base64 or a data URI.
func decodeImage(v string) (image.Image, error) {
	if strings.HasPrefix(v, "data:") {
		comma := strings.IndexByte(v, ',')
		if comma == -1 {
			return nil, fmt.Errorf("%w: invalid data URI", analysis.ErrEncoding)
		}
		v = v[comma+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", analysis.ErrEncoding, err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrEncoding, err)
	}
	return img, nil
}
