// internal/models/entry.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// NutritionEstimate is what the vision model reports for one photo.
type NutritionEstimate struct {
	FoodName    string `json:"foodName"`
	Calories    int    `json:"calories"`
	Protein     int    `json:"protein"`
	Carbs       int    `json:"carbs"`
	Fat         int    `json:"fat"`
	HealthScore *int   `json:"healthScore,omitempty"`
	Ingredients string `json:"ingredients,omitempty"`
}

type FoodEntry struct {
	ID          string    `json:"id"`
	FoodName    string    `json:"food_name"`
	Calories    int       `json:"calories"`
	Protein     int       `json:"protein"`
	Carbs       int       `json:"carbs"`
	Fat         int       `json:"fat"`
	Timestamp   time.Time `json:"timestamp"`
	Image       []byte    `json:"-"`
	HealthScore *int      `json:"health_score,omitempty"`
	Ingredients string    `json:"ingredients,omitempty"`
}

// NewFoodEntry stamps an estimate with a fresh ID and the capture time.
func NewFoodEntry(est NutritionEstimate, capturedAt time.Time, image []byte) FoodEntry {
	return FoodEntry{
		ID:          uuid.New().String(),
		FoodName:    est.FoodName,
		Calories:    est.Calories,
		Protein:     est.Protein,
		Carbs:       est.Carbs,
		Fat:         est.Fat,
		Timestamp:   capturedAt,
		Image:       image,
		HealthScore: est.HealthScore,
		Ingredients: est.Ingredients,
	}
}

func (e FoodEntry) Macros() Macros {
	return Macros{Calories: e.Calories, Protein: e.Protein, Carbs: e.Carbs, Fat: e.Fat}
}

func (e FoodEntry) HasImage() bool {
	return len(e.Image) > 0
}

type Macros struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Carbs:    m.Carbs + o.Carbs,
		Fat:      m.Fat + o.Fat,
	}
}

func (m Macros) Sub(o Macros) Macros {
	return Macros{
		Calories: m.Calories - o.Calories,
		Protein:  m.Protein - o.Protein,
		Carbs:    m.Carbs - o.Carbs,
		Fat:      m.Fat - o.Fat,
	}
}

// DailyGoals are per-day targets for the home screen rings.
type DailyGoals = Macros

func DefaultDailyGoals() DailyGoals {
	return DailyGoals{Calories: 2400, Protein: 120, Carbs: 330, Fat: 66}
}

type MacroPercent struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

type DaySummary struct {
	Date       string       `json:"date"`
	Consumed   Macros       `json:"consumed"`
	Goals      DailyGoals   `json:"goals"`
	Remaining  Macros       `json:"remaining"`
	Percent    MacroPercent `json:"percent"`
	EntryCount int          `json:"entry_count"`
}

// NewDaySummary derives remaining and percent-of-goal from consumed totals.
// A zero goal reports 0%.
func NewDaySummary(date string, consumed Macros, goals DailyGoals, count int) DaySummary {
	return DaySummary{
		Date:      date,
		Consumed:  consumed,
		Goals:     goals,
		Remaining: goals.Sub(consumed),
		Percent: MacroPercent{
			Calories: percentOf(consumed.Calories, goals.Calories),
			Protein:  percentOf(consumed.Protein, goals.Protein),
			Carbs:    percentOf(consumed.Carbs, goals.Carbs),
			Fat:      percentOf(consumed.Fat, goals.Fat),
		},
		EntryCount: count,
	}
}

func percentOf(v, goal int) float64 {
	if goal == 0 {
		return 0
	}
	return float64(v) * 100 / float64(goal)
}
