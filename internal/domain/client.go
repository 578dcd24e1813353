package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client represents a gym member's record.
// The AssignedUserID is a non-owning link to a User: at most one client may
// reference a given user at any time, and deleting a client never deletes
// the user. nil means "unassigned"; empty-string input is normalized to nil
// at the boundary.
type Client struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Active         bool               `bson:"active" json:"active"`
	Routine        string             `bson:"routine" json:"routine"`
	GoalWeight     string             `bson:"goalWeight" json:"goalWeight"`
	AssignedUserID *string            `bson:"assignedUserId,omitempty" json:"assignedUserId,omitempty"`
	Nutrition      NutritionPlan      `bson:"-" json:"nutrition"`
	Progress       []ProgressEntry    `bson:"-" json:"progress"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NutritionPlan holds free-form macro targets plus the adherence log.
// Macro values are deliberately free text (e.g. "2200 kcal", "150g+").
type NutritionPlan struct {
	Calories  string           `json:"calories,omitempty"`
	Protein   string           `json:"protein,omitempty"`
	Carbs     string           `json:"carbs,omitempty"`
	Fats      string           `json:"fats,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	Adherence []AdherenceEntry `json:"adherence"`
}

// AdherenceEntry records whether the nutrition plan was followed on a date.
type AdherenceEntry struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Note      string `json:"note,omitempty"`
}

// ProgressEntry is one weight measurement. Dates use the YYYY-MM-DD form
// (longer ISO timestamps are truncated to the calendar day on validation).
type ProgressEntry struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
	Reps   string  `json:"reps,omitempty"`
}

// UnmarshalJSON accepts the weight either as a JSON number or as a numeric
// string; the original data set contains both forms.
func (e *ProgressEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date   string          `json:"date"`
		Weight json.RawMessage `json:"weight"`
		Reps   string          `json:"reps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Date = raw.Date
	e.Reps = raw.Reps
	e.Weight = 0
	if len(raw.Weight) == 0 {
		return nil
	}
	var num float64
	if err := json.Unmarshal(raw.Weight, &num); err == nil {
		e.Weight = num
		return nil
	}
	var str string
	if err := json.Unmarshal(raw.Weight, &str); err != nil {
		return err
	}
	if str == "" {
		return nil
	}
	num, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return err
	}
	e.Weight = num
	return nil
}

// EmptyNutrition returns the neutral nutrition plan new clients start with.
func EmptyNutrition() NutritionPlan {
	return NutritionPlan{Adherence: []AdherenceEntry{}}
}

// DecodeNutrition deserializes a stored nutrition document. Corrupt or
// absent data yields the empty plan; callers never observe a parse error.
func DecodeNutrition(raw string) NutritionPlan {
	var plan NutritionPlan
	if raw == "" || json.Unmarshal([]byte(raw), &plan) != nil {
		return EmptyNutrition()
	}
	if plan.Adherence == nil {
		plan.Adherence = []AdherenceEntry{}
	}
	return plan
}

// DecodeProgress deserializes a stored progress sequence, falling back to
// an empty sequence on corrupt or absent data.
func DecodeProgress(raw string) []ProgressEntry {
	var entries []ProgressEntry
	if raw == "" || json.Unmarshal([]byte(raw), &entries) != nil {
		return []ProgressEntry{}
	}
	return entries
}

// EncodeNutrition serializes a nutrition plan for storage.
func EncodeNutrition(plan NutritionPlan) string {
	if plan.Adherence == nil {
		plan.Adherence = []AdherenceEntry{}
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return `{"adherence":[]}`
	}
	return string(data)
}

// EncodeProgress serializes a progress sequence for storage.
func EncodeProgress(entries []ProgressEntry) string {
	if entries == nil {
		entries = []ProgressEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return `[]`
	}
	return string(data)
}
