package domain

import (
	"encoding/json"
	"testing"
)

func TestDecodeNutritionFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty string", raw: ""},
		{name: "corrupt json", raw: "{not json"},
		{name: "wrong shape", raw: `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := DecodeNutrition(tt.raw)
			if plan.Adherence == nil {
				t.Fatal("expected non-nil adherence fallback")
			}
			if len(plan.Adherence) != 0 || plan.Calories != "" {
				t.Fatalf("expected empty plan, got %+v", plan)
			}
		})
	}
}

func TestDecodeNutritionValid(t *testing.T) {
	raw := `{"calories":"2200 kcal","protein":"150g","adherence":[{"date":"2024-01-01","completed":true,"note":"ok"}]}`
	plan := DecodeNutrition(raw)

	if plan.Calories != "2200 kcal" || plan.Protein != "150g" {
		t.Fatalf("macros not decoded: %+v", plan)
	}
	if len(plan.Adherence) != 1 || !plan.Adherence[0].Completed {
		t.Fatalf("adherence not decoded: %+v", plan.Adherence)
	}
}

func TestDecodeNutritionMissingAdherence(t *testing.T) {
	plan := DecodeNutrition(`{"calories":"1800"}`)
	if plan.Adherence == nil {
		t.Fatal("adherence must never be nil after decode")
	}
}

func TestDecodeProgressFallback(t *testing.T) {
	for _, raw := range []string{"", "{}", "[{bad", `[{"date":"2024-01-01","weight":"abc"}]`} {
		entries := DecodeProgress(raw)
		if entries == nil {
			t.Fatalf("DecodeProgress(%q) returned nil", raw)
		}
		if len(entries) != 0 {
			t.Fatalf("DecodeProgress(%q) = %+v, want empty", raw, entries)
		}
	}
}

func TestProgressEntryWeightForms(t *testing.T) {
	// The legacy data set stores weights both as numbers and as strings.
	raw := `[{"date":"2024-01-01","weight":82.5,"reps":"3x10"},{"date":"2024-01-02","weight":"81.9"}]`
	entries := DecodeProgress(raw)

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Weight != 82.5 || entries[0].Reps != "3x10" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Weight != 81.9 {
		t.Fatalf("string weight not coerced: %+v", entries[1])
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	plan := NutritionPlan{
		Calories:  "2000",
		Adherence: []AdherenceEntry{{Date: "2024-02-01", Completed: true}},
	}
	got := DecodeNutrition(EncodeNutrition(plan))
	if got.Calories != plan.Calories || len(got.Adherence) != 1 {
		t.Fatalf("nutrition round trip mismatch: %+v", got)
	}

	entries := []ProgressEntry{{Date: "2024-02-01", Weight: 80.1}}
	back := DecodeProgress(EncodeProgress(entries))
	if len(back) != 1 || back[0] != entries[0] {
		t.Fatalf("progress round trip mismatch: %+v", back)
	}
}

func TestEncodeNilSubdocuments(t *testing.T) {
	if EncodeProgress(nil) != "[]" {
		t.Fatalf("nil progress should encode as empty array, got %s", EncodeProgress(nil))
	}

	var plan NutritionPlan
	var decoded NutritionPlan
	if err := json.Unmarshal([]byte(EncodeNutrition(plan)), &decoded); err != nil {
		t.Fatalf("encoded nutrition is not valid JSON: %v", err)
	}
	if decoded.Adherence == nil {
		t.Fatal("encoded nutrition must carry an adherence array")
	}
}
