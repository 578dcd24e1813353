package service

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"valhalla/gym-api/internal/domain"
)

var testPolicy = ProgressPolicy{MinWeight: 25, MaxWeight: 400}

// noon on 2024-01-02
var testNow = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

func baseClient() domain.Client {
	return domain.Client{
		Name:       "Bjorn",
		Active:     true,
		Routine:    "push/pull/legs",
		GoalWeight: "85",
		Nutrition: domain.NutritionPlan{
			Calories: "2400",
			Protein:  "160g",
			Notes:    "no sugar",
			Adherence: []domain.AdherenceEntry{
				{Date: "2024-01-01", Completed: true, Note: "clean day"},
			},
		},
		Progress: []domain.ProgressEntry{
			{Date: "2024-01-01", Weight: 84.2, Reps: "5x5"},
		},
	}
}

func mustParse(t *testing.T, body string) *ClientPatch {
	t.Helper()
	patch, err := ParseClientPatch([]byte(body))
	if err != nil {
		t.Fatalf("ParseClientPatch(%s): %v", body, err)
	}
	return patch
}

func TestApplyEmptyPatchRoundTrip(t *testing.T) {
	current := baseClient()
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleMember} {
		next, err := applyPatch(current, mustParse(t, `{}`), role, testNow, testPolicy)
		if err != nil {
			t.Fatalf("empty patch as %s: %v", role, err)
		}
		if !reflect.DeepEqual(next, current) {
			t.Fatalf("empty patch as %s changed the record:\n got %+v\nwant %+v", role, next, current)
		}
	}
}

func TestApplyScalarOverwrites(t *testing.T) {
	current := baseClient()
	patch := mustParse(t, `{"name":"Ragnar","routine":"upper/lower","goalWeight":"90","active":false}`)

	next, err := applyPatch(current, patch, domain.RoleAdmin, testNow, testPolicy)
	if err != nil {
		t.Fatal(err)
	}
	if next.Name != "Ragnar" || next.Routine != "upper/lower" || next.GoalWeight != "90" || next.Active {
		t.Fatalf("scalars not overwritten: %+v", next)
	}
	// Untouched fields keep their values.
	if !reflect.DeepEqual(next.Nutrition, current.Nutrition) || !reflect.DeepEqual(next.Progress, current.Progress) {
		t.Fatal("untouched sub-documents were modified")
	}
}

func TestActiveCoercion(t *testing.T) {
	tests := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{raw: `{"active":true}`, want: true},
		{raw: `{"active":0}`, want: false},
		{raw: `{"active":1}`, want: true},
		{raw: `{"active":2}`, wantErr: true},
		{raw: `{"active":"yes"}`, wantErr: true},
	}
	for _, tt := range tests {
		patch, err := ParseClientPatch([]byte(tt.raw))
		if tt.wantErr {
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("ParseClientPatch(%s) = %v, want validation error", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClientPatch(%s): %v", tt.raw, err)
		}
		if patch.Active == nil || *patch.Active != tt.want {
			t.Fatalf("ParseClientPatch(%s).Active = %v, want %v", tt.raw, patch.Active, tt.want)
		}
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	_, err := ParseClientPatch([]byte(`{"billingPlan":"gold"}`))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("unknown field should be a validation error, got %v", err)
	}
}

func TestAssignedUserNormalization(t *testing.T) {
	for _, raw := range []string{`{"assignedUserId":null}`, `{"assignedUserId":""}`} {
		patch := mustParse(t, raw)
		if !patch.HasAssignedUser {
			t.Fatalf("%s should mark the assignment as touched", raw)
		}
		if patch.AssignedUserID != nil {
			t.Fatalf("%s should normalize to nil, got %q", raw, *patch.AssignedUserID)
		}
	}

	patch := mustParse(t, `{"assignedUserId":"u-123"}`)
	if patch.AssignedUserID == nil || *patch.AssignedUserID != "u-123" {
		t.Fatalf("assignment value lost: %+v", patch.AssignedUserID)
	}
}

func TestNutritionShallowMerge(t *testing.T) {
	current := baseClient()
	patch := mustParse(t, `{"nutrition":{"calories":"2600","fats":"70g"}}`)

	next, err := applyPatch(current, patch, domain.RoleAdmin, testNow, testPolicy)
	if err != nil {
		t.Fatal(err)
	}
	if next.Nutrition.Calories != "2600" || next.Nutrition.Fats != "70g" {
		t.Fatalf("patched keys not applied: %+v", next.Nutrition)
	}
	// Keys absent from the patch are preserved, the adherence log included.
	if next.Nutrition.Protein != "160g" || next.Nutrition.Notes != "no sugar" {
		t.Fatalf("absent keys not preserved: %+v", next.Nutrition)
	}
	if !reflect.DeepEqual(next.Nutrition.Adherence, current.Nutrition.Adherence) {
		t.Fatal("adherence log must survive a macro-only nutrition patch")
	}
}

func TestAdminAdherenceFullReplace(t *testing.T) {
	next, err := applyPatch(baseClient(), mustParse(t, `{"nutrition":{"adherence":[]}}`), domain.RoleAdmin, testNow, testPolicy)
	if err != nil {
		t.Fatal(err)
	}
	if len(next.Nutrition.Adherence) != 0 {
		t.Fatalf("admin replace to empty failed: %+v", next.Nutrition.Adherence)
	}
}

func TestMemberAdherenceAppend(t *testing.T) {
	body := `{"nutrition":{"adherence":[
		{"date":"2024-01-01","completed":true,"note":"clean day"},
		{"date":"2024-01-02","completed":false,"note":"cheat meal"}
	]}}`
	next, err := applyPatch(baseClient(), mustParse(t, body), domain.RoleMember, testNow, testPolicy)
	if err != nil {
		t.Fatal(err)
	}
	if len(next.Nutrition.Adherence) != 2 {
		t.Fatalf("append failed: %+v", next.Nutrition.Adherence)
	}
}

func TestMemberAdherenceDuplicateDate(t *testing.T) {
	// New entry for an already-logged day, prepended the way the UI does it.
	body := `{"nutrition":{"adherence":[
		{"date":"2024-01-01","completed":false,"note":"second thoughts"},
		{"date":"2024-01-01","completed":true,"note":"clean day"}
	]}}`
	_, err := applyPatch(baseClient(), mustParse(t, body), domain.RoleMember, testNow, testPolicy)
	if !errors.Is(err, ErrDuplicateDateEntry) {
		t.Fatalf("want ErrDuplicateDateEntry, got %v", err)
	}
}

func TestMemberAdherenceHistoryImmutable(t *testing.T) {
	// Editing the existing entry in place.
	edited := `{"nutrition":{"adherence":[{"date":"2024-01-01","completed":false,"note":"rewritten"}]}}`
	_, err := applyPatch(baseClient(), mustParse(t, edited), domain.RoleMember, testNow, testPolicy)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("edited history should be a validation error, got %v", err)
	}

	// Dropping the existing entry.
	dropped := `{"nutrition":{"adherence":[]}}`
	_, err = applyPatch(baseClient(), mustParse(t, dropped), domain.RoleMember, testNow, testPolicy)
	if !errors.As(err, &vErr) {
		t.Fatalf("removed history should be a validation error, got %v", err)
	}
}

func TestAdminProgressFullReplace(t *testing.T) {
	next, err := applyPatch(baseClient(), mustParse(t, `{"progress":[]}`), domain.RoleAdmin, testNow, testPolicy)
	if err != nil {
		t.Fatal(err)
	}
	if len(next.Progress) != 0 {
		t.Fatalf("admin replace to empty failed: %+v", next.Progress)
	}
}

func TestMemberProgressAppendToday(t *testing.T) {
	body := `{"progress":[
		{"date":"2024-01-01","weight":84.2,"reps":"5x5"},
		{"date":"2024-01-02","weight":83.97}
	]}`
	next, err := applyPatch(baseClient(), mustParse(t, body), domain.RoleMember, testNow, testPolicy)
	if err != nil {
		t.Fatal(err)
	}
	if len(next.Progress) != 2 {
		t.Fatalf("append failed: %+v", next.Progress)
	}
	// One-decimal normalization.
	if next.Progress[1].Weight != 84.0 {
		t.Fatalf("weight not rounded to one decimal: %v", next.Progress[1].Weight)
	}
	// History untouched.
	if next.Progress[0] != baseClient().Progress[0] {
		t.Fatalf("history entry changed: %+v", next.Progress[0])
	}
}

func TestMemberProgressDuplicateDate(t *testing.T) {
	bodies := []string{
		// New entry prepended (the UI's order).
		`{"progress":[{"date":"2024-01-01","weight":83.0},{"date":"2024-01-01","weight":84.2,"reps":"5x5"}]}`,
		// New entry appended.
		`{"progress":[{"date":"2024-01-01","weight":84.2,"reps":"5x5"},{"date":"2024-01-01","weight":83.0}]}`,
	}
	for _, body := range bodies {
		_, err := applyPatch(baseClient(), mustParse(t, body), domain.RoleMember, testNow, testPolicy)
		if !errors.Is(err, ErrDuplicateDateEntry) {
			t.Fatalf("want ErrDuplicateDateEntry for %s, got %v", body, err)
		}
	}
}

func TestMemberProgressRules(t *testing.T) {
	keepHistory := `{"date":"2024-01-01","weight":84.2,"reps":"5x5"}`
	tests := []struct {
		name    string
		body    string
		policy  ProgressPolicy
		now     time.Time
		wantErr error
	}{
		{
			name:    "not today",
			body:    `{"progress":[` + keepHistory + `,{"date":"2023-12-30","weight":83}]}`,
			policy:  testPolicy,
			now:     testNow,
			wantErr: nil, // validation error, checked via errors.As below
		},
		{
			name:    "weight below band",
			body:    `{"progress":[` + keepHistory + `,{"date":"2024-01-02","weight":12}]}`,
			policy:  testPolicy,
			now:     testNow,
			wantErr: ErrWeightOutOfRange,
		},
		{
			name:    "weight above band",
			body:    `{"progress":[` + keepHistory + `,{"date":"2024-01-02","weight":512}]}`,
			policy:  testPolicy,
			now:     testNow,
			wantErr: ErrWeightOutOfRange,
		},
		{
			name:    "outside recording window",
			body:    `{"progress":[` + keepHistory + `,{"date":"2024-01-02","weight":83}]}`,
			policy:  ProgressPolicy{MinWeight: 25, MaxWeight: 400, WindowOpenHour: 5, WindowCloseHour: 11},
			now:     testNow, // noon
			wantErr: ErrOutsideAllowedWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := applyPatch(baseClient(), mustParse(t, tt.body), domain.RoleMember, tt.now, tt.policy)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}

func TestMemberProgressHistoryImmutable(t *testing.T) {
	var vErr *ValidationError

	// Editing yesterday's weight.
	edited := `{"progress":[{"date":"2024-01-01","weight":80.0,"reps":"5x5"}]}`
	_, err := applyPatch(baseClient(), mustParse(t, edited), domain.RoleMember, testNow, testPolicy)
	if !errors.As(err, &vErr) {
		t.Fatalf("edited history should be a validation error, got %v", err)
	}

	// Deleting history.
	_, err = applyPatch(baseClient(), mustParse(t, `{"progress":[]}`), domain.RoleMember, testNow, testPolicy)
	if !errors.As(err, &vErr) {
		t.Fatalf("removed history should be a validation error, got %v", err)
	}
}

func TestWithinWindow(t *testing.T) {
	at := func(hour int) time.Time {
		return time.Date(2024, 1, 2, hour, 30, 0, 0, time.UTC)
	}
	unrestricted := ProgressPolicy{}
	if !unrestricted.WithinWindow(at(3)) {
		t.Fatal("equal open/close hours must mean unrestricted")
	}

	day := ProgressPolicy{WindowOpenHour: 6, WindowCloseHour: 22}
	if !day.WithinWindow(at(6)) || day.WithinWindow(at(23)) || day.WithinWindow(at(2)) {
		t.Fatal("daytime window misbehaves")
	}

	overnight := ProgressPolicy{WindowOpenHour: 22, WindowCloseHour: 6}
	if !overnight.WithinWindow(at(23)) || !overnight.WithinWindow(at(2)) || overnight.WithinWindow(at(12)) {
		t.Fatal("overnight window misbehaves")
	}
}
