package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"valhalla/gym-api/internal/domain"
)

// --- Error Definitions ---
var (
	ErrDuplicateDateEntry   = errors.New("an entry for that date already exists")
	ErrOutsideAllowedWindow = errors.New("progress entries cannot be recorded at this time of day")
	ErrWeightOutOfRange     = errors.New("weight is outside the accepted range")
)

// ValidationError reports a malformed patch shape. It is recovered at the
// boundary of a single update; no partial write is left behind.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid patch: " + e.Reason
}

func invalidPatch(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ProgressPolicy configures the member-mode progress checks: the accepted
// bodyweight band and an optional time-of-day window. Equal open/close
// hours mean the window is unrestricted.
type ProgressPolicy struct {
	MinWeight       float64
	MaxWeight       float64
	WindowOpenHour  int
	WindowCloseHour int
}

// WithinWindow reports whether the given time falls inside the allowed
// recording window.
func (p ProgressPolicy) WithinWindow(now time.Time) bool {
	if p.WindowOpenHour == p.WindowCloseHour {
		return true
	}
	hour := now.Hour()
	if p.WindowOpenHour < p.WindowCloseHour {
		return hour >= p.WindowOpenHour && hour < p.WindowCloseHour
	}
	// Window spans midnight.
	return hour >= p.WindowOpenHour || hour < p.WindowCloseHour
}

// NutritionPatch is a partial update of the nutrition sub-document. Keys
// absent from the patch keep their current value (shallow merge); the
// adherence log is never shallow-overwritten and follows its own rule.
type NutritionPatch struct {
	Calories     *string
	Protein      *string
	Carbs        *string
	Fats         *string
	Notes        *string
	Adherence    []domain.AdherenceEntry
	HasAdherence bool
}

// ClientPatch is the parsed form of a partial client update. Presence is
// tracked per field so that "absent" and "set to zero value" stay distinct.
type ClientPatch struct {
	Name       *string
	Active     *bool
	Routine    *string
	GoalWeight *string

	// HasAssignedUser distinguishes "assignment untouched" from "clear the
	// assignment": a present-but-null (or empty string) value clears it.
	HasAssignedUser bool
	AssignedUserID  *string

	Nutrition *NutritionPatch

	HasProgress bool
	Progress    []domain.ProgressEntry

	fields []string
}

// Fields returns the canonical names of the fields this patch touches.
func (p *ClientPatch) Fields() []string {
	return p.fields
}

// IsEmpty reports whether the patch touches nothing at all.
func (p *ClientPatch) IsEmpty() bool {
	return len(p.fields) == 0
}

// ParseClientPatch decodes a raw JSON patch body into a ClientPatch.
// Unknown top-level keys are rejected outright: the merge table below is
// explicit per field, there is no generic object spread to fall through to.
func ParseClientPatch(data []byte) (*ClientPatch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidPatch("body must be a JSON object")
	}

	patch := &ClientPatch{}
	for key, value := range raw {
		switch key {
		case FieldName:
			s, err := decodeString(value)
			if err != nil {
				return nil, invalidPatch("name must be a string")
			}
			patch.Name = s
		case FieldRoutine:
			s, err := decodeString(value)
			if err != nil {
				return nil, invalidPatch("routine must be a string")
			}
			patch.Routine = s
		case FieldGoalWeight:
			s, err := decodeString(value)
			if err != nil {
				return nil, invalidPatch("goalWeight must be a string")
			}
			patch.GoalWeight = s
		case FieldActive:
			b, err := decodeBool(value)
			if err != nil {
				return nil, err
			}
			patch.Active = b
		case FieldAssignedUser:
			id, err := decodeAssignedUser(value)
			if err != nil {
				return nil, err
			}
			patch.HasAssignedUser = true
			patch.AssignedUserID = id
		case FieldNutrition:
			np, err := parseNutritionPatch(value)
			if err != nil {
				return nil, err
			}
			patch.Nutrition = np
		case FieldProgress:
			var entries []domain.ProgressEntry
			if err := json.Unmarshal(value, &entries); err != nil {
				return nil, invalidPatch("progress must be an array of entries")
			}
			patch.HasProgress = true
			patch.Progress = entries
		default:
			return nil, invalidPatch("unknown field %q", key)
		}
		patch.fields = append(patch.fields, key)
	}
	return patch, nil
}

func decodeString(value json.RawMessage) (*string, error) {
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeBool coerces the active flag to a strict boolean. The legacy wire
// format uses 0/1, so both JSON booleans and those two numbers are accepted.
func decodeBool(value json.RawMessage) (*bool, error) {
	var b bool
	if err := json.Unmarshal(value, &b); err == nil {
		return &b, nil
	}
	var n float64
	if err := json.Unmarshal(value, &n); err != nil {
		return nil, invalidPatch("active must be a boolean or 0/1")
	}
	switch n {
	case 0:
		b = false
	case 1:
		b = true
	default:
		return nil, invalidPatch("active must be a boolean or 0/1")
	}
	return &b, nil
}

// decodeAssignedUser normalizes the canonical "unassigned" representation:
// JSON null and the empty string both mean nil.
func decodeAssignedUser(value json.RawMessage) (*string, error) {
	var s *string
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, invalidPatch("assignedUserId must be a string or null")
	}
	if s == nil || *s == "" {
		return nil, nil
	}
	return s, nil
}

func parseNutritionPatch(data []byte) (*NutritionPatch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidPatch("nutrition must be a JSON object")
	}

	np := &NutritionPatch{}
	for key, value := range raw {
		switch key {
		case "calories", "protein", "carbs", "fats", "notes":
			s, err := decodeString(value)
			if err != nil {
				return nil, invalidPatch("nutrition.%s must be a string", key)
			}
			switch key {
			case "calories":
				np.Calories = s
			case "protein":
				np.Protein = s
			case "carbs":
				np.Carbs = s
			case "fats":
				np.Fats = s
			case "notes":
				np.Notes = s
			}
		case "adherence":
			var entries []domain.AdherenceEntry
			if err := json.Unmarshal(value, &entries); err != nil {
				return nil, invalidPatch("nutrition.adherence must be an array of entries")
			}
			np.HasAdherence = true
			np.Adherence = entries
		default:
			return nil, invalidPatch("unknown nutrition field %q", key)
		}
	}
	return np, nil
}

// --- Merge Engine ---

// applyPatch merges a validated patch against the current record and
// returns the next record. Every rule runs before anything is considered
// written: on any error the caller must discard the result, which keeps
// the whole update all-or-nothing.
//
// Merge table:
//
//	name, routine, goalWeight  overwrite (later wins)
//	active                     overwrite, coerced to strict bool at parse
//	nutrition                  shallow merge, except adherence
//	nutrition.adherence        admin: full replace / member: validated append
//	progress                   admin: full replace / member: validated append
//	assignedUserId             handled by the assignment path, not here
func applyPatch(current domain.Client, patch *ClientPatch, role domain.Role, now time.Time, policy ProgressPolicy) (domain.Client, error) {
	next := current

	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Active != nil {
		next.Active = *patch.Active
	}
	if patch.Routine != nil {
		next.Routine = *patch.Routine
	}
	if patch.GoalWeight != nil {
		next.GoalWeight = *patch.GoalWeight
	}

	if patch.Nutrition != nil {
		merged, err := mergeNutrition(current.Nutrition, patch.Nutrition, role)
		if err != nil {
			return domain.Client{}, err
		}
		next.Nutrition = merged
	}

	if patch.HasProgress {
		switch role {
		case domain.RoleAdmin:
			// Full-replace semantics: the admin supplies the complete desired
			// sequence, enabling edits and deletions of historical entries.
			next.Progress = patch.Progress
		default:
			merged, err := mergeMemberProgress(current.Progress, patch.Progress, now, policy)
			if err != nil {
				return domain.Client{}, err
			}
			next.Progress = merged
		}
	}

	return next, nil
}

func mergeNutrition(current domain.NutritionPlan, patch *NutritionPatch, role domain.Role) (domain.NutritionPlan, error) {
	merged := current

	if patch.Calories != nil {
		merged.Calories = *patch.Calories
	}
	if patch.Protein != nil {
		merged.Protein = *patch.Protein
	}
	if patch.Carbs != nil {
		merged.Carbs = *patch.Carbs
	}
	if patch.Fats != nil {
		merged.Fats = *patch.Fats
	}
	if patch.Notes != nil {
		merged.Notes = *patch.Notes
	}

	if patch.HasAdherence {
		switch role {
		case domain.RoleAdmin:
			adherence := patch.Adherence
			if adherence == nil {
				adherence = []domain.AdherenceEntry{}
			}
			merged.Adherence = adherence
		default:
			adherence, err := mergeMemberAdherence(current.Adherence, patch.Adherence)
			if err != nil {
				return domain.NutritionPlan{}, err
			}
			merged.Adherence = adherence
		}
	}

	return merged, nil
}

// dayOf truncates a date value to its calendar day. Stored entries mix
// plain YYYY-MM-DD dates with full ISO timestamps.
func dayOf(date string) string {
	if len(date) > 10 {
		return date[:10]
	}
	return date
}

// mergeMemberAdherence applies the append-only rule for members: every
// existing log entry must come back unchanged, and each appended entry must
// target a day that has no entry yet.
func mergeMemberAdherence(current, patched []domain.AdherenceEntry) ([]domain.AdherenceEntry, error) {
	existing := make(map[string]domain.AdherenceEntry, len(current))
	for _, entry := range current {
		existing[dayOf(entry.Date)] = entry
	}

	// Duplicate detection runs over the whole patch first: a fresh entry for
	// an already-logged day may arrive before or after the entry it clashes
	// with (the UI prepends, older revisions appended).
	seen := make(map[string]bool, len(patched))
	for _, entry := range patched {
		day := dayOf(entry.Date)
		if day == "" {
			return nil, invalidPatch("adherence entry is missing a date")
		}
		if seen[day] {
			return nil, ErrDuplicateDateEntry
		}
		seen[day] = true
	}

	kept := 0
	for _, entry := range patched {
		if cur, ok := existing[dayOf(entry.Date)]; ok {
			if entry != cur {
				return nil, invalidPatch("adherence log entries cannot be edited")
			}
			kept++
		}
	}
	if kept != len(existing) {
		return nil, invalidPatch("adherence log entries cannot be removed")
	}
	return patched, nil
}

// mergeMemberProgress applies the member-mode progress rules: history is
// untouchable, at most one entry per calendar day, new entries must be
// dated today, fall inside the recording window, and carry a weight inside
// the configured band. Weights are normalized to one decimal.
func mergeMemberProgress(current, patched []domain.ProgressEntry, now time.Time, policy ProgressPolicy) ([]domain.ProgressEntry, error) {
	existing := make(map[string]domain.ProgressEntry, len(current))
	for _, entry := range current {
		existing[dayOf(entry.Date)] = entry
	}

	// Same two-pass shape as the adherence rule: flag same-day clashes across
	// the whole patch before validating individual entries.
	seen := make(map[string]bool, len(patched))
	for _, entry := range patched {
		day := dayOf(entry.Date)
		if _, err := time.Parse("2006-01-02", day); err != nil {
			return nil, invalidPatch("progress entry date %q is not a valid date", entry.Date)
		}
		if seen[day] {
			return nil, ErrDuplicateDateEntry
		}
		seen[day] = true
	}

	today := now.Format("2006-01-02")
	result := make([]domain.ProgressEntry, 0, len(patched))
	kept := 0

	for _, entry := range patched {
		day := dayOf(entry.Date)
		if cur, ok := existing[day]; ok {
			if entry != cur {
				return nil, invalidPatch("progress history entries cannot be edited")
			}
			kept++
			result = append(result, entry)
			continue
		}

		// New entry.
		if day != today {
			return nil, invalidPatch("progress entries may only be recorded for today")
		}
		if !policy.WithinWindow(now) {
			return nil, ErrOutsideAllowedWindow
		}
		if entry.Weight < policy.MinWeight || entry.Weight > policy.MaxWeight {
			return nil, ErrWeightOutOfRange
		}
		entry.Weight = math.Round(entry.Weight*10) / 10
		result = append(result, entry)
	}

	if kept != len(existing) {
		return nil, invalidPatch("progress history entries cannot be removed")
	}
	return result, nil
}
