package service

import (
	"errors"

	"valhalla/gym-api/internal/domain"
)

// --- Error Definitions ---
var (
	ErrForbidden = errors.New("role does not permit updating the requested fields")
)

// Canonical patch field names, as they appear on the wire.
const (
	FieldName         = "name"
	FieldActive       = "active"
	FieldRoutine      = "routine"
	FieldGoalWeight   = "goalWeight"
	FieldAssignedUser = "assignedUserId"
	FieldNutrition    = "nutrition"
	FieldProgress     = "progress"
)

// memberWritableFields is the whitelist of fields a member may patch on
// their own record. Everything else, including fields added in the future,
// is denied by default.
var memberWritableFields = map[string]bool{
	FieldNutrition: true,
	FieldProgress:  true,
}

// authorizeFields decides whether a role may apply a patch touching the
// given field set. Admins may touch every known field. For members the
// check is all-or-nothing: one disallowed field rejects the entire patch,
// allowed fields in the same request included.
func authorizeFields(role domain.Role, requested []string) error {
	if role == domain.RoleAdmin {
		return nil
	}
	for _, field := range requested {
		if !memberWritableFields[field] {
			return ErrForbidden
		}
	}
	return nil
}
