package models

import (
	"strings"

	dErrors "doctrack/pkg/domain-errors"
)

// Roles understood by the engine. Role assignment itself is owned by the
// login collaborator.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleStaff  = "staff"
)

// Actor is the authenticated caller a transition is performed for.
type Actor struct {
	Name       string
	Department string
	Role       string
}

// Validate requires both the acting name and the acting department.
func (a Actor) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "acting name is required")
	}
	if strings.TrimSpace(a.Department) == "" {
		return dErrors.New(dErrors.CodeValidation, "acting department is required")
	}
	return nil
}

func (a Actor) IsAdmin() bool {
	return strings.EqualFold(a.Role, RoleAdmin)
}
