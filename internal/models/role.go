package models

// UserRole represents the roles understood by the RBAC middleware.
type UserRole string

const (
	RoleAdmin UserRole = "ADMIN"
)
