package models

// Role is the caller role carried in the auth token's app metadata.
type Role string

const (
	RoleCandidate Role = "user"
	RoleAdmin     Role = "admin"
)
