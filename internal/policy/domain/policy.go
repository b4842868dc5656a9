package domain

import "time"

// AccessPolicy is a school-wide Rego policy overriding the built-in access
// rule. Policies are additive; the engine compiles all enabled policies
// together.
type AccessPolicy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
