// Package domain defines access grants: the per-user record of service flags
// and organizational hierarchy level, and the service catalog they are
// resolved against.
package domain

import "time"

// HierarchyLevel is one of three ordered organizational tiers. A lower rank
// means broader authority.
type HierarchyLevel string

const (
	LevelStrategic   HierarchyLevel = "strategic"
	LevelTactical    HierarchyLevel = "tactical"
	LevelOperational HierarchyLevel = "operational"
)

// unknownRank sorts any unrecognized level below every known tier, so a
// malformed grant is least privileged rather than accidentally broad.
const unknownRank = 1 << 30

// Rank returns the level's position in the authority order:
// strategic (1) < tactical (2) < operational (3). Unknown levels rank below
// all known levels.
func (l HierarchyLevel) Rank() int {
	switch l {
	case LevelStrategic:
		return 1
	case LevelTactical:
		return 2
	case LevelOperational:
		return 3
	default:
		return unknownRank
	}
}

// Known reports whether l is one of the three defined tiers.
func (l HierarchyLevel) Known() bool {
	return l.Rank() != unknownRank
}

// Sufficient reports whether l carries at least the authority of required.
func (l HierarchyLevel) Sufficient(required HierarchyLevel) bool {
	return l.Rank() <= required.Rank()
}

// AccessGrant is one user's stored permission record: a flag per service key
// plus the hierarchy tier the user operates at.
type AccessGrant struct {
	UserID         string
	HierarchyLevel HierarchyLevel
	Active         bool
	Services       map[string]bool
	GrantedBy      string
	GrantedAt      time.Time
	Notes          string
}

// HasFlag reports whether the grant explicitly enables the service. Absent
// keys default to false.
func (g *AccessGrant) HasFlag(serviceKey string) bool {
	if g == nil {
		return false
	}
	return g.Services[serviceKey]
}

// ServiceDefinition is one catalog entry: a named service and the minimum
// hierarchy tier it requires.
type ServiceDefinition struct {
	ServiceKey    string
	DisplayName   string
	RequiredLevel HierarchyLevel
	Active        bool
}
