// Package ddl compiles the clause text that follows a CREATE PROCEDURE
// declaration into a validated partition spec and a role list.
//
// Clause scanning produces explicit tagged clause nodes instead of the
// positional regex match groups of older engines; validation and directory
// registration happen in a separate second pass.
package ddl

import "strings"

// Clause is one matched CREATE PROCEDURE clause.
type Clause interface {
	clauseKind() string
}

// AllowClause grants invocation rights to a list of roles. A procedure may
// carry any number of ALLOW clauses.
type AllowClause struct {
	Roles []string
}

func (AllowClause) clauseKind() string { return "ALLOW" }

// PartitionClause is the partition-type clause: either a DIRECTED marker
// (no key data) or one or two table/column/parameter-index triples.
// ParamIndex2Set distinguishes an explicit second index from an absent one;
// a second key without an explicit index is rejected during validation.
type PartitionClause struct {
	Directed bool

	Table      string
	Column     string
	ParamIndex int

	Table2         string
	Column2        string
	ParamIndex2    int
	ParamIndex2Set bool

	HasSecondKey bool
}

func (p PartitionClause) clauseKind() string {
	if p.Directed {
		return "DIRECTED"
	}
	return "PARTITION"
}

// RoleList accumulates granted role names across repeated ALLOW clauses.
// Names are trimmed, lowercased, and deduplicated; insertion order is kept
// only for stable output.
type RoleList struct {
	names []string
	seen  map[string]struct{}
}

// NewRoleList returns an empty accumulator.
func NewRoleList() *RoleList {
	return &RoleList{seen: make(map[string]struct{})}
}

// Add merges one role name into the list. Duplicates are silently dropped.
func (rl *RoleList) Add(name string) {
	fixed := strings.ToLower(strings.TrimSpace(name))
	if fixed == "" {
		return
	}
	if _, ok := rl.seen[fixed]; ok {
		return
	}
	rl.seen[fixed] = struct{}{}
	rl.names = append(rl.names, fixed)
}

// Names returns the accumulated roles in insertion order.
func (rl *RoleList) Names() []string {
	out := make([]string, len(rl.names))
	copy(out, rl.names)
	return out
}

// Len returns the number of distinct roles.
func (rl *RoleList) Len() int {
	return len(rl.names)
}

// Contains reports whether a role (case-insensitive) is in the list.
func (rl *RoleList) Contains(name string) bool {
	_, ok := rl.seen[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
