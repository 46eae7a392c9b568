package classify

import (
	"strings"

	"contract-hooks/internal/types"
)

// Patterns holds the substring lists used to detect field roles
type Patterns struct {
	Email      []string
	Password   []string
	Identifier []string
	Token      []string
}

// precedence decides between roles when a name matches several pattern sets,
// e.g. "emailToken" is an email field.
var precedence = []types.FieldRole{
	types.RoleEmail,
	types.RolePassword,
	types.RoleToken,
	types.RoleIdentifier,
}

// FieldClassifier maps field names to semantic roles
type FieldClassifier struct {
	patterns    Patterns
	identifiers bool
}

// NewFieldClassifier creates a classifier. Patterns are compared case-insensitively.
// When detectIdentifiers is false the identifier role is never assigned.
func NewFieldClassifier(patterns Patterns, detectIdentifiers bool) *FieldClassifier {
	return &FieldClassifier{
		patterns: Patterns{
			Email:      lower(patterns.Email),
			Password:   lower(patterns.Password),
			Identifier: lower(patterns.Identifier),
			Token:      lower(patterns.Token),
		},
		identifiers: detectIdentifiers,
	}
}

// Classify returns the role of a field. An "email" format always wins; otherwise the
// first role in precedence order with a matching pattern is returned.
func (c *FieldClassifier) Classify(name, fieldType, format string) types.FieldRole {
	if strings.EqualFold(format, "email") {
		return types.RoleEmail
	}

	lowered := strings.ToLower(name)
	for _, role := range precedence {
		if matches(lowered, c.patternsFor(role)) {
			return role
		}
	}
	return types.RoleUnknown
}

func (c *FieldClassifier) patternsFor(role types.FieldRole) []string {
	switch role {
	case types.RoleEmail:
		return c.patterns.Email
	case types.RolePassword:
		return c.patterns.Password
	case types.RoleToken:
		return c.patterns.Token
	case types.RoleIdentifier:
		if !c.identifiers {
			return nil
		}
		return c.patterns.Identifier
	default:
		return nil
	}
}

func matches(name string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
