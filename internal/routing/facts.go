// Package routing resolves routes and evaluates the conditions of
// conditional routing policies.
package routing

import (
	"time"

	"edge-gateway/internal/models"
)

// FactSource exposes the request facts conditions are evaluated against.
// Implementations may compute facts lazily; the evaluator only asks for the
// facts a condition references.
type FactSource interface {
	UserAgentFamily() string
	OSFamily() string
	DeviceFamily() string
	Country() string
	// Language is the primary subtag of the most preferred language.
	Language() string
	Now() time.Time
}

// Facts is a set of lazily derived client facts.
type Facts uint8

const (
	FactUserAgent Facts = 1 << iota
	FactOS
	FactDevice
	FactLocation

	FactNone Facts = 0
	FactAll        = FactUserAgent | FactOS | FactDevice | FactLocation
)

func (f Facts) Has(fact Facts) bool {
	return f&fact == fact
}

// RequiredFacts returns the client facts referenced anywhere in the given
// conditions. Expression predicates may read anything and require all facts.
func RequiredFacts(conditions []models.ConditionalRoute) Facts {
	var need Facts
	for i := range conditions {
		need |= requiredByNode(&conditions[i].Condition)
		if need == FactAll {
			break
		}
	}
	return need
}

func requiredByNode(c *models.Condition) Facts {
	var need Facts
	if c.UserAgent != nil {
		need |= FactUserAgent
	}
	if c.OS != nil {
		need |= FactOS
	}
	if c.Device != nil {
		need |= FactDevice
	}
	if c.Country != nil {
		need |= FactLocation
	}
	if c.Expr != "" {
		return FactAll
	}
	for i := range c.And {
		need |= requiredByNode(&c.And[i])
	}
	for i := range c.Or {
		need |= requiredByNode(&c.Or[i])
	}
	return need
}
