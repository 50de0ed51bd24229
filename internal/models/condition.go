package models

import "cmp"

// Operator combines the booleans produced by a condition node.
type Operator string

const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
)

// StringPredicate matches a textual fact. Every comparison that is set must hold.
type StringPredicate struct {
	Equals     *string  `json:"equals,omitempty"`
	StartsWith *string  `json:"starts_with,omitempty"`
	EndsWith   *string  `json:"ends_with,omitempty"`
	In         []string `json:"in,omitempty"`
}

// OrderedPredicate matches a numeric or calendar fact. Every comparison that is set must hold.
type OrderedPredicate[T cmp.Ordered] struct {
	Equals  *T  `json:"equals,omitempty"`
	Greater *T  `json:"greater,omitempty"`
	Less    *T  `json:"less,omitempty"`
	In      []T `json:"in,omitempty"`
}

// Condition is one node of a routing condition tree. Absent predicates are
// skipped, not treated as false.
type Condition struct {
	UserAgent *StringPredicate `json:"ua,omitempty"`
	OS        *StringPredicate `json:"os,omitempty"`
	Device    *StringPredicate `json:"device,omitempty"`
	Country   *StringPredicate `json:"country,omitempty"`
	Language  *StringPredicate `json:"language,omitempty"`

	// Date compares "YYYY-MM-DD" strings, which order chronologically.
	Date       *OrderedPredicate[string] `json:"date,omitempty"`
	DayOfWeek  *OrderedPredicate[int]    `json:"day_of_week,omitempty"`
	DayOfMonth *OrderedPredicate[int]    `json:"day_of_month,omitempty"`
	Month      *OrderedPredicate[int]    `json:"month,omitempty"`
	Random     *OrderedPredicate[int]    `json:"random,omitempty"`

	// Expr is an expr-lang boolean expression over the request facts.
	Expr string `json:"expr,omitempty"`

	And []Condition `json:"and,omitempty"`
	Or  []Condition `json:"or,omitempty"`

	DefaultOperator Operator `json:"default_operator,omitempty"`
}

// Str is a convenience for building predicates in code.
func Str(s string) *string { return &s }

// Num is a convenience for building ordered predicates in code.
func Num[T cmp.Ordered](v T) *T { return &v }
