package models

import (
	"bytes"
	"encoding/json"
)

// PolicyKind tags a RoutingPolicy.
type PolicyKind string

const (
	PolicyBasic       PolicyKind = "basic"
	PolicyConditional PolicyKind = "conditional"
	PolicyChallenge   PolicyKind = "challenge"
	PolicyFile        PolicyKind = "file"
	PolicyMirroring   PolicyKind = "mirroring"
	// PolicyUnknown is assigned to policy documents that failed to decode.
	PolicyUnknown PolicyKind = "unknown"
)

// ConditionalRoute pairs a target switch with the condition selecting it.
type ConditionalRoute struct {
	Key       string    `json:"key"`
	Condition Condition `json:"condition"`
}

// RoutingPolicy is the per-route policy. Only conditional policies carry
// data the gateway interprets; the payload of the other kinds is kept as-is.
type RoutingPolicy struct {
	Kind       PolicyKind
	Conditions []ConditionalRoute
	Raw        json.RawMessage
}

type policyDocument struct {
	Kind       PolicyKind         `json:"kind"`
	Conditions []ConditionalRoute `json:"conditions,omitempty"`
}

// Effective returns the kind the router acts on. Unknown behaves as basic.
func (p RoutingPolicy) Effective() PolicyKind {
	switch p.Kind {
	case "", PolicyUnknown:
		return PolicyBasic
	}
	return p.Kind
}

// IsConditional reports whether the policy has conditions to evaluate.
func (p RoutingPolicy) IsConditional() bool {
	return p.Kind == PolicyConditional && len(p.Conditions) > 0
}

// UnmarshalJSON never fails: anything it cannot understand becomes PolicyUnknown
// so that a bad policy never hides the route it belongs to.
func (p *RoutingPolicy) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = RoutingPolicy{Kind: PolicyBasic}
		return nil
	}

	var doc policyDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		*p = RoutingPolicy{Kind: PolicyUnknown, Raw: append(json.RawMessage(nil), trimmed...)}
		return nil
	}

	switch doc.Kind {
	case "", PolicyBasic:
		*p = RoutingPolicy{Kind: PolicyBasic}
	case PolicyConditional:
		*p = RoutingPolicy{Kind: PolicyConditional, Conditions: doc.Conditions}
	case PolicyChallenge, PolicyFile, PolicyMirroring:
		*p = RoutingPolicy{Kind: doc.Kind, Raw: append(json.RawMessage(nil), trimmed...)}
	default:
		*p = RoutingPolicy{Kind: PolicyUnknown, Raw: append(json.RawMessage(nil), trimmed...)}
	}
	return nil
}

func (p RoutingPolicy) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	kind := p.Kind
	if kind == "" {
		kind = PolicyBasic
	}
	return json.Marshal(policyDocument{Kind: kind, Conditions: p.Conditions})
}
