package segment

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// TargetField is the payload field naming the agent a hand-off transfers to.
const TargetField = "assistant"

// ResolutionKind records how a hand-off payload was decoded.
type ResolutionKind int

const (
	Unresolved ResolutionKind = iota
	// Structured payloads are JSON objects.
	Structured
	// Strict payloads are JSON strings holding a JSON object.
	Strict
	// Permissive payloads are strings holding a literal mapping that is not
	// valid JSON, e.g. {'assistant': 'support'}.
	Permissive
)

func (k ResolutionKind) String() string {
	switch k {
	case Structured:
		return "structured"
	case Strict:
		return "strict"
	case Permissive:
		return "permissive"
	}
	return "unresolved"
}

// HandoffTarget is the outcome of decoding a handoff_result payload.
type HandoffTarget struct {
	Kind    ResolutionKind
	AgentID string
	Reason  string
}

// Resolved reports whether an agent id was found.
func (t HandoffTarget) Resolved() bool {
	return t.Kind != Unresolved
}

// ResolveHandoffTarget extracts the target agent id from a hand-off output.
func ResolveHandoffTarget(output json.RawMessage) HandoffTarget {
	raw := bytes.TrimSpace(output)
	if len(raw) == 0 {
		return unresolved("empty payload")
	}

	switch raw[0] {
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			return resolveText(string(raw))
		}
		return fromMap(Structured, obj)
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return unresolved(fmt.Sprintf("invalid string payload: %v", err))
		}
		return resolveText(text)
	}
	return resolveText(string(raw))
}

func resolveText(text string) HandoffTarget {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return fromMap(Strict, obj)
	}
	return resolveLiteral(text)
}

// resolveLiteral accepts a flow mapping such as {'assistant': 'support'}.
// Keys and the target value must be quoted; bare YAML like assistant: support
// is rejected.
func resolveLiteral(text string) HandoffTarget {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return unresolved(fmt.Sprintf("unparseable payload: %v", err))
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return unresolved("payload is not an object")
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode || mapping.Style&yaml.FlowStyle == 0 {
		return unresolved("payload is not a literal mapping")
	}

	obj := make(map[string]any, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if !quotedScalar(key) {
			return unresolved("literal mapping has an unquoted key")
		}
		if key.Value != TargetField {
			continue
		}
		if quotedScalar(value) {
			obj[TargetField] = value.Value
		} else {
			obj[TargetField] = nil
		}
	}
	return fromMap(Permissive, obj)
}

func quotedScalar(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode &&
		n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0
}

func fromMap(kind ResolutionKind, obj map[string]any) HandoffTarget {
	value, ok := obj[TargetField]
	if !ok {
		return unresolved(fmt.Sprintf("missing %q field", TargetField))
	}
	agent, ok := value.(string)
	if !ok || agent == "" {
		return unresolved(fmt.Sprintf("%q field is not a non-empty string", TargetField))
	}
	return HandoffTarget{Kind: kind, AgentID: agent}
}

func unresolved(reason string) HandoffTarget {
	return HandoffTarget{Kind: Unresolved, Reason: reason}
}
