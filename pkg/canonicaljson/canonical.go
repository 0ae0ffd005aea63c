// Package canonicaljson produces canonical (sorted-key, whitespace-free)
// JSON for values that must serialize identically every time they are
// re-derived — the placement-reason annotation on a Claim, most notably,
// where the sticky/idempotent-reapply invariant requires byte-identical
// output. Adapted from the teacher's pkg/canonical, which serves the
// analogous role for PCS signature payloads.
package canonicaljson

import "encoding/json"

// Marshal serializes v to compact JSON with map keys sorted at every
// nesting level. Go's encoding/json already sorts map[string]any keys, so
// the value is round-tripped through a generic representation first to
// guarantee struct fields get the same treatment regardless of their
// declaration order.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// MarshalString is Marshal returning a string, for embedding directly into
// an annotation value.
func MarshalString(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
