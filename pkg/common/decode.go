package common

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON accepts node entries whose id or name is a string, a number
// or a nested object carrying its own id/name. A null value counts as absent.
func (n *RawNode) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("node entry: %w", err)
	}

	*n = RawNode{}
	n.ID, _ = identifierValue(fields["id"])
	n.Name, _ = identifierValue(fields["name"])
	n.Type, _ = identifierValue(fields["type"])
	return nil
}

// UnmarshalJSON records which endpoint and label keys were present so the
// key precedence can be applied later. Endpoints may be plain strings or
// node objects such as {"id": "Ada Lovelace", "type": "Person"}.
func (r *RawRelationship) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("relationship entry: %w", err)
	}

	*r = RawRelationship{}
	r.Source, r.HasSource = identifierValue(fields["source"])
	r.From, r.HasFrom = identifierValue(fields["from"])
	r.Target, r.HasTarget = identifierValue(fields["target"])
	r.To, r.HasTo = identifierValue(fields["to"])
	r.Label, r.HasLabel = identifierValue(fields["label"])
	r.Type, r.HasType = identifierValue(fields["type"])
	return nil
}

func identifierValue(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", false
		}
		if v, ok := identifierValue(obj["id"]); ok {
			return v, true
		}
		return identifierValue(obj["name"])
	case '[':
		return "", false
	default:
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return "", false
		}
		return num.String(), true
	}
}

// MarshalJSON writes back exactly the keys that were present on input.
func (r RawRelationship) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, 3)
	if r.HasSource {
		out["source"] = r.Source
	}
	if r.HasFrom {
		out["from"] = r.From
	}
	if r.HasTarget {
		out["target"] = r.Target
	}
	if r.HasTo {
		out["to"] = r.To
	}
	if r.HasLabel {
		out["label"] = r.Label
	}
	if r.HasType {
		out["type"] = r.Type
	}
	return json.Marshal(out)
}
