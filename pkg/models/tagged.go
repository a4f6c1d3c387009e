package models

import (
	"encoding/json"
	"fmt"
)

// StringSet holds one or more string values. It decodes from either a JSON string or
// an array of strings, which is how status constraints are written in workflow definitions.
type StringSet []string

// Contains reports whether value is a member of the set.
func (s StringSet) Contains(value string) bool {
	for _, v := range s {
		if v == value {
			return true
		}
	}

	return false
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil

		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringSet{single}

		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}

	*s = many

	return nil
}

// marshalTagged flattens body into a JSON object and adds the "type" discriminator plus
// any extra envelope fields.
func marshalTagged(kind string, body any, extra map[string]any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	typ, err := json.Marshal(kind)
	if err != nil {
		return nil, err
	}

	fields["type"] = typ

	for key, value := range extra {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}

		fields[key] = encoded
	}

	return json.Marshal(fields)
}

func readType(data []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &head); err != nil {
		return "", err
	}

	return head.Type, nil
}
