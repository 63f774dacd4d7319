package tooling

import (
	"encoding/json"
	"fmt"

	"github.com/philo-groves/fiddlesticks/internal/toolerr"
)

// ParseJSONValue parses argsJSON into an arbitrary JSON value.
func ParseJSONValue(argsJSON string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(argsJSON), &v); err != nil {
		return nil, toolerr.InvalidArguments("invalid JSON arguments: " + err.Error())
	}
	return v, nil
}

// ParseJSONObject parses argsJSON, requiring it to decode to a JSON object.
func ParseJSONObject(argsJSON string) (map[string]any, error) {
	v, err := ParseJSONValue(argsJSON)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, toolerr.InvalidArguments("expected JSON object arguments")
	}
	return obj, nil
}

// RequiredString extracts a required string field from a parsed argument
// object.
func RequiredString(obj map[string]any, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", toolerr.InvalidArguments(fmt.Sprintf("missing required string: '%s'", key))
	}
	s, ok := raw.(string)
	if !ok {
		return "", toolerr.InvalidArguments(fmt.Sprintf("missing required string: '%s'", key))
	}
	return s, nil
}
