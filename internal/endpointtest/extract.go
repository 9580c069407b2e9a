package endpointtest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// extract reads a value from a JSON body by dot path, e.g. "data.demo_id" or
// "data[0].name".
func extract(body []byte, path string) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("response body is not valid JSON: %w", err)
	}

	current := doc
	for _, seg := range strings.Split(path, ".") {
		field, index := seg, -1
		if i := strings.Index(seg, "["); i >= 0 {
			n, err := strconv.Atoi(strings.TrimSuffix(seg[i+1:], "]"))
			if err != nil {
				return nil, fmt.Errorf("invalid array index in %q: %w", seg, err)
			}
			field, index = seg[:i], n
		}

		if field != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: cannot access field %q on %T", path, field, current)
			}
			if current, ok = m[field]; !ok {
				return nil, fmt.Errorf("%s: field %q not found", path, field)
			}
		}
		if index >= 0 {
			arr, ok := current.([]any)
			if !ok || index >= len(arr) {
				return nil, fmt.Errorf("%s: index %d out of range", path, index)
			}
			current = arr[index]
		}
	}
	return current, nil
}

// extractString is extract for string values.
func extractString(body []byte, path string) (string, error) {
	v, err := extract(body, path)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s: expected a non-empty string, got %v", path, v)
	}
	return s, nil
}
