package tools

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Validate checks args against the descriptor's parameters and returns a new
// argument map with defaults applied. Arguments the descriptor does not
// declare are dropped. The first violation is returned as an InvalidArgument
// error naming the field.
func Validate(d Descriptor, args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(d.Parameters))
	for _, p := range d.Parameters {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, NewInvalidArgumentError(p.Name, "missing required argument: %s", p.Name)
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		norm, err := p.check(v)
		if err != nil {
			return nil, err
		}
		out[p.Name] = norm
	}
	return out, nil
}

func (p Parameter) check(v any) (any, error) {
	switch p.Type {
	case ParamString:
		s, ok := v.(string)
		if !ok {
			return nil, NewInvalidArgumentError(p.Name, "%s must be a string", p.Name)
		}
		if strings.TrimSpace(s) == "" {
			return nil, NewInvalidArgumentError(p.Name, "%s must not be empty", p.Name)
		}
		// Callers that reach a provider directly get finance.NormalizeRange
		// and NormalizeInterval fallbacks instead of this rejection.
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, s) {
			return nil, NewInvalidArgumentError(p.Name, "%s must be one of [%s], got %q",
				p.Name, strings.Join(p.Enum, ", "), s)
		}
		return s, nil

	case ParamInteger:
		n, ok := asInt(v)
		if !ok {
			return nil, NewInvalidArgumentError(p.Name, "%s must be an integer", p.Name)
		}
		if (p.Min != nil && n < int64(*p.Min)) || (p.Max != nil && n > int64(*p.Max)) {
			return nil, NewInvalidArgumentError(p.Name, "%s must be between %s and %s, got %d",
				p.Name, bound(p.Min, "-inf"), bound(p.Max, "+inf"), n)
		}
		return n, nil

	case ParamStringArray:
		items, ok := asStrings(v)
		if !ok {
			return nil, NewInvalidArgumentError(p.Name, "%s must be an array of strings", p.Name)
		}
		if len(items) < p.MinItems || (p.MaxItems > 0 && len(items) > p.MaxItems) {
			return nil, NewInvalidArgumentError(p.Name, "%s must contain between %d and %d items, got %d",
				p.Name, p.MinItems, p.MaxItems, len(items))
		}
		for _, s := range items {
			if strings.TrimSpace(s) == "" {
				return nil, NewInvalidArgumentError(p.Name, "%s must not contain empty strings", p.Name)
			}
		}
		return items, nil
	}

	return nil, NewInvalidArgumentError(p.Name, "%s has unsupported type %s", p.Name, p.Type)
}

// asInt accepts the integral number representations a JSON decoder or a Go
// caller may produce.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func asStrings(v any) ([]string, bool) {
	switch a := v.(type) {
	case []string:
		return a, true
	case []any:
		out := make([]string, len(a))
		for i, item := range a {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func bound(b *int, unset string) string {
	if b == nil {
		return unset
	}
	return strconv.Itoa(*b)
}
