// Package fieldcase rewrites record field names to a configured case.
package fieldcase

import (
	"strings"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

// Case is a field-name case policy.
type Case string

const (
	None  Case = "none"
	Upper Case = "upper"
	Lower Case = "lower"
)

// Parse maps a columnNameCase setting to a Case. Empty means None.
func Parse(s string) (Case, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "no change":
		return None, nil
	case "upper", "uppercase":
		return Upper, nil
	case "lower", "lowercase":
		return Lower, nil
	}
	return "", errors.Newf(errors.ErrorTypeSchema, "unknown column name case %q", s).
		WithDetail("allowed", []string{string(None), string(Upper), string(Lower)})
}

// Apply converts one field name.
func (c Case) Apply(name string) (string, error) {
	switch c {
	case None, "":
		return name, nil
	case Upper:
		return strings.ToUpper(name), nil
	case Lower:
		return strings.ToLower(name), nil
	}
	return "", errors.Newf(errors.ErrorTypeSchema, "unknown column name case %q", string(c))
}

// Names converts an ordered list of field names, rejecting names that collide after conversion.
func Names(names []string, c Case) ([]string, error) {
	out := make([]string, len(names))
	seen := make(map[string]string, len(names))
	for i, n := range names {
		converted, err := c.Apply(n)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[converted]; ok {
			return nil, errors.Newf(errors.ErrorTypeSchema,
				"fields %q and %q both become %q", prev, n, converted)
		}
		seen[converted] = n
		out[i] = converted
	}
	return out, nil
}

// Normalize returns a new record with every key converted. The input is not modified.
func Normalize(record map[string]interface{}, c Case) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		converted, err := c.Apply(k)
		if err != nil {
			return nil, err
		}
		if _, dup := out[converted]; dup {
			return nil, errors.Newf(errors.ErrorTypeSchema, "field %q already exists after case conversion", converted)
		}
		out[converted] = v
	}
	return out, nil
}
