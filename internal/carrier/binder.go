package carrier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"uw-workbench/internal/common/errors"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// BindingTable maps variable names to the values extracted from earlier
// step responses.
type BindingTable map[string]string

// Validate checks that every ${name} referenced in the chain is either
// declared by an earlier step's vars or present in the supplied bindings.
// The first unresolved reference is reported as a BindingError carrying the
// step index.
func Validate(steps []Step, bindings BindingTable) error {
	declared := map[string]bool{}
	for name := range bindings {
		declared[name] = true
	}

	for i, step := range steps {
		for _, name := range referencedVars(step) {
			if !declared[name] {
				return errors.NewBindingError(name, i)
			}
		}
		for _, v := range step.Vars {
			declared[v.Name] = true
		}
	}
	return nil
}

// Resolve substitutes bound values for ${name} placeholders in every step's
// URI and body. References satisfied by a later step's vars declaration are
// left in place for the carrier to resolve server-side; a reference that
// neither the bindings nor an earlier step can satisfy is a BindingError.
func Resolve(steps []Step, bindings BindingTable) ([]Step, error) {
	if err := Validate(steps, bindings); err != nil {
		return nil, err
	}

	resolved := make([]Step, len(steps))
	for i, step := range steps {
		out := Step{
			Method: step.Method,
			URI:    substitute(step.URI, bindings),
			Vars:   step.Vars,
		}
		if step.Body != nil {
			raw, err := json.Marshal(step.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal step %d body: %w", i, err)
			}
			substituted := substitute(string(raw), bindings)
			var body map[string]interface{}
			if err := json.Unmarshal([]byte(substituted), &body); err != nil {
				return nil, fmt.Errorf("failed to rebuild step %d body: %w", i, err)
			}
			out.Body = body
		}
		resolved[i] = out
	}
	return resolved, nil
}

func substitute(s string, bindings BindingTable) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if val, ok := bindings[name]; ok {
			return val
		}
		return match
	})
}

func referencedVars(step Step) []string {
	var names []string
	seen := map[string]bool{}
	collect := func(s string) {
		for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	collect(step.URI)
	if step.Body != nil {
		if raw, err := json.Marshal(step.Body); err == nil {
			collect(string(raw))
		}
	}
	return names
}

// ExtractVars evaluates a step's vars declarations against its response body
// and merges the values into the binding table. A declared path that does
// not resolve is a ParseError naming the variable.
func ExtractVars(resp StepResponse, decls []VarDecl, bindings BindingTable) error {
	for _, decl := range decls {
		val, err := EvalPath(resp.Body, decl.Path)
		if err != nil {
			return errors.NewParseError(decl.Name, err)
		}
		bindings[decl.Name] = val
	}
	return nil
}

// EvalPath resolves a $.a.b.c style extraction path against a decoded JSON
// body and renders the leaf as a string.
func EvalPath(body map[string]interface{}, path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "$.")
	if trimmed == path {
		return "", fmt.Errorf("unsupported path %q", path)
	}

	var current interface{} = body
	for _, segment := range strings.Split(trimmed, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("path %q: segment %q is not an object", path, segment)
		}
		current, ok = obj[segment]
		if !ok {
			return "", fmt.Errorf("path %q: missing segment %q", path, segment)
		}
	}

	switch v := current.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	default:
		return "", fmt.Errorf("path %q: leaf is %T, not a scalar", path, current)
	}
}
