package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/kbukum/snapstream/errors"
)

// ResolveVariable returns the value of name from the environment, or from
// the file <secretsBase>/<name> when the variable is unset. Trailing
// whitespace is trimmed from file contents.
func ResolveVariable(name, secretsBase string) (string, error) {
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	if secretsBase != "" {
		data, err := os.ReadFile(filepath.Join(secretsBase, name))
		if err == nil {
			return strings.TrimRight(string(data), "\r\n\t "), nil
		}
		if !os.IsNotExist(err) {
			return "", apperrors.Config(fmt.Sprintf("read secret %s", name)).WithCause(err)
		}
	}
	return "", apperrors.Config(fmt.Sprintf("variable $%s is not set", name)).
		WithDetail("variable", name)
}

// ResolveVariables returns a copy of conf in which every string value
// starting with "$" is replaced by the variable it names. A leading `\$`
// stands for a literal dollar sign. Nested maps and lists are resolved
// recursively.
func ResolveVariables(conf map[string]any, secretsBase string) (map[string]any, error) {
	out := make(map[string]any, len(conf))
	for k, v := range conf {
		resolved, err := resolveValue(v, secretsBase)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

func resolveValue(v any, secretsBase string) (any, error) {
	switch val := v.(type) {
	case string:
		switch {
		case strings.HasPrefix(val, `\$`):
			return strings.ReplaceAll(val, `\$`, "$"), nil
		case strings.HasPrefix(val, "$") && len(val) > 1:
			return ResolveVariable(val[1:], secretsBase)
		}
		return val, nil
	case map[string]any:
		return ResolveVariables(val, secretsBase)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			r, err := resolveValue(item, secretsBase)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}
