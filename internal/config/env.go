package config

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrMissingEnv is returned when a referenced variable is not set
var ErrMissingEnv = errors.New("missing environment variable")

// lookupEnv is replaced in tests
var lookupEnv = os.LookupEnv

// ExpandEnv replaces every ${VAR} in s. Variables that are not set are an
// error naming all of them; set but empty variables expand to "".
func ExpandEnv(s string) (string, error) {
	var missing []string
	out := envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		value, ok := lookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", errors.Wrap(ErrMissingEnv, strings.Join(missing, ", "))
	}
	return out, nil
}

func expandAll(values []string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		expanded, err := ExpandEnv(v)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}

// expandMap expands values and upper-cases keys. Keys are folded to lower
// case by viper, and environment variable names are conventionally upper
// case.
func expandMap(values map[string]string, upperKeys bool) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(values))
	for _, k := range keys {
		expanded, err := ExpandEnv(values[k])
		if err != nil {
			return nil, errors.Wrapf(err, "%s", k)
		}
		if upperKeys {
			k = strings.ToUpper(k)
		}
		out[k] = expanded
	}
	return out, nil
}
