package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Query parameters that carry credentials rather than session config
const (
	ParamAPIKey  = "api_key"
	ParamProfile = "profile"
)

// BuildPeerURL returns {base}/mcp with config encoded as dot-notation query
// parameters, followed by api_key and profile when set. A base that already
// ends in /mcp is not extended again.
func BuildPeerURL(base, apiKey, profile string, config map[string]interface{}) (string, error) {
	trimmed := strings.TrimRight(base, "/")
	if !strings.HasSuffix(trimmed, "/mcp") {
		trimmed += "/mcp"
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", errors.Wrapf(err, "invalid peer url %q", base)
	}

	query := u.Query()
	for key, value := range flattenConfig(config) {
		query.Set(key, value)
	}
	if apiKey != "" {
		query.Set(ParamAPIKey, apiKey)
	}
	if profile != "" {
		query.Set(ParamProfile, profile)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func flattenConfig(config map[string]interface{}) map[string]string {
	out := make(map[string]string)
	var add func(path []string, value interface{})
	add = func(path []string, value interface{}) {
		switch v := value.(type) {
		case map[string]interface{}:
			for key, nested := range v {
				add(append(path[:len(path):len(path)], key), nested)
			}
		case []interface{}:
			for i, nested := range v {
				add(append(path[:len(path):len(path)], strconv.Itoa(i)), nested)
			}
		default:
			out[strings.Join(path, ".")] = scalarString(v)
		}
	}
	for key, value := range config {
		add([]string{key}, value)
	}
	return out
}

func scalarString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprint(s)
	default:
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(data)
	}
}

// ParseConfigFromQuery rebuilds a nested config from dot-notation query
// parameters. Bracket indexes such as tags[0] are read as tags.0. Values are parsed as JSON where possible and kept as raw
// strings otherwise. api_key and profile are skipped.
func ParseConfigFromQuery(query url.Values) map[string]interface{} {
	keys := make([]string, 0, len(query))
	for key := range query {
		if key == ParamAPIKey || key == ParamProfile || key == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	config := make(map[string]interface{})
	for _, key := range keys {
		values := query[key]
		if len(values) == 0 {
			continue
		}
		raw := values[0]

		var parsed interface{} = raw
		var decoded interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			parsed = decoded
		}

		setPath(config, splitKey(key), parsed)
	}

	for key, value := range config {
		config[key] = normalizeArrays(value)
	}
	return config
}

var bracketReplacer = strings.NewReplacer("[", ".", "]", "")

func splitKey(key string) []string {
	return strings.Split(bracketReplacer.Replace(key), ".")
}

func setPath(root map[string]interface{}, path []string, value interface{}) {
	node := root
	for _, part := range path[:len(path)-1] {
		next, ok := node[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			node[part] = next
		}
		node = next
	}
	node[path[len(path)-1]] = value
}

// normalizeArrays turns maps keyed exactly 0..n-1 into slices
func normalizeArrays(value interface{}) interface{} {
	m, ok := value.(map[string]interface{})
	if !ok {
		return value
	}
	for k, v := range m {
		m[k] = normalizeArrays(v)
	}

	if len(m) == 0 {
		return m
	}
	list := make([]interface{}, len(m))
	for k, v := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(m) || strconv.Itoa(i) != k {
			return m
		}
		list[i] = v
	}
	return list
}
