package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
)

const sampleConfig = `
server:
  addr: ":9090"
  maxSessions: 10
  requestTimeout: 30s
peers:
  calc:
    type: embedded
  fs:
    type: stdio
    command: npx
    args: ["-y", "server-filesystem", "${FS_ROOT}"]
    env:
      TOKEN: "${FS_TOKEN}"
  remote:
    type: http
    url: https://server.example.com
    apiKey: ${API_KEY}
    profile: work
    config:
      model:
        name: gpt-4
      debug: true
  ws:
    type: websocket
    url: ws://localhost:9000/ws
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func fakeEnv(t *testing.T, env map[string]string) {
	t.Helper()
	previous := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = previous })
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Server.MaxSessions)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, DefaultLogLevel, cfg.Server.LogLevel)

	require.Len(t, cfg.Peers, 4)
	assert.Equal(t, PeerEmbedded, cfg.Peers["calc"].Type)
	assert.Equal(t, "npx", cfg.Peers["fs"].Command)
	assert.Equal(t, []string{"-y", "server-filesystem", "${FS_ROOT}"}, cfg.Peers["fs"].Args)
	assert.Equal(t, "work", cfg.Peers["remote"].Profile)
	assert.Equal(t, true, cfg.Peers["remote"].Config["debug"])
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultMaxSessions, cfg.Server.MaxSessions)
	assert.Equal(t, DefaultRequestTimeout, cfg.Server.RequestTimeout)
	assert.Empty(t, cfg.Peers)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MCPMUX_SERVER_ADDR", ":7070")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		peers   map[string]PeerConfig
		wantErr string
	}{
		{"valid", map[string]PeerConfig{"calc": {Type: PeerEmbedded}}, ""},
		{"underscore in name", map[string]PeerConfig{"my_peer": {Type: PeerEmbedded}}, "invalid namespace"},
		{"missing type", map[string]PeerConfig{"p": {}}, "type is required"},
		{"unknown type", map[string]PeerConfig{"p": {Type: "carrier-pigeon"}}, "unknown type"},
		{"stdio without command", map[string]PeerConfig{"p": {Type: PeerStdio}}, "require a command"},
		{"http without url", map[string]PeerConfig{"p": {Type: PeerHTTP}}, "require a url"},
		{"websocket without url", map[string]PeerConfig{"p": {Type: PeerWebSocket}}, "require a url"},
		{"unknown builtin", map[string]PeerConfig{"p": {Type: PeerEmbedded, Builtin: "oracle"}}, "unknown builtin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Peers: tt.peers}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{Server: ServerConfig{SessionRateLimit: -1}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Server: ServerConfig{MaxSessions: -1}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Server: ServerConfig{SessionRateLimit: 2.5, SessionBurst: 5}}
	assert.NoError(t, cfg.Validate())
}

func TestExpandEnv(t *testing.T) {
	fakeEnv(t, map[string]string{"HOST": "example.com", "EMPTY": ""})

	got, err := ExpandEnv("https://${HOST}/path${EMPTY}")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/path", got)

	got, err = ExpandEnv("no variables, $HOST stays")
	require.NoError(t, err)
	assert.Equal(t, "no variables, $HOST stays", got)

	_, err = ExpandEnv("${HOST} ${NOPE} ${ALSO_NOPE}")
	require.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), "NOPE, ALSO_NOPE")
}

func TestBuildPeerURL(t *testing.T) {
	got, err := BuildPeerURL("https://server.example.com", "key123", "work", map[string]interface{}{
		"model": map[string]interface{}{"name": "gpt-4"},
		"debug": true,
		"tags":  []interface{}{"a", "b"},
		"limit": 5,
		"extra": nil,
	})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/mcp", u.Path)

	q := u.Query()
	assert.Equal(t, "gpt-4", q.Get("model.name"))
	assert.Equal(t, "true", q.Get("debug"))
	assert.Equal(t, "a", q.Get("tags.0"))
	assert.Equal(t, "b", q.Get("tags.1"))
	assert.Equal(t, "5", q.Get("limit"))
	assert.Equal(t, "null", q.Get("extra"))
	assert.Equal(t, "key123", q.Get(ParamAPIKey))
	assert.Equal(t, "work", q.Get(ParamProfile))

	got, err = BuildPeerURL("https://server.example.com/mcp/", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://server.example.com/mcp", got)
}

func TestParseConfigFromQuery(t *testing.T) {
	query := url.Values{
		"model.name":         {"gpt-4"},
		"model.temperature":  {"0.5"},
		"debug":              {"true"},
		"tags.0":             {"a"},
		"tags[1]":            {"b"},
		"matrix[0][1]":       {"x"},
		"matrix[0][0]":       {"w"},
		"server.host":        {"localhost", "ignored"},
		"payload":            {`{"nested":[1,2]}`},
		"not-json":           {"{broken"},
		ParamAPIKey:          {"secret"},
		ParamProfile:         {"work"},
	}

	config := ParseConfigFromQuery(query)

	assert.Equal(t, map[string]interface{}{
		"model":    map[string]interface{}{"name": "gpt-4", "temperature": 0.5},
		"debug":    true,
		"tags":     []interface{}{"a", "b"},
		"matrix":   []interface{}{[]interface{}{"w", "x"}},
		"server":   map[string]interface{}{"host": "localhost"},
		"payload":  map[string]interface{}{"nested": []interface{}{1.0, 2.0}},
		"not-json": "{broken",
	}, config)
}

func TestConfigRoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"model": map[string]interface{}{"name": "gpt-4", "options": []interface{}{"x", "y"}},
		"debug": false,
		"retry": 3.0,
	}

	built, err := BuildPeerURL("http://localhost:8080", "k", "p", original)
	require.NoError(t, err)
	u, err := url.Parse(built)
	require.NoError(t, err)

	assert.Equal(t, original, ParseConfigFromQuery(u.Query()))
}

func TestSources(t *testing.T) {
	fakeEnv(t, map[string]string{"FS_ROOT": "/tmp", "FS_TOKEN": "t0k", "API_KEY": "k"})

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	sources, err := cfg.Sources(logging.NewNop())
	require.NoError(t, err)
	require.Len(t, sources, 4)

	assert.Equal(t, multiplexer.SourceEmbedded, sources["calc"].Kind())
	assert.Equal(t, multiplexer.SourceTransport, sources["fs"].Kind())
	assert.Equal(t, multiplexer.SourceTransport, sources["remote"].Kind())
	assert.Equal(t, multiplexer.SourceTransport, sources["ws"].Kind())
}

func TestSourcesMissingEnv(t *testing.T) {
	fakeEnv(t, map[string]string{"FS_ROOT": "/tmp"})

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	_, err = cfg.Sources(logging.NewNop())
	require.ErrorIs(t, err, ErrMissingEnv)
}

func TestBuiltins(t *testing.T) {
	assert.Equal(t, []string{"calculator"}, Builtins())
}

func TestLoadConfigSchema(t *testing.T) {
	cfg := &Config{}
	schema, err := cfg.LoadConfigSchema()
	require.NoError(t, err)
	assert.Nil(t, schema)

	dir := t.TempDir()
	good := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"type":"object","required":["apiKey"]}`), 0o600))
	cfg.Server.ConfigSchema = good
	schema, err = cfg.LoadConfigSchema()
	require.NoError(t, err)
	assert.Equal(t, "object", schema["type"])

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))
	cfg.Server.ConfigSchema = bad
	_, err = cfg.LoadConfigSchema()
	assert.Error(t, err)

	cfg.Server.ConfigSchema = filepath.Join(dir, "missing.json")
	_, err = cfg.LoadConfigSchema()
	assert.Error(t, err)
}
