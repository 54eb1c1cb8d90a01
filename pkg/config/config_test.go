package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const sampleYAML = `
log: {level: debug, format: json}
bridge:
  requestTimeout: 5s
  stop: {gracePeriod: 50ms, timeout: 100ms}
instances:
  - name: hello
    host: 127.0.0.1
    port: 8080
    autoStart: true
    handler: {type: static, status: 200, body: "Hello World", headers: {Content-Type: text/plain}}
  - name: remote
    host: 127.0.0.1
`

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "embedhttpd.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DefaultControlAddr, cfg.Control.Addr)
	assert.Equal(t, 5*time.Second, cfg.Bridge.RequestTimeout.Std())
	assert.Equal(t, 50*time.Millisecond, cfg.Bridge.Stop.Options().GracePeriod)
	assert.Equal(t, 100*time.Millisecond, cfg.Bridge.Stop.Options().Timeout)
	assert.EqualValues(t, 10<<20, cfg.Bridge.MaxBodyBytes)

	require.Len(t, cfg.Instances, 2)
	hello := cfg.Instances[0]
	assert.Equal(t, 8080, hello.PortOrDefault())
	assert.True(t, hello.AutoStart)
	require.NotNil(t, hello.Handler)
	assert.Equal(t, "static", hello.Handler.Type)
	assert.Equal(t, "text/plain", hello.Handler.Headers["Content-Type"])

	assert.Equal(t, DefaultPort, cfg.Instances[1].PortOrDefault())
	assert.Nil(t, cfg.Instances[1].Handler)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "embedhttpd.json", `{
		"control": {"addr": "127.0.0.1:9999"},
		"bridge": {"requestTimeout": "250ms"},
		"instances": [{"host": "127.0.0.1", "port": 0, "handler": {"type": "echo"}}]
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Control.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Bridge.RequestTimeout.Std())
	assert.Equal(t, 0, cfg.Instances[0].PortOrDefault())
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr error
	}{
		{"empty", "a.yaml", "  \n", ErrEmptyFile},
		{"bad yaml", "a.yaml", "log: [unclosed", ErrInvalidYAML},
		{"bad json", "a.json", "{", ErrInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

func TestValidate_ReportsEveryField(t *testing.T) {
	port := 70000
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Bridge.RequestTimeout = Duration(-time.Second)
	cfg.Instances = []InstanceConfig{
		{Name: "a", Port: &port},
		{Name: "a", TLS: &TLSConfig{Auto: true, CertFile: "cert.pem"}},
		{Handler: nil, TLS: &TLSConfig{CertFile: "cert.pem"}},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, field := range []string{
		"log.level",
		"bridge.requestTimeout",
		"instances[0].port",
		"instances[1].name",
		"instances[1].tls",
		"instances[2].tls",
	} {
		assert.Contains(t, msg, field)
	}

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestValidate_Handlers(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown type", `{type: lua}`, "handler.type"},
		{"upstream without url", `{type: upstream}`, "handler.upstream"},
		{"bad timeout", `{type: upstream, upstream: "http://x", timeout: soon}`, "handler.timeout"},
		{"bad status", `{type: static, status: 42}`, "handler.status"},
		{"bad auth", `{type: echo, auth: {type: token}}`, "handler.auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte("instances:\n  - handler: " + tt.yaml + "\n"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:       "WARN",
		EnvLogFile:        "/var/log/embedhttpd.jsonl",
		EnvControlAddr:    "0.0.0.0:5000",
		EnvRequestTimeout: "3s",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.Equal(t, "/var/log/embedhttpd.jsonl", cfg.Log.File)
	assert.Equal(t, "0.0.0.0:5000", cfg.Control.Addr)
	assert.Equal(t, 3*time.Second, cfg.Bridge.RequestTimeout.Std())

	env[EnvRequestTimeout] = "later"
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
}

func TestTLSConfig_Material(t *testing.T) {
	var none *TLSConfig
	m, err := none.Material("127.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = (&TLSConfig{Auto: true}).Material("127.0.0.1")
	require.NoError(t, err)
	_, err = m.ServerConfig()
	assert.NoError(t, err)

	m, err = (&TLSConfig{CertFile: "c.pem", KeyFile: "k.pem"}).Material("")
	require.NoError(t, err)
	assert.Equal(t, "c.pem", m.CertFile)
}

func TestToYAML_RoundTripsDurations(t *testing.T) {
	data, err := Default().ToYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "requestTimeout: 1m0s")

	cfg, err := ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Bridge.RequestTimeout.Std())
}

func TestInstanceConfig_Validate(t *testing.T) {
	port := -1
	ic := &InstanceConfig{Port: &port}
	err := ic.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instance.port")

	port = 8080
	assert.NoError(t, ic.Validate())
}
