package config

import (
	"fmt"

	"github.com/getmockd/embedhttpd/pkg/correlation"
	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/lifecycle"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
	"github.com/getmockd/embedhttpd/pkg/tls"
)

// Defaults.
const (
	DefaultControlAddr = "127.0.0.1:4291"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"

	// DefaultPort is used by instances that omit port. Port 0 asks the
	// system for a free port.
	DefaultPort = 80
)

// Config is the root of the configuration file.
type Config struct {
	Log       LogConfig        `yaml:"log" json:"log"`
	Control   ControlConfig    `yaml:"control" json:"control"`
	Bridge    BridgeConfig     `yaml:"bridge" json:"bridge"`
	Instances []InstanceConfig `yaml:"instances,omitempty" json:"instances,omitempty"`
}

// LogConfig selects the log level and output format. File, when set, also
// receives every record as JSON lines, appended.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// ControlConfig configures the management API.
type ControlConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// BridgeConfig holds the settings shared by every instance.
type BridgeConfig struct {
	RequestTimeout Duration   `yaml:"requestTimeout" json:"requestTimeout"`
	MaxBodyBytes   int64      `yaml:"maxBodyBytes" json:"maxBodyBytes"`
	MaxConnections int        `yaml:"maxConnections,omitempty" json:"maxConnections,omitempty"`
	Stop           StopConfig `yaml:"stop" json:"stop"`
	RequestLogSize int        `yaml:"requestLogSize" json:"requestLogSize"`
}

// StopConfig holds the default stop options.
type StopConfig struct {
	GracePeriod Duration `yaml:"gracePeriod" json:"gracePeriod"`
	Timeout     Duration `yaml:"timeout" json:"timeout"`
}

// Options converts the config to lifecycle stop options.
func (s StopConfig) Options() lifecycle.StopOptions {
	return lifecycle.StopOptions{
		GracePeriod: s.GracePeriod.Std(),
		Timeout:     s.Timeout.Std(),
	}.WithDefaults()
}

// InstanceConfig declares an instance created at startup.
type InstanceConfig struct {
	Name      string        `yaml:"name,omitempty" json:"name,omitempty"`
	Host      string        `yaml:"host,omitempty" json:"host,omitempty"`
	Port      *int          `yaml:"port,omitempty" json:"port,omitempty"`
	AutoStart bool          `yaml:"autoStart,omitempty" json:"autoStart,omitempty"`
	TLS       *TLSConfig    `yaml:"tls,omitempty" json:"tls,omitempty"`
	Handler   *handler.Spec `yaml:"handler,omitempty" json:"handler,omitempty"`
}

// PortOrDefault returns the configured port, or DefaultPort when omitted.
func (ic *InstanceConfig) PortOrDefault() int {
	if ic.Port == nil {
		return DefaultPort
	}
	return *ic.Port
}

// TLSConfig selects certificate material for an instance.
type TLSConfig struct {
	CertFile string `yaml:"certFile,omitempty" json:"certFile,omitempty"`
	KeyFile  string `yaml:"keyFile,omitempty" json:"keyFile,omitempty"`
	CertPEM  string `yaml:"certPem,omitempty" json:"certPem,omitempty"`
	KeyPEM   string `yaml:"keyPem,omitempty" json:"keyPem,omitempty"`

	// Auto generates a self-signed certificate for the instance host.
	Auto bool `yaml:"auto,omitempty" json:"auto,omitempty"`
}

// Enabled reports whether any TLS material is configured.
func (t *TLSConfig) Enabled() bool {
	return t != nil && (t.Auto || t.CertFile != "" || t.KeyFile != "" || t.CertPEM != "" || t.KeyPEM != "")
}

// Material resolves the configuration into TLS material. It returns nil
// when TLS is not enabled.
func (t *TLSConfig) Material(host string) (*tls.Material, error) {
	if !t.Enabled() {
		return nil, nil
	}
	if t.Auto {
		m, err := tls.GenerateSelfSigned(tls.ForHost(host))
		if err != nil {
			return nil, fmt.Errorf("generating certificate: %w", err)
		}
		return m, nil
	}
	return &tls.Material{
		CertFile: t.CertFile,
		KeyFile:  t.KeyFile,
		CertPEM:  []byte(t.CertPEM),
		KeyPEM:   []byte(t.KeyPEM),
	}, nil
}

// Default returns the configuration used for omitted fields.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Control: ControlConfig{
			Addr: DefaultControlAddr,
		},
		Bridge: BridgeConfig{
			RequestTimeout: Duration(correlation.DefaultTimeout),
			MaxBodyBytes:   message.DefaultMaxBodyBytes,
			Stop: StopConfig{
				GracePeriod: Duration(lifecycle.DefaultGracePeriod),
				Timeout:     Duration(lifecycle.DefaultStopTimeout),
			},
			RequestLogSize: requestlog.DefaultCapacity,
		},
	}
}
