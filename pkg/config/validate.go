package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getmockd/embedhttpd/pkg/handler"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

var validLogFormats = map[string]bool{"text": true, "json": true}

var validHandlerTypes = map[string]bool{
	"":                   true,
	handler.TypeEcho:     true,
	handler.TypeStatic:   true,
	handler.TypeUpstream: true,
	handler.TypeRemote:   true,
	handler.TypeManual:   true,
}

// Validate reports every invalid field, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "unknown level %q", c.Log.Level)
	}
	if c.Log.Format != "" && !validLogFormats[strings.ToLower(c.Log.Format)] {
		add("log.format", "unknown format %q", c.Log.Format)
	}
	if c.Control.Addr == "" {
		add("control.addr", "is required")
	}

	b := c.Bridge
	if b.RequestTimeout < 0 {
		add("bridge.requestTimeout", "must not be negative")
	}
	if b.MaxBodyBytes < 0 {
		add("bridge.maxBodyBytes", "must not be negative")
	}
	if b.MaxConnections < 0 {
		add("bridge.maxConnections", "must not be negative")
	}
	if b.Stop.GracePeriod < 0 {
		add("bridge.stop.gracePeriod", "must not be negative")
	}
	if b.Stop.Timeout < 0 {
		add("bridge.stop.timeout", "must not be negative")
	}
	if b.RequestLogSize < 0 {
		add("bridge.requestLogSize", "must not be negative")
	}

	names := make(map[string]int)
	for i := range c.Instances {
		errs = append(errs, c.Instances[i].validate(fmt.Sprintf("instances[%d]", i))...)
		if name := c.Instances[i].Name; name != "" {
			if prev, dup := names[name]; dup {
				add(fmt.Sprintf("instances[%d].name", i), "duplicates instances[%d]", prev)
			}
			names[name] = i
		}
	}
	return errors.Join(errs...)
}

// Validate checks a single instance declaration.
func (ic *InstanceConfig) Validate() error {
	return errors.Join(ic.validate("instance")...)
}

func (ic *InstanceConfig) validate(prefix string) []error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: prefix + "." + field, Message: fmt.Sprintf(format, args...)})
	}

	if ic.Port != nil && (*ic.Port < 0 || *ic.Port > 65535) {
		add("port", "must be between 0 and 65535")
	}

	if t := ic.TLS; t.Enabled() {
		inline := t.CertPEM != "" || t.KeyPEM != ""
		files := t.CertFile != "" || t.KeyFile != ""
		switch {
		case t.Auto && (inline || files):
			add("tls", "auto cannot be combined with certificate material")
		case inline && files:
			add("tls", "use either files or inline PEM, not both")
		case files && (t.CertFile == "" || t.KeyFile == ""):
			add("tls", "certFile and keyFile must be set together")
		case inline && (t.CertPEM == "" || t.KeyPEM == ""):
			add("tls", "certPem and keyPem must be set together")
		}
	}

	if h := ic.Handler; h != nil {
		typ := strings.ToLower(h.Type)
		if !validHandlerTypes[typ] {
			add("handler.type", "unknown handler type %q", h.Type)
		}
		if typ == handler.TypeStatic && h.Status != 0 && (h.Status < 100 || h.Status > 999) {
			add("handler.status", "invalid status %d", h.Status)
		}
		if typ == handler.TypeUpstream && h.Upstream == "" {
			add("handler.upstream", "is required for upstream handlers")
		}
		if h.Timeout != "" {
			if _, err := time.ParseDuration(h.Timeout); err != nil {
				add("handler.timeout", "invalid duration %q", h.Timeout)
			}
		}
		if h.Auth != nil {
			if err := h.Auth.Validate(); err != nil {
				add("handler.auth", "%v", err)
			}
		}
	}
	return errs
}
