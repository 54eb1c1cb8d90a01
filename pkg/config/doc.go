// Package config loads the embedhttpd configuration file.
//
// Files are YAML unless their extension is .json. Fields omitted from the
// file keep the values from Default, and a few settings can be overridden
// from the environment with ApplyEnv:
//
//	EMBEDHTTPD_LOG_LEVEL        log.level
//	EMBEDHTTPD_LOG_FORMAT       log.format
//	EMBEDHTTPD_CONTROL_ADDR     control.addr
//	EMBEDHTTPD_REQUEST_TIMEOUT  bridge.requestTimeout
//
// Example:
//
//	log: {level: info, format: text}
//	control: {addr: 127.0.0.1:4291}
//	bridge:
//	  requestTimeout: 60s
//	  stop: {gracePeriod: 60ms, timeout: 120ms}
//	instances:
//	  - name: hello
//	    host: 127.0.0.1
//	    port: 8080
//	    autoStart: true
//	    handler: {type: static, status: 200, body: "Hello World"}
package config
