// Package config handles configuration loading for note-gateway.
//
// # Overview
//
// Configuration comes from an optional YAML or TOML file, then from a fixed
// set of environment variables, then is validated. Every key has a default,
// so an empty file (or no file at all, via FromEnv) yields a runnable
// gateway that serves the public tools without credentials.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path passed with --config
//  2. Path from NOTE_GATEWAY_CONFIG environment variable
//  3. ~/.config/note-gateway/config.yaml
//
// A missing default file is not an error; the gateway falls back to FromEnv.
// Files ending in .toml are decoded as TOML, anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	note:
//	  session: "${NOTE_SESSION_V5}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Environment Overrides
//
// After the file is decoded, these variables override it when non-empty:
//
//	MCP_HTTP_HOST, MCP_HTTP_PORT       server.host, server.port
//	NOTE_SESSION_V5, NOTE_XSRF_TOKEN   note.session, note.xsrf_token
//	NOTE_EMAIL, NOTE_PASSWORD          note.email, note.password
//	NOTE_BASE_URL                      note.base_url
//	NOTE_GATEWAY_JWT_SECRET            auth.jwt_secret
//	DEBUG=true                         logging.level = debug
//
// # Configuration Sections
//
//	server:
//	  host: "127.0.0.1"
//	  port: 3000
//
//	note:
//	  base_url: "https://note.com/api"
//	  session: ""          # _note_session_v5 cookie
//	  xsrf_token: ""       # XSRF-TOKEN cookie
//	  email: ""            # login fallback when no session is given
//	  password: ""
//	  timeout: "30s"
//	  cache_size: 256      # entries in the idempotent GET cache
//	  cache_ttl: "0s"      # 0 disables the cache
//
//	markdown:
//	  engine: "note"       # note, commonmark
//
//	database:
//	  path: ""             # tool-call journal; empty disables it
//
//	auth:
//	  jwt_secret: ""       # when set, /mcp and /sse require a bearer JWT
//
//	logging:
//	  level: "info"        # debug, info, warn, error
//	  format: "text"       # text, json
//
//	mcp:
//	  name: "note-api-mcp"
//	  version: "2.0.0-http"
//	  protocol_version: "2025-06-18"
//
// # Validation
//
// Validate rejects:
//
//   - an empty host or a port outside 0..65535
//   - a base URL that is not absolute
//   - an email without a password (or the reverse)
//   - negative durations
//   - unknown markdown engines and log formats
//   - a JWT secret shorter than 32 bytes
package config
