// Package config loads and watches the bridge configuration file (config.yaml).
//
// Top-level types:
//   - Config{Bridge, Alerts}: full config tree parsed from YAML
//   - BridgeConfig: base_url, scan_interval, request_timeout, concurrency,
//     http_port, ws_interval, accounts []
//   - Account: id, username, password or password_env; Password() resolves
//     the environment variable when one is named
//   - AlertsConfig: threshold rules on readings and webhook targets
//
// Load(path) reads the YAML file, applies defaults (900s scan, 30s request
// timeout, sequential fetches, port 8099), then validates that every account
// has a username and a non-empty password and that every alert rule parses.
//
// Watch(ctx, path, logger, onChange) uses fsnotify to detect file changes and
// calls onChange with the newly parsed Config. A failed reload keeps the
// previous config.
package config
