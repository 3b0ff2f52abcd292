// SPDX-License-Identifier: MPL-2.0

// Package config handles relayhook configuration using Viper with CUE as the file format.
//
// Configuration is loaded from the --config flag, then $XDG_CONFIG_HOME/relayhook/config.cue
// (~/Library/Application Support on macOS, %APPDATA% on Windows), then ./config.cue, and
// falls back to defaults. Keys are case-insensitive, so header names in peer.headers are
// stored lower-cased. Environment variables prefixed with RELAYHOOK_ override file
// values, for example RELAYHOOK_PEER_HOST or RELAYHOOK_LOADER_EXECUTOR.
//
// Files are validated against the embedded #Config schema (config_schema.cue) before they
// are merged, so type errors are reported with the CUE path of the offending field.
package config
