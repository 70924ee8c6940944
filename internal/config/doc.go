// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is read from an explicit --config file, else from
// $XDG_CONFIG_HOME/tfrun/config.cue (platform equivalent on macOS and Windows),
// else from ./tfrun.cue. Files are validated against the embedded #Config
// schema (config_schema.cue). Every key can be overridden with a TFRUN_
// environment variable, e.g. TFRUN_FAIL_ON_LOG_ERRORS=false or TFRUN_UI_VERBOSE=true.
package config
