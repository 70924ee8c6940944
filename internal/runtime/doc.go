// SPDX-License-Identifier: MPL-2.0

// Package runtime launches the subprocesses of a deployment run.
//
// An Environment is created once per run, seeded from the host environment, and
// handed to an Executor. Every process the Executor launches receives exactly
// that environment. A HookCapturer runs hook scripts through the Executor with
// "source and capture" semantics: the script is sourced, the resulting
// environment is dumped and merged back, so variables a hook exports are seen
// by every later hook and by the provisioning command.
//
// Hooks are sourced either by a host shell (native, the default) or by the
// embedded mvdan/sh interpreter (virtual).
package runtime
