// SPDX-License-Identifier: MPL-2.0

// Package deploy runs one provisioning action for one component and environment.
//
// A Runner walks a fixed sequence of states: it builds the run environment,
// resolves the variable files, assembles the Terraform command line, sources
// the global and component "before" hooks, runs Terraform, scans its log for
// error markers, and finally sources the "after" hooks. The first failing
// state ends the run; nothing is retried.
//
// Every run writes into its own log directory:
//
//	run.log                 narrative log of what was attempted
//	terraform-<action>.log  raw Terraform output
//	hook-<stage>.log        raw output of each hook
//	run.toml                machine-readable summary of the result
package deploy
