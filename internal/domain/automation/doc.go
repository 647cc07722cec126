// Package automation manages stored workflows and their execution records.
//
// A workflow is an ordered list of actions against a target URL. Running it
// creates an Execution that moves strictly forward:
//
//	pending -> running -> completed | failed
//
// Every transition is a conditional update on the expected current status, so a
// terminal execution can never be modified. Playback itself is delegated to a
// Runner; transitions are published to an optional Notifier.
//
// Built-in templates are embedded from templates/ and may be extended from a
// directory of YAML or TOML files.
package automation
