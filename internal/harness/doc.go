// Package harness runs YAML simulation scenarios: load a choreography
// source file, fire a sequence of events, then assert per-event markings
// and compare a marking snapshot against a golden file. Scenarios live
// under testdata/scenarios and reference source files relative to their
// own location.
package harness
