// Package tool implements the thirteen built-in tools and registers
// each against the engine's tool registry from an init() function,
// mirroring the database/sql driver-registration idiom so the engine
// package never imports this one.
package tool

import "github.com/forgen-run/forgen/engine"

// Base gives a tool no-op Initialize/Cleanup; embed it and implement
// only Validate/Execute.
type Base struct{}

func (Base) Initialize() error { return nil }
func (Base) Cleanup() error    { return nil }

func validOK() engine.ValidationResult {
	return engine.ValidationResult{IsValid: true}
}

func invalid(msg string) engine.ValidationResult {
	return engine.ValidationResult{IsValid: false, Errors: []string{msg}}
}
