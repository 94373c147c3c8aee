// Package startup handles process bring-up: environment-driven
// configuration with validation, directory checks, build metadata, and
// the structured startup/shutdown logging sequence.
package startup
