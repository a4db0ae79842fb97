// Package logging builds the process-wide slog logger with console and JSON
// handlers plus standardized field keys shared across components.
package logging
