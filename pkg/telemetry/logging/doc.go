// Package logging provides the structured logger used across the engine.
// It is a thin wrapper over log/slog that parses level and format from
// configuration and hands out component-scoped child loggers.
package logging
