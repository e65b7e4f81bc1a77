// Package logging builds the slog loggers shared by the CLI and the library defaults.
package logging
