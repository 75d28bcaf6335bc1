// Package logger builds the application's log/slog logger: text output in
// development, JSON in production, tagged with the environment name.
package logger
