// Package middleware provides decorators for log panel sinks.
package middleware
