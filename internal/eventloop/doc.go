// Package eventloop provides the single goroutine that owns all mutable editor state.
package eventloop
