// Package memory provides in-memory implementations of the editor ports.
package memory
