// Package mcp exposes the live editor as Model Context Protocol tools, so an
// agent can inspect the mirrored graph and request changes to it.
package mcp
