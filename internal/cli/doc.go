// Package cli implements the tapestry commands: attaching to a backend and
// streaming its log panel, serving the editor over HTTP or MCP, and one-shot
// graph exports. Flags are resolved on top of the configuration file.
package cli
