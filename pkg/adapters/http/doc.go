/*
Package http exposes a running editor over HTTP.

It serves the rendered scene (JSON and SVG), the graph snapshot, the log
panel and a server-sent stream of render diffs, and accepts both high-level
mutations (create, move, connect, delete) and raw pointer gestures so that a
thin browser front-end can drive the interaction controller. Requests are
validated against the embedded OpenAPI document.
*/
package http
