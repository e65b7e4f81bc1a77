// Package ws implements the reconnecting websocket push channels of the transport layer.
package ws
