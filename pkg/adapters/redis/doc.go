// Package redis stores the editor log panel in a capped Redis list.
package redis
