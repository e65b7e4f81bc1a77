// Package config loads the editor configuration file.
package config
