package api

import "time"

// Config holds server configuration.
type Config struct {
	Addr        string        // Listen address (e.g. ":8780")
	Path        string        // Bibliography file to serve
	IncludeMeta bool          // Surface free text between blocks as elements
	MonthMacros bool          // Resolve jan..dec as predefined symbols
	Watch       bool          // Reload when the file changes on disk
	Debounce    time.Duration // Watch debounce interval (0 = default)
}

// DefaultAddr is used when Config.Addr is empty.
const DefaultAddr = ":8780"
