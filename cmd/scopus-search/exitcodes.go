package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure, failed authors)
	ExitConfigError = 2 // Configuration error (unreadable config, missing API key)
	ExitDataError   = 3 // Data error (cache database unreadable, malformed input)
)
