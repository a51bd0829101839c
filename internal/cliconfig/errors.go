package cliconfig

import "errors"

var (
	errConfigFileNotFound = errors.New("cliconfig: config file not found")
	errConfigFileRead     = errors.New("cliconfig: could not read config file")
	errConfigInvalid      = errors.New("cliconfig: invalid config")
	errWorkersInvalid     = errors.New("cliconfig: workers must be positive")
)
