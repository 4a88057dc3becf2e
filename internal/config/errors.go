package config

import "fmt"

// EnvParseError is returned when an environment variable cannot be parsed.
type EnvParseError struct {
	Key   string
	Value string
	Cause error
}

func (e *EnvParseError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %v", e.Value, e.Key, e.Cause)
}
func (e *EnvParseError) Unwrap() error { return e.Cause }
