package classify

import "fmt"

// ConfigurationError reports a missing or invalid credential. It is
// returned before any request is sent.
type ConfigurationError struct {
	Missing string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Missing, e.Cause)
	}
	return "configuration: missing " + e.Missing
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ProviderError reports a non-2xx response or a malformed response envelope.
// Body holds the raw response text.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Cause      error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && (e.StatusCode < 200 || e.StatusCode > 299):
		return fmt.Sprintf("%s API error: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.Cause != nil:
		return fmt.Sprintf("%s API error: %v", e.Provider, e.Cause)
	default:
		return fmt.Sprintf("%s API error: %s", e.Provider, e.Body)
	}
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// ParseError reports model output that could not be turned into a Result.
// Raw is the unmodified model output.
type ParseError struct {
	Raw   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse classification response: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }
