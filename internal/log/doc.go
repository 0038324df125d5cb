// Package log provides the structured logger of the research client: an
// slog handler that masks credentials before records reach the output.
//
// Research requests may carry cookies and authorization headers taken from
// the configuration file, and server URLs may embed user credentials. The
// SecureHandler masks:
//   - attributes whose key names a credential (cookie, authorization, token, ...)
//   - string values that look like bearer tokens, JWTs or provider API keys
//   - the password part of URLs with user information
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
