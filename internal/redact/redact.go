// Package redact provides utilities for redacting sensitive information from
// strings before they are logged or returned in error responses. Errors in
// this service routinely carry presigned storage URLs, bearer API keys,
// workflow task tokens, and database connection strings; none of those may
// reach logs or clients verbatim.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedURLPlaceholder        = "[REDACTED_PRESIGNED_URL]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
)

// Precompiled redaction patterns
var (
	// Database connection strings with inline credentials
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@`)

	// Presigned URLs: anything carrying an S3-style signature query
	presignedURLRegex = regexp.MustCompile(
		`https?://[^\s"']*[?&](X-Amz-Signature|X-Amz-Credential|Signature)=[^\s"']*`,
	)

	// Bearer credentials in headers or error text
	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/]{8,}`)

	// API keys and secrets in key=value or key: value form
	apiKeyRegex = regexp.MustCompile(
		`(?i)(api[_-]?key|secret|access[_-]?key)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	// JWT tokens (three base64url segments)
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// Workflow task tokens in structured error text. The engine's tokens are
	// long opaque blobs; redact anything labeled as one.
	taskTokenRegex = regexp.MustCompile(`(?i)(task[_-]?token)(['"\s:=]+)[A-Za-z0-9_\-.~+/=]{8,}`)

	patterns = []*regexp.Regexp{
		dbConnRegex, presignedURLRegex, bearerRegex,
		apiKeyRegex, jwtTokenRegex, taskTokenRegex,
	}

	patternPlaceholders = map[*regexp.Regexp]string{
		dbConnRegex:       RedactedCredentialPlaceholder,
		presignedURLRegex: RedactedURLPlaceholder,
		bearerRegex:       RedactedKeyPlaceholder,
		apiKeyRegex:       RedactedKeyPlaceholder,
		jwtTokenRegex:     "[REDACTED_JWT]",
		taskTokenRegex:    RedactedTokenPlaceholder,
	}
)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, pattern := range patterns {
		result = pattern.ReplaceAllString(result, patternPlaceholders[pattern])
	}

	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
