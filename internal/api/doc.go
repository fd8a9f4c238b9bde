// Package api contains the HTTP handlers for job submission and webhook
// ingestion, plus the error-to-status mapping shared between them.
package api
