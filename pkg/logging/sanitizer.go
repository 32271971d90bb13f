package logging

import (
	"regexp"

	"github.com/codemorph-io/sas-engine/pkg/models"
)

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// LIBNAME attribute strings carry credentials inline:
	// password=xxx, pwd=xxx, pass=xxx (until the next delimiter).
	credentialPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)\s*=\s*["']?[^"';\s]+["']?`)

	// API keys in error strings or attribute text.
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey)=[A-Za-z0-9-_]{20,}`)

	// user:pass@host connection URLs.
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeConnectionDetail removes credentials from a LIBNAME attribute
// string or connection URL. Use this before logging or persisting any
// connection detail extracted from source.
func SanitizeConnectionDetail(detail string) string {
	if detail == "" {
		return ""
	}
	sanitized := credentialPattern.ReplaceAllString(detail, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeReport redacts credentials from every report field that carries
// source text: connection details and chunk output, which reproduces
// LIBNAME statements verbatim. Call this before a report is logged,
// cached, persisted, or rendered.
func SanitizeReport(report *models.AnalysisReport) {
	for _, db := range report.Databases {
		db.ConnectionDetail = SanitizeConnectionDetail(db.ConnectionDetail)
	}
	if report.Chunks == nil {
		return
	}
	for _, m := range report.Chunks.Macros {
		m.Text = SanitizeConnectionDetail(m.Text)
	}
	for i := range report.Chunks.Units {
		report.Chunks.Units[i].Text = SanitizeConnectionDetail(report.Chunks.Units[i].Text)
	}
}

// SanitizeError sanitizes error messages that might contain credentials.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := credentialPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}
