package logs

import (
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

// SecretSanitizer wraps a zapcore.Core and masks credentials that commonly
// pass through a gate in front of an OAuth-protected API: bearer and basic
// authorization values, JWTs and credential query parameters.
type SecretSanitizer struct {
	zapcore.Core
	patterns []*secretPattern
}

type secretPattern struct {
	regex    *regexp.Regexp
	maskFunc func(string) string
}

var defaultPatterns = []*secretPattern{
	{
		regex: regexp.MustCompile(`\b(Bearer|Basic)\s+[A-Za-z0-9\-\._~\+\/]+=*`),
		maskFunc: func(match string) string {
			scheme, value, _ := strings.Cut(match, " ")
			return scheme + " " + maskValue(strings.TrimSpace(value))
		},
	},
	{
		regex: regexp.MustCompile(`\beyJ[A-Za-z0-9\-_]+\.eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`),
		maskFunc: func(jwt string) string {
			header, _, _ := strings.Cut(jwt, ".")
			return header + ".***"
		},
	},
	{
		regex: regexp.MustCompile(`(?i)\b(access_token|refresh_token|client_secret|api_key|password)=[^&\s"]+`),
		maskFunc: func(match string) string {
			key, value, _ := strings.Cut(match, "=")
			return key + "=" + maskValue(value)
		},
	},
}

// NewSecretSanitizer creates a new sanitizing core that wraps the provided core
func NewSecretSanitizer(core zapcore.Core) *SecretSanitizer {
	return &SecretSanitizer{
		Core:     core,
		patterns: defaultPatterns,
	}
}

// Sanitize applies every pattern to str
func (s *SecretSanitizer) Sanitize(str string) string {
	for _, pattern := range s.patterns {
		str = pattern.regex.ReplaceAllStringFunc(str, pattern.maskFunc)
	}
	return str
}

// Write sanitizes the entry before writing
func (s *SecretSanitizer) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	entry.Message = s.Sanitize(entry.Message)
	return s.Core.Write(entry, s.sanitizeFields(fields))
}

// With creates a sanitizing child core
func (s *SecretSanitizer) With(fields []zapcore.Field) zapcore.Core {
	return &SecretSanitizer{
		Core:     s.Core.With(s.sanitizeFields(fields)),
		patterns: s.patterns,
	}
}

// Check delegates to the wrapped core
func (s *SecretSanitizer) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if s.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, s)
	}
	return checkedEntry
}

func (s *SecretSanitizer) sanitizeFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, field := range fields {
		if field.Type == zapcore.StringType {
			field.String = s.Sanitize(field.String)
		}
		out[i] = field
	}
	return out
}

// maskValue masks a secret value showing first 3 and last 2 characters
func maskValue(value string) string {
	if len(value) <= 5 {
		return "****"
	}
	if len(value) <= 8 {
		return value[:2] + "****"
	}
	return value[:3] + "***" + value[len(value)-2:]
}
