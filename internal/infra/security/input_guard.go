package security

import (
	"regexp"
	"strings"
)

// Threat names what an input inspection matched.
type Threat string

const (
	ThreatNone         Threat = ""
	ThreatSQLInjection Threat = "sql_injection"
	ThreatXSS          Threat = "xss"
)

var sqlInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|UNION|SCRIPT)\b`),
	regexp.MustCompile(`(?i)\b(OR|AND)\s+\d+\s*=\s*\d+`),
	regexp.MustCompile("(?i)['\"`]\\s*(OR|AND)\\s+['\"`\\d]"),
	regexp.MustCompile(`--|/\*|\*/`),
}

var xssMarkers = []string{
	"<script",
	"javascript:",
	"onclick=",
	"onerror=",
	"onload=",
	"onmouseover=",
	"onfocus=",
	"eval(",
	"expression(",
	"vbscript:",
	"data:text/html",
}

// DetectSQLInjection reports whether input looks like an SQL injection attempt.
// Queries are always parameterized; this only feeds the security log.
func DetectSQLInjection(input string) bool {
	for _, pattern := range sqlInjectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// DetectXSS reports whether input carries a known script injection marker.
func DetectXSS(input string) bool {
	lowered := strings.ToLower(input)
	for _, marker := range xssMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// Inspect returns the first threat found in input.
func Inspect(input string) Threat {
	switch {
	case DetectSQLInjection(input):
		return ThreatSQLInjection
	case DetectXSS(input):
		return ThreatXSS
	default:
		return ThreatNone
	}
}
