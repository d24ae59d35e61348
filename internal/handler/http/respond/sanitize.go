package respond

import "regexp"

// Credential shapes this service actually handles: the two AI provider
// key formats and the password segment of a DSN. The Anthropic pattern
// runs first because the OpenAI one would match its prefix.
var maskPatterns = []struct {
	re   *regexp.Regexp
	mask string
}{
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9-_]+`), "sk-ant-****"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9]{10,}`), "sk-****"},
	{regexp.MustCompile(`://([^:/]+):([^@]+)@`), "://$1:****@"},
}

// SanitizeError returns the error message with credentials masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, p := range maskPatterns {
		msg = p.re.ReplaceAllString(msg, p.mask)
	}
	return msg
}
