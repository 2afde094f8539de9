package memory

import "regexp"

// Redacted replaces private spans in persisted content.
const Redacted = "[REDACTED]"

// privateSpan matches well-formed <private>...</private> spans,
// including ones that cross newlines. An unterminated opening marker
// does not match and is left untouched rather than guessed at.
var privateSpan = regexp.MustCompile(`(?s)<private>.*?</private>`)

// Redact replaces every private span in content with the redaction
// token. Content is filtered before it ever reaches the store.
func Redact(content string) string {
	return privateSpan.ReplaceAllString(content, Redacted)
}
