package format

import "strings"

const redacted = "[REDACTED]"

// sensitiveHeaders carry credentials and are masked when printed
var sensitiveHeaders = map[string]bool{
	// Standard authentication headers
	"authorization":       true,
	"proxy-authorization": true,
	"www-authenticate":    true,

	// Session and token headers
	"cookie":       true,
	"set-cookie":   true,
	"x-api-key":    true,
	"api-key":      true,
	"x-auth-token": true,
	"x-csrf-token": true,
	"x-xsrf-token": true,

	// Cloud provider credentials
	"x-amz-security-token":     true,
	"x-amz-credential":         true,
	"x-amz-signature":          true,
	"x-goog-iap-jwt-assertion": true,
	"x-ms-token-aad-id-token":  true,

	"x-access-token":  true,
	"x-refresh-token": true,
	"x-session-token": true,
	"x-secret-key":    true,
	"x-private-key":   true,
}

// IsSensitiveHeader reports whether name carries credentials
func IsSensitiveHeader(name string) bool {
	return sensitiveHeaders[strings.ToLower(strings.TrimSpace(name))]
}

// RedactHeaders returns a copy of headers with credential values masked
func RedactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if IsSensitiveHeader(k) {
			out[k] = redacted
		} else {
			out[k] = v
		}
	}
	return out
}
