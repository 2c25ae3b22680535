// Package codegen produces random short codes and validates caller input.
package codegen

import (
	"math/rand/v2"
	"net/url"
	"regexp"
	"strings"
)

const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	MinAliasLength = 3
	MaxAliasLength = 20

	// MaxCodeLength bounds every code the service will store or resolve.
	MaxCodeLength = 20
)

var (
	codePattern      = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	hostLabelPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,63}$`)
)

// Generate returns length characters drawn uniformly from Alphabet.
// Codes are not meant to be unguessable; uniqueness comes from the
// allocator retrying on conflict.
func Generate(length int) string {
	if length <= 0 {
		return ""
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = Alphabet[rand.IntN(len(Alphabet))]
	}
	return string(b)
}

// IsValidAlias reports whether candidate may be used as a custom alias.
func IsValidAlias(candidate string) bool {
	if len(candidate) < MinAliasLength || len(candidate) > MaxAliasLength {
		return false
	}
	if !codePattern.MatchString(candidate) {
		return false
	}
	if strings.HasPrefix(candidate, "-") || strings.HasSuffix(candidate, "-") {
		return false
	}
	return !strings.Contains(candidate, "--")
}

// IsPlausibleCode reports whether code could have been issued by the
// service. It is used to reject lookups before touching storage.
func IsPlausibleCode(code string) bool {
	return code != "" && len(code) <= MaxCodeLength && codePattern.MatchString(code)
}

// ValidateURL reports whether candidate is an absolute http(s) URL with a
// syntactically valid host. No network lookup is made.
func ValidateURL(candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil || u.Opaque != "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if !hostLabelPattern.MatchString(label) {
			return false
		}
	}
	return true
}

// Random is the default generator used by the allocator.
type Random struct{}

func (Random) Generate(length int) string {
	return Generate(length)
}
