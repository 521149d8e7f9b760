package config

import (
	"net/url"
	"strings"
)

// RedactURL replaces the password in a connection URL with "***" so the
// DSN can be logged or printed safely. URLs without userinfo (including
// sqlite file paths) and unparseable strings are returned unchanged.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}

	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}

	// Rewrite the password portion of the userinfo section in the raw
	// string rather than re-serializing the URL, so query parameters
	// and escaping survive untouched.
	schemeEnd := strings.Index(raw, "://")
	if schemeEnd < 0 {
		return raw
	}

	afterScheme := schemeEnd + len("://")

	atIdx := strings.Index(raw[afterScheme:], "@")
	if atIdx < 0 {
		return raw
	}

	userinfo := raw[afterScheme : afterScheme+atIdx]

	colonIdx := strings.Index(userinfo, ":")
	if colonIdx < 0 {
		return raw
	}

	return raw[:afterScheme] + userinfo[:colonIdx+1] + "***" + raw[afterScheme+atIdx:]
}
