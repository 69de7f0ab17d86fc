package config

import (
	"net/url"
	"regexp"
)

var passwordPattern = regexp.MustCompile(`(?i)(password=)[^\s&]+`)

// Redact masks credentials in a connection string before it is logged.
// URL userinfo passwords and key=value password fields are replaced.
func Redact(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			return u.Redacted()
		}
	}
	return passwordPattern.ReplaceAllString(dsn, "${1}xxxxx")
}
