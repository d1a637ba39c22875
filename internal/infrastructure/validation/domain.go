package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrDomainEmpty indicates that a domain is empty
	ErrDomainEmpty = errors.New("domain cannot be empty")

	// ErrDomainTooLong indicates that a domain exceeds 253 characters
	ErrDomainTooLong = errors.New("domain exceeds maximum length of 253 characters")

	// ErrDomainNotQualified indicates a single-label domain such as "localhost"
	ErrDomainNotQualified = errors.New("domain must have at least two labels")

	// ErrInvalidLabel indicates a label that doesn't follow RFC 1123
	ErrInvalidLabel = errors.New("domain labels must use lowercase letters, numbers and inner hyphens, up to 63 characters")
)

// labelRegex matches one RFC 1123 label
var labelRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidateEmailDomain checks that an allowed email domain is a fully qualified DNS name.
// A leading "@" is accepted and ignored; the domain must already be lowercase.
func ValidateEmailDomain(domain string) error {
	domain = strings.TrimPrefix(domain, "@")
	if domain == "" {
		return ErrDomainEmpty
	}
	if len(domain) > 253 {
		return ErrDomainTooLong
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return ErrDomainNotQualified
	}
	for _, label := range labels {
		if !labelRegex.MatchString(label) {
			return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
		}
	}
	return nil
}
