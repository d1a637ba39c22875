package auth

import (
	"fmt"
	"strings"
)

// Rejection reasons returned by the email policy
const (
	ReasonEmailRequired    = "Email is required"
	ReasonLeadingAt        = "Email cannot start with @"
	ReasonInvalidFormat    = "Invalid email format"
	ReasonEmptyLocalPart   = "Email local part cannot be empty"
	ReasonNotInAllowlist   = "Email not in temporary allowlist"
	reasonDomainNotAllowed = "Domain %s is not allowed"

	// PolicyName identifies the active policy in rejection details
	PolicyName = "allowlist-temporarie"
)

// EmailValidationResult is the outcome of evaluating an email against the policy
type EmailValidationResult struct {
	IsValid         bool   `json:"isValid"`
	NormalizedEmail string `json:"normalizedEmail,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Code returns the error code of a rejected email
func (r EmailValidationResult) Code() ErrorCode {
	if r.Reason == ReasonNotInAllowlist {
		return CodeNotInAllowlist
	}
	return CodeDomainNotAllowed
}

// Allowlist is a membership test over approved addresses
type Allowlist interface {
	Contains(normalizedEmail string) bool
}

// StaticAllowlist is an Allowlist backed by a fixed set of addresses
type StaticAllowlist map[string]struct{}

// NewStaticAllowlist builds an allowlist from addresses, normalizing each one
func NewStaticAllowlist(emails ...string) StaticAllowlist {
	list := StaticAllowlist{}
	for _, e := range emails {
		if e = NormalizeEmail(e); e != "" {
			list[e] = struct{}{}
		}
	}
	return list
}

// Contains checks membership of a normalized address
func (l StaticAllowlist) Contains(normalizedEmail string) bool {
	_, ok := l[normalizedEmail]
	return ok
}

// EmailPolicy decides whether an address may hold a session
type EmailPolicy struct {
	allowedDomains map[string]struct{}
	domains        []string
	allowlist      Allowlist
}

// NewEmailPolicy creates a policy over the allowed domains.
// A nil or empty allowlist disables the second membership check.
func NewEmailPolicy(allowedDomains []string, allowlist Allowlist) *EmailPolicy {
	if static, ok := allowlist.(StaticAllowlist); ok && len(static) == 0 {
		allowlist = nil
	}
	p := &EmailPolicy{allowedDomains: map[string]struct{}{}, allowlist: allowlist}
	for _, d := range allowedDomains {
		d = strings.TrimPrefix(NormalizeEmail(d), "@")
		if d == "" {
			continue
		}
		if _, dup := p.allowedDomains[d]; !dup {
			p.allowedDomains[d] = struct{}{}
			p.domains = append(p.domains, d)
		}
	}
	return p
}

// AllowedDomains returns the allowed domains in configuration order
func (p *EmailPolicy) AllowedDomains() []string {
	return append([]string(nil), p.domains...)
}

// AllowlistEnabled reports whether the allowlist check is active
func (p *EmailPolicy) AllowlistEnabled() bool {
	return p.allowlist != nil
}

// AllowedDomainLabel renders the allowed domains as "@a.com, @b.com"
func (p *EmailPolicy) AllowedDomainLabel() string {
	labels := make([]string, len(p.domains))
	for i, d := range p.domains {
		labels[i] = "@" + d
	}
	return strings.Join(labels, ", ")
}

// ValidateEmail evaluates an address against the domain set and the allowlist
func (p *EmailPolicy) ValidateEmail(email string) EmailValidationResult {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return EmailValidationResult{Reason: ReasonEmailRequired}
	}
	if strings.HasPrefix(normalized, "@") {
		return EmailValidationResult{Reason: ReasonLeadingAt}
	}

	parts := strings.Split(normalized, "@")
	if len(parts) != 2 {
		return EmailValidationResult{Reason: ReasonInvalidFormat}
	}
	local, domain := parts[0], parts[1]
	if local == "" {
		return EmailValidationResult{Reason: ReasonEmptyLocalPart}
	}

	if _, ok := p.allowedDomains[domain]; !ok {
		return EmailValidationResult{
			NormalizedEmail: normalized,
			Reason:          fmt.Sprintf(reasonDomainNotAllowed, domain),
		}
	}

	if p.allowlist != nil && !p.allowlist.Contains(normalized) {
		return EmailValidationResult{NormalizedEmail: normalized, Reason: ReasonNotInAllowlist}
	}

	return EmailValidationResult{IsValid: true, NormalizedEmail: normalized}
}

// NormalizeEmail lower-cases and trims an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
