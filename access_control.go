package authgate

import "strings"

// accessController decides whether a user may reach a protected domain.
// The rule set is an allow-list: the default policy applies to everyone,
// group and user policies extend it, and anything unmatched is denied.
type accessController struct {
	defaultPolicy []string
	groups        map[string][]string
	users         map[string][]string
}

func newAccessController(cfg AccessControlConfig) *accessController {
	return &accessController{
		defaultPolicy: cfg.DefaultPolicy,
		groups:        cfg.Groups,
		users:         cfg.Users,
	}
}

// Authorized reports whether username (with the given directory groups)
// may access domain.
func (a *accessController) Authorized(domain, username string, groups []string) bool {
	if matchAny(a.defaultPolicy, domain) {
		return true
	}
	for _, group := range groups {
		if matchAny(a.groups[group], domain) {
			return true
		}
	}
	return matchAny(a.users[username], domain)
}

func matchAny(patterns []string, domain string) bool {
	for _, pattern := range patterns {
		if matchDomain(pattern, domain) {
			return true
		}
	}
	return false
}

// matchDomain matches a single pattern: "*" matches everything, "*.suffix"
// matches proper subdomains of suffix (the dot is part of the match, so
// "evilexample.com" never matches "*.example.com"), anything else is an
// exact comparison.
func matchDomain(pattern, domain string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(domain, pattern[1:])
	}
	return pattern == domain
}
