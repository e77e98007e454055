package acl

import (
	"sort"
	"strings"
)

// Bare principals that do not come from groups.
const (
	// AdminPrincipal is held by the superadmin only.
	AdminPrincipal = "Admin"
	// EveryonePrincipal is held by every resolved identity during a decision.
	EveryonePrincipal = "Everyone"
)

// FormatPrincipal renders "{action}:{subject}:{scope}".
func FormatPrincipal(action, subject string, scope Scope) string {
	var b strings.Builder
	b.Grow(len(action) + len(subject) + 24)
	b.WriteString(action)
	b.WriteByte(':')
	b.WriteString(subject)
	b.WriteByte(':')
	b.WriteString(scope.String())
	return b.String()
}

// Principals is the deduplicated set of principals an identity holds.
type Principals map[string]struct{}

// NewPrincipals builds a set from the given principals.
func NewPrincipals(values ...string) Principals {
	p := make(Principals, len(values))
	for _, v := range values {
		p.Add(v)
	}
	return p
}

// Add inserts a principal.
func (p Principals) Add(principal string) {
	p[principal] = struct{}{}
}

// Has reports membership.
func (p Principals) Has(principal string) bool {
	_, ok := p[principal]
	return ok
}

// Sorted returns the principals in lexical order.
func (p Principals) Sorted() []string {
	out := make([]string, 0, len(p))
	for v := range p {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// withEveryone returns a copy that also holds EveryonePrincipal.
func (p Principals) withEveryone() Principals {
	out := make(Principals, len(p)+1)
	for v := range p {
		out[v] = struct{}{}
	}
	out[EveryonePrincipal] = struct{}{}
	return out
}
