package acl

import (
	"fmt"

	"github.com/google/uuid"
)

// SuperAdminID identifies the fixed superadmin account.
const SuperAdminID int64 = 1

// Known subjects.
const (
	SubjectDictionary        = "dictionary"
	SubjectLanguage          = "language"
	SubjectPerspective       = "perspective"
	SubjectOrganization      = "organization"
	SubjectLexicalEntries    = "lexical_entries_and_entities"
	SubjectApproveEntities   = "approve_entities"
	SubjectMerge             = "merge"
	SubjectTranslations      = "translations"
	SubjectGrant             = "grant"
	SubjectDictionaryStatus  = "dictionary_status"
	SubjectPerspectiveStatus = "perspective_status"
)

// Known actions.
const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionEdit    = "edit"
	ActionDelete  = "delete"
	ActionApprove = "approve"
	ActionPreview = "preview"
)

// Perspective states granting public read access to approved entities.
const (
	StatePublished     = "Published"
	StateLimitedAccess = "Limited access"
)

// User is the identity a client session is bound to.
type User struct {
	ID       int64
	IsActive bool
}

// IsSuperAdmin reports whether the user is the fixed superadmin.
func (u User) IsSuperAdmin() bool {
	return u.ID == SuperAdminID
}

// Membership selects how a user holds a group.
type Membership uint8

const (
	// MembershipDirect covers groups listed in user_to_group_association.
	MembershipDirect Membership = iota + 1
	// MembershipOrganization covers groups held by an organization the user belongs to.
	MembershipOrganization
)

func (m Membership) String() string {
	switch m {
	case MembershipDirect:
		return "direct"
	case MembershipOrganization:
		return "organization"
	default:
		return fmt.Sprintf("membership(%d)", uint8(m))
	}
}

// ScopeKind tells which column set scopes a group.
type ScopeKind uint8

const (
	// ScopeOverride applies the grant to every instance of the subject.
	ScopeOverride ScopeKind = iota + 1
	// ScopeComposite binds the grant to a (client_id, object_id) pair.
	ScopeComposite
	// ScopeObject binds the grant to a bare object id.
	ScopeObject
)

// OverrideScope is the scope segment of principals built from override groups.
const OverrideScope = "*"

// Scope is the instance a group is bound to.
type Scope struct {
	Kind     ScopeKind
	ClientID int64
	ObjectID int64
}

// Override scopes a group to every instance of its subject.
func Override() Scope { return Scope{Kind: ScopeOverride} }

// AtComposite scopes a group to one composite id.
func AtComposite(clientID, objectID int64) Scope {
	return Scope{Kind: ScopeComposite, ClientID: clientID, ObjectID: objectID}
}

// AtObject scopes a group to a bare object id.
func AtObject(objectID int64) Scope {
	return Scope{Kind: ScopeObject, ObjectID: objectID}
}

// String renders the scope segment of a principal.
func (s Scope) String() string {
	switch s.Kind {
	case ScopeOverride:
		return OverrideScope
	case ScopeComposite:
		return fmt.Sprintf("%d:%d", s.ClientID, s.ObjectID)
	case ScopeObject:
		return fmt.Sprintf("%d", s.ObjectID)
	default:
		return ""
	}
}

// Matches reports whether a group with this scope applies to ref.
func (s Scope) Matches(ref SubjectRef) bool {
	if s.Kind == ScopeOverride {
		return true
	}
	switch ref.kind {
	case refComposite:
		return s.Kind == ScopeComposite && s.ClientID == ref.clientID && s.ObjectID == ref.objectID
	case refObject:
		return s.Kind == ScopeObject && s.ObjectID == ref.objectID
	default:
		return false
	}
}

// Inheritable reports whether organizations pass this scope on to their members.
// Only composite-scoped groups are expanded through organizations.
func (s Scope) Inheritable() bool {
	return s.Kind == ScopeComposite
}

// Grant is a group together with the base group fields the engine reads.
type Grant struct {
	GroupID uuid.UUID
	Subject string
	Action  string
	Scope   Scope
}

// Principal formats the principal string a holder of this grant receives.
func (g Grant) Principal() string {
	return FormatPrincipal(g.Action, g.Subject, g.Scope)
}
