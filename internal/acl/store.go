package acl

import (
	"context"
	"errors"
)

var (
	// ErrClientNotFound indicates the client id maps to no user.
	ErrClientNotFound = errors.New("acl: client not found")
	// ErrPerspectiveNotFound indicates the referenced perspective does not exist.
	ErrPerspectiveNotFound = errors.New("acl: perspective not found")
)

// Store is the membership index both decision paths read through. Implementations
// are bound to one request-scoped transaction and are never shared across requests.
type Store interface {
	// ClientUser resolves a client id to its user.
	ClientUser(ctx context.Context, clientID int64) (User, error)
	// MemberGrants lists grants the user holds through membership m, restricted to
	// subject when it is not empty. Organization membership only yields composite scopes.
	MemberGrants(ctx context.Context, userID int64, m Membership, subject string) ([]Grant, error)
	// HasGrant reports whether the user holds, through membership m, a group of the
	// given subject and action whose scope matches ref.
	HasGrant(ctx context.Context, userID int64, m Membership, subject, action string, ref SubjectRef) (bool, error)
	// SubjectGrants lists every group of the subject whose scope matches ref, regardless of holder.
	SubjectGrants(ctx context.Context, subject string, ref SubjectRef) ([]Grant, error)
	// PerspectiveState returns the publication state of a perspective.
	PerspectiveState(ctx context.Context, id CompositeID) (string, error)
}
