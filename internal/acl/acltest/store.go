// Package acltest provides an in-memory acl.Store for tests.
package acltest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lingvodoc/lingvodoc/internal/acl"
)

type group struct {
	id      uuid.UUID
	subject string
	action  string
	scope   acl.Scope
}

// Store mirrors the semantics of acl.PGStore over maps.
type Store struct {
	mu           sync.RWMutex
	users        map[int64]acl.User
	clients      map[int64]int64
	groups       []group
	userGroups   map[int64]map[uuid.UUID]struct{}
	orgGroups    map[int64]map[uuid.UUID]struct{}
	userOrgs     map[int64]map[int64]struct{}
	perspectives map[acl.CompositeID]string
	clientErr    error
	queries      int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:        make(map[int64]acl.User),
		clients:      make(map[int64]int64),
		userGroups:   make(map[int64]map[uuid.UUID]struct{}),
		orgGroups:    make(map[int64]map[uuid.UUID]struct{}),
		userOrgs:     make(map[int64]map[int64]struct{}),
		perspectives: make(map[acl.CompositeID]string),
	}
}

// AddUser registers a user together with a client of the same id.
func (s *Store) AddUser(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = acl.User{ID: id, IsActive: active}
	s.clients[id] = id
}

// AddClient binds an extra client id to a user.
func (s *Store) AddClient(clientID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = userID
}

// AddGroup creates a group of base group (subject, action) and returns its id.
func (s *Store) AddGroup(subject, action string, scope acl.Scope) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.groups = append(s.groups, group{id: id, subject: subject, action: action, scope: scope})
	return id
}

// GrantUser adds a direct membership.
func (s *Store) GrantUser(userID int64, groupID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.userGroups, userID, groupID)
}

// GrantOrganization gives a group to an organization.
func (s *Store) GrantOrganization(orgID int64, groupID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.orgGroups, orgID, groupID)
}

// JoinOrganization adds the user to an organization.
func (s *Store) JoinOrganization(userID, orgID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.userOrgs, userID, orgID)
}

// SetPerspectiveState creates or updates a perspective.
func (s *Store) SetPerspectiveState(id acl.CompositeID, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perspectives[id] = state
}

// FailClientLookup makes ClientUser return err until reset with nil.
func (s *Store) FailClientLookup(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientErr = err
}

// Queries reports how many store calls were served.
func (s *Store) Queries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries
}

// ClientUser implements acl.Store.
func (s *Store) ClientUser(ctx context.Context, clientID int64) (acl.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.clientErr != nil {
		return acl.User{}, s.clientErr
	}
	userID, ok := s.clients[clientID]
	if !ok {
		return acl.User{}, acl.ErrClientNotFound
	}
	user, ok := s.users[userID]
	if !ok {
		return acl.User{}, acl.ErrClientNotFound
	}
	return user, nil
}

// MemberGrants implements acl.Store.
func (s *Store) MemberGrants(ctx context.Context, userID int64, m acl.Membership, subject string) ([]acl.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	var out []acl.Grant
	for _, g := range s.held(userID, m) {
		if subject != "" && g.subject != subject {
			continue
		}
		out = append(out, g.grant())
	}
	return out, nil
}

// HasGrant implements acl.Store.
func (s *Store) HasGrant(ctx context.Context, userID int64, m acl.Membership, subject, action string, ref acl.SubjectRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	for _, g := range s.held(userID, m) {
		if (subject == "" || g.subject == subject) && (action == "" || g.action == action) && g.scope.Matches(ref) {
			return true, nil
		}
	}
	return false, nil
}

// SubjectGrants implements acl.Store.
func (s *Store) SubjectGrants(ctx context.Context, subject string, ref acl.SubjectRef) ([]acl.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	var out []acl.Grant
	for _, g := range s.groups {
		if (subject == "" || g.subject == subject) && g.scope.Matches(ref) {
			out = append(out, g.grant())
		}
	}
	return out, nil
}

// PerspectiveState implements acl.Store.
func (s *Store) PerspectiveState(ctx context.Context, id acl.CompositeID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	state, ok := s.perspectives[id]
	if !ok {
		return "", acl.ErrPerspectiveNotFound
	}
	return state, nil
}

// held lists groups reachable through m in creation order.
func (s *Store) held(userID int64, m acl.Membership) []group {
	ids := make(map[uuid.UUID]struct{})
	switch m {
	case acl.MembershipDirect:
		for id := range s.userGroups[userID] {
			ids[id] = struct{}{}
		}
	case acl.MembershipOrganization:
		for orgID := range s.userOrgs[userID] {
			for id := range s.orgGroups[orgID] {
				ids[id] = struct{}{}
			}
		}
	}
	var out []group
	for _, g := range s.groups {
		if _, ok := ids[g.id]; !ok {
			continue
		}
		if m == acl.MembershipOrganization && !g.scope.Inheritable() {
			continue
		}
		out = append(out, g)
	}
	return out
}

func (g group) grant() acl.Grant {
	return acl.Grant{GroupID: g.id, Subject: g.subject, Action: g.action, Scope: g.scope}
}

func addTo[K comparable, V comparable](m map[K]map[V]struct{}, key K, value V) {
	set, ok := m[key]
	if !ok {
		set = make(map[V]struct{})
		m[key] = set
	}
	set[value] = struct{}{}
}

var _ acl.Store = (*Store)(nil)

// Read implements acl.Reader by handing out the store itself.
func (s *Store) Read(ctx context.Context, fn func(acl.Store) error) error {
	return fn(s)
}

var _ acl.Reader = (*Store)(nil)
