package acl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AllActions is the action column of the superadmin entry.
const AllActions = "*"

// DefaultClientCookie carries the client id in desktop mode.
const DefaultClientCookie = "client_id"

// EngineConfig tunes an Engine.
type EngineConfig struct {
	// Desktop takes the effective client id from ClientCookie instead of the caller.
	Desktop      bool
	ClientCookie string
	Metrics      *Metrics
	// Forget is invoked when a client lookup fails for reasons other than an
	// unknown client. It should drop the caller's session.
	Forget func(ctx context.Context)
}

// Engine evaluates authorization decisions. It holds no per-request state and is
// safe for concurrent use; every call receives the request's Store explicitly.
type Engine struct {
	logger       *slog.Logger
	metrics      *Metrics
	desktop      bool
	clientCookie string
	forget       func(ctx context.Context)
}

// NewEngine constructs an Engine.
func NewEngine(logger *slog.Logger, cfg EngineConfig) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cookie := strings.TrimSpace(cfg.ClientCookie)
	if cookie == "" {
		cookie = DefaultClientCookie
	}
	return &Engine{
		logger:       logger,
		metrics:      cfg.Metrics,
		desktop:      cfg.Desktop,
		clientCookie: cookie,
		forget:       cfg.Forget,
	}
}

// EffectiveClientID applies the desktop-mode override.
func (e *Engine) EffectiveClientID(r *http.Request, clientID int64) (int64, bool) {
	if !e.desktop {
		return clientID, clientID != 0
	}
	if r == nil {
		return 0, false
	}
	cookie, err := r.Cookie(e.clientCookie)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(cookie.Value), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// GroupFinder computes the principals the identity behind clientID holds.
//
// When subject is empty the subject declared by the route factory in ctx is used.
// Without a usable subject only the superadmin principal is reported. A nil result
// means the identity could not be resolved and must be treated as holding nothing.
func (e *Engine) GroupFinder(ctx context.Context, st Store, r *http.Request, clientID int64, subject string) (Principals, error) {
	if subject == "" {
		subject, _ = factorySubject(ctx)
	}
	return e.groupFinder(ctx, st, r, clientID, subject)
}

func (e *Engine) groupFinder(ctx context.Context, st Store, r *http.Request, clientID int64, subject string) (Principals, error) {
	user, ok := e.resolveUser(ctx, st, r, clientID, true)
	if !ok {
		return nil, nil
	}

	principals := make(Principals)
	if subject != "" && subject != NoOpSubject {
		for _, m := range []Membership{MembershipDirect, MembershipOrganization} {
			grants, err := st.MemberGrants(ctx, user.ID, m, subject)
			if err != nil {
				return nil, err
			}
			for _, g := range grants {
				if m == MembershipOrganization && !g.Scope.Inheritable() {
					continue
				}
				if !user.IsActive && g.Action != ActionView {
					continue
				}
				principals.Add(g.Principal())
			}
		}
	}
	if user.IsSuperAdmin() {
		principals.Add(AdminPrincipal)
	}

	e.logger.Debug("acl principals",
		slog.Int64("user_id", user.ID),
		slog.String("subject", subject),
		slog.Any("principals", principals.Sorted()),
	)
	return principals, nil
}

// ACL lists the entries that govern subject instance ref.
func (e *Engine) ACL(ctx context.Context, st Store, subject string, ref SubjectRef) ([]ACE, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	entries := []ACE{{Action: AllActions, Principal: AdminPrincipal, Permission: AllPermissions()}}

	if subject == SubjectApproveEntities {
		if id, ok := ref.Composite(); ok {
			published, err := e.published(ctx, st, id)
			if err != nil {
				return nil, err
			}
			if published {
				entries = append(entries,
					ACE{Action: ActionView, Principal: EveryonePrincipal, Permission: Named(ActionView)},
					ACE{Action: ActionPreview, Principal: EveryonePrincipal, Permission: Named(ActionPreview)},
				)
			}
		}
	}

	grants, err := st.SubjectGrants(ctx, subject, ref)
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		entries = append(entries, ACE{Action: g.Action, Principal: g.Principal(), Permission: Named(g.Action)})
	}
	return entries, nil
}

// Check decides by intersecting the identity's principals with the subject's ACL.
func (e *Engine) Check(ctx context.Context, st Store, r *http.Request, clientID int64, action, subject string, ref SubjectRef) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.metrics.observe(PathGeneric, start, allowed, err) }()

	if err := ref.validate(); err != nil {
		return false, err
	}
	principals, err := e.groupFinder(ctx, st, r, clientID, subject)
	if err != nil || principals == nil {
		return false, err
	}
	entries, err := e.ACL(ctx, st, subject, ref)
	if err != nil {
		return false, err
	}
	effective := principals.withEveryone()
	for _, entry := range entries {
		if entry.Permits(effective, action) {
			return true, nil
		}
	}
	return false, nil
}

// CheckDirect reaches the same decision as Check through targeted existence queries.
func (e *Engine) CheckDirect(ctx context.Context, st Store, r *http.Request, clientID int64, action, subject string, ref SubjectRef) (allowed bool, err error) {
	start := time.Now()
	defer func() { e.metrics.observe(PathDirect, start, allowed, err) }()

	if err := ref.validate(); err != nil {
		return false, err
	}
	user, ok := e.resolveUser(ctx, st, r, clientID, false)
	if !ok {
		return false, nil
	}
	if user.IsSuperAdmin() {
		return true, nil
	}
	if subject == "" || action == "" {
		return false, nil
	}

	if subject == SubjectApproveEntities && (action == ActionView || action == ActionPreview) {
		if id, ok := ref.Composite(); ok {
			published, err := e.published(ctx, st, id)
			if err != nil {
				return false, err
			}
			if published {
				return true, nil
			}
		}
	}

	// Deactivation outranks every grant except public access to published content.
	if !user.IsActive && action != ActionView {
		return false, nil
	}

	switch ref.kind {
	case refComposite, refObject:
		for _, m := range []Membership{MembershipDirect, MembershipOrganization} {
			ok, err := st.HasGrant(ctx, user.ID, m, subject, action, ref)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case refNotYetCreated:
		// Organizations are not expected to hold override grants.
		return st.HasGrant(ctx, user.ID, MembershipDirect, subject, action, ref)
	default:
		return false, fmt.Errorf("%w: ref kind %d", ErrUnsupportedSubjectID, ref.kind)
	}
}

// resolveUser maps the effective client id to a user. Failed lookups other than an
// unknown client trigger the forget hook when forget is set.
func (e *Engine) resolveUser(ctx context.Context, st Store, r *http.Request, clientID int64, forget bool) (User, bool) {
	id, ok := e.EffectiveClientID(r, clientID)
	if !ok {
		return User{}, false
	}
	user, err := st.ClientUser(ctx, id)
	if err == nil {
		return user, true
	}
	if errors.Is(err, ErrClientNotFound) {
		e.logger.Debug("acl unknown client", slog.Int64("client_id", id))
		return User{}, false
	}
	e.logger.Warn("acl client lookup", slog.Int64("client_id", id), slog.Any("error", err))
	if forget && e.forget != nil {
		e.forget(ctx)
	}
	return User{}, false
}

func (e *Engine) published(ctx context.Context, st Store, id CompositeID) (bool, error) {
	state, err := st.PerspectiveState(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPerspectiveNotFound) {
			return false, nil
		}
		return false, err
	}
	return state == StatePublished || state == StateLimitedAccess, nil
}
