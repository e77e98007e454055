package acl

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lingvodoc/lingvodoc/internal/platform/httpx"
	"github.com/lingvodoc/lingvodoc/internal/shared"
)

// RefFunc extracts the target instance of a request.
type RefFunc func(r *http.Request) (SubjectRef, error)

// NoRef targets no instance; use it on creation routes.
func NoRef(*http.Request) (SubjectRef, error) { return NotYetCreated(), nil }

// RefFromQuery reads client_id/object_id query parameters.
func RefFromQuery(r *http.Request) (SubjectRef, error) {
	return SubjectRefFromQuery(r.URL.Query())
}

// RefFromURLParams reads a composite id from chi route parameters.
func RefFromURLParams(clientParam, objectParam string) RefFunc {
	return func(r *http.Request) (SubjectRef, error) {
		clientID, err := strconv.ParseInt(chi.URLParam(r, clientParam), 10, 64)
		if err != nil {
			return SubjectRef{kind: refInvalid}, ErrUnsupportedSubjectID
		}
		objectID, err := strconv.ParseInt(chi.URLParam(r, objectParam), 10, 64)
		if err != nil {
			return SubjectRef{kind: refInvalid}, ErrUnsupportedSubjectID
		}
		return ByComposite(clientID, objectID), nil
	}
}

// Middleware wires authorization checks for HTTP handlers.
type Middleware struct {
	Engine *Engine
	Reader Reader
	Logger *slog.Logger
}

// Require admits the request only if the session's client may perform action on
// the instance picked by ref. An empty subject falls back to the route factory.
func (m Middleware) Require(action, subject string, ref RefFunc) func(http.Handler) http.Handler {
	if ref == nil {
		ref = NoRef
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			target, err := ref(r)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
				return
			}
			resolved := subject
			if resolved == "" {
				resolved, _ = factorySubject(r.Context())
			}

			var allowed bool
			err = m.Reader.Read(r.Context(), func(st Store) error {
				var err error
				allowed, err = m.Engine.CheckDirect(r.Context(), st, r, clientFromSession(r), action, resolved, target)
				return err
			})
			if err != nil {
				m.logError("acl require", err, slog.String("action", action), slog.String("subject", resolved))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin admits only the superadmin.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var principals Principals
		err := m.Reader.Read(r.Context(), func(st Store) error {
			var err error
			principals, err = m.Engine.GroupFinder(r.Context(), st, r, clientFromSession(r), NoOpSubject)
			return err
		})
		if err != nil {
			m.logError("acl require admin", err)
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		if !principals.Has(AdminPrincipal) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) logError(msg string, err error, attrs ...slog.Attr) {
	if m.Logger == nil {
		return
	}
	args := []any{slog.Any("error", err), slog.Bool("unsupported_id", errors.Is(err, ErrUnsupportedSubjectID))}
	for _, a := range attrs {
		args = append(args, a)
	}
	m.Logger.Error(msg, args...)
}

func clientFromSession(r *http.Request) int64 {
	return shared.ClientFrom(r.Context())
}
