package acl

import (
	"context"
	"net/http"
)

// NoOpSubject marks routes that are explicitly about no subject.
const NoOpSubject = "no_op"

// Factory describes what kind of object a route is about.
type Factory interface {
	Subject() string
}

// SubjectFactory is a Factory for a fixed subject.
type SubjectFactory string

// Subject implements Factory.
func (f SubjectFactory) Subject() string { return string(f) }

type factoryContextKey struct{}

// ContextWithFactory stores the route factory in ctx.
func ContextWithFactory(ctx context.Context, f Factory) context.Context {
	return context.WithValue(ctx, factoryContextKey{}, f)
}

// FactoryFromContext returns the route factory, if the route declared one.
func FactoryFromContext(ctx context.Context) (Factory, bool) {
	f, ok := ctx.Value(factoryContextKey{}).(Factory)
	return f, ok && f != nil
}

// WithFactory declares the subject of every route mounted below it.
func WithFactory(subject string) func(http.Handler) http.Handler {
	f := SubjectFactory(subject)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithFactory(r.Context(), f)))
		})
	}
}

// factorySubject resolves the subject declared by the route, reporting false when
// there is none or it is the no-op marker.
func factorySubject(ctx context.Context) (string, bool) {
	f, ok := FactoryFromContext(ctx)
	if !ok {
		return "", false
	}
	subject := f.Subject()
	if subject == "" || subject == NoOpSubject {
		return "", false
	}
	return subject, true
}
