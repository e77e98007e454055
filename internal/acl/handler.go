package acl

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lingvodoc/lingvodoc/internal/platform/httpx"
)

// CrossCheck is one decision to be replayed through both paths offline.
type CrossCheck struct {
	ClientID int64      `json:"client_id"`
	Action   string     `json:"action"`
	Subject  string     `json:"subject"`
	Ref      SubjectRef `json:"subject_id"`
}

// CrossCheckEnqueuer schedules background cross-checks.
type CrossCheckEnqueuer interface {
	EnqueueACLCrossCheck(ctx context.Context, check CrossCheck) error
}

// HandlerConfig groups the dependencies of Handler.
type HandlerConfig struct {
	Logger     *slog.Logger
	Engine     *Engine
	Reader     Reader
	Middleware Middleware
	// Enqueuer receives a sample of /acl/check decisions; nil disables sampling.
	Enqueuer    CrossCheckEnqueuer
	SampleRatio float64
}

// Handler exposes the authorization engine over HTTP.
type Handler struct {
	logger     *slog.Logger
	engine     *Engine
	reader     Reader
	middleware Middleware
	validator  *validator.Validate
	enqueuer   CrossCheckEnqueuer
	sample     float64
	roll       func() float64
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		logger:     logger,
		engine:     cfg.Engine,
		reader:     cfg.Reader,
		middleware: cfg.Middleware,
		validator:  validator.New(),
		enqueuer:   cfg.Enqueuer,
		sample:     cfg.SampleRatio,
		roll:       rand.Float64,
	}
}

// MountRoutes registers the /acl routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/principals", h.principals)
	r.Post("/check", h.check)
	r.With(h.middleware.RequireAdmin).Get("/entries", h.entries)
}

type principalsResponse struct {
	Subject    string   `json:"subject"`
	Principals []string `json:"principals"`
}

func (h *Handler) principals(w http.ResponseWriter, r *http.Request) {
	subject := strings.TrimSpace(r.URL.Query().Get("subject"))

	var principals Principals
	err := h.reader.Read(r.Context(), func(st Store) error {
		var err error
		principals, err = h.engine.GroupFinder(r.Context(), st, r, clientFromSession(r), subject)
		return err
	})
	if err != nil {
		h.logger.Error("acl principals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if principals == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no identity for this session")
		return
	}
	httpx.JSON(w, http.StatusOK, principalsResponse{Subject: subject, Principals: principals.Sorted()})
}

type checkRequest struct {
	Action    string          `json:"action" validate:"required,max=64"`
	Subject   string          `json:"subject" validate:"required,max=64"`
	SubjectID json.RawMessage `json:"subject_id"`
	Path      string          `json:"path" validate:"omitempty,oneof=direct generic"`
}

type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Path    string `json:"path"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", verrs[0].Field()+": "+verrs[0].Tag())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	ref, err := ParseSubjectRefJSON(req.SubjectID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if req.Path == "" {
		req.Path = PathDirect
	}

	clientID := clientFromSession(r)
	var allowed bool
	err = h.reader.Read(r.Context(), func(st Store) error {
		var err error
		if req.Path == PathGeneric {
			allowed, err = h.engine.Check(r.Context(), st, r, clientID, req.Action, req.Subject, ref)
		} else {
			allowed, err = h.engine.CheckDirect(r.Context(), st, r, clientID, req.Action, req.Subject, ref)
		}
		return err
	})
	if err != nil {
		h.logger.Error("acl check", slog.Any("error", err), slog.String("path", req.Path))
		httpx.RespondError(w, err)
		return
	}

	h.maybeCrossCheck(r, clientID, req.Action, req.Subject, ref)
	httpx.JSON(w, http.StatusOK, checkResponse{Allowed: allowed, Path: req.Path})
}

// maybeCrossCheck enqueues a sample of decisions for offline comparison of the
// two paths. The client id is resolved here since the worker has no request.
func (h *Handler) maybeCrossCheck(r *http.Request, clientID int64, action, subject string, ref SubjectRef) {
	if h.enqueuer == nil || h.sample <= 0 || h.roll() >= h.sample {
		return
	}
	effective, ok := h.engine.EffectiveClientID(r, clientID)
	if !ok {
		return
	}
	check := CrossCheck{ClientID: effective, Action: action, Subject: subject, Ref: ref}
	if err := h.enqueuer.EnqueueACLCrossCheck(r.Context(), check); err != nil {
		h.logger.Warn("enqueue acl cross-check", slog.Any("error", err))
	}
}

type entriesResponse struct {
	Subject   string     `json:"subject"`
	SubjectID SubjectRef `json:"subject_id"`
	Entries   []ACE      `json:"entries"`
}

func (h *Handler) entries(w http.ResponseWriter, r *http.Request) {
	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	if subject == "" {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "subject: required")
		return
	}
	ref, err := SubjectRefFromQuery(r.URL.Query())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	var entries []ACE
	err = h.reader.Read(r.Context(), func(st Store) error {
		var err error
		entries, err = h.engine.ACL(r.Context(), st, subject, ref)
		return err
	})
	if err != nil {
		h.logger.Error("acl entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entriesResponse{Subject: subject, SubjectID: ref, Entries: entries})
}
