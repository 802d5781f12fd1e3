package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/Skryldev/census-api/db"
	"github.com/Skryldev/census-api/httputil"
	"github.com/Skryldev/census-api/logger"
	"github.com/Skryldev/census-api/repo"
	"github.com/Skryldev/census-api/validation"
)

const (
	msgInvalidEmail = "Invalid email format"
	msgNotFound     = "Participant not found"
	msgDuplicate    = "Participant with this email already exists"
)

type participantHandler struct {
	repo      repo.ParticipantRepository
	validator *validation.Validator
}

type messageResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

type listResponse[T any] struct {
	Count        int `json:"count"`
	Participants []T `json:"participants"`
}

// newList never encodes participants as null.
func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Count: len(items), Participants: items}
}

// POST /participants/add
func (h *participantHandler) add(w http.ResponseWriter, r *http.Request) {
	p, err := h.validator.ParseCreate(payloadFromContext(r.Context()))
	if err != nil {
		httputil.BadRequest(w, r, err.Error())
		return
	}
	if err := h.repo.Insert(r.Context(), p); err != nil {
		if db.IsDuplicateKey(err) {
			httputil.Conflict(w, r, msgDuplicate)
			return
		}
		storageError(w, r, err)
		return
	}
	httputil.Created(w, r, messageResponse{Message: "Participant added successfully", Email: p.Email})
}

// GET /participants
func (h *participantHandler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.List(r.Context())
	if err != nil {
		storageError(w, r, err)
		return
	}
	httputil.OK(w, r, newList(all))
}

// GET /participants/details
func (h *participantHandler) listDetails(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.ListSummaries(r.Context())
	if err != nil {
		storageError(w, r, err)
		return
	}
	httputil.OK(w, r, newList(all))
}

// GET /participants/details/{email}
func (h *participantHandler) details(w http.ResponseWriter, r *http.Request) {
	email, ok := pathEmail(w, r)
	if !ok {
		return
	}
	d, err := h.repo.GetDetails(r.Context(), email)
	if err != nil {
		lookupError(w, r, err)
		return
	}
	httputil.OK(w, r, d)
}

// GET /participants/work/{email}
func (h *participantHandler) work(w http.ResponseWriter, r *http.Request) {
	email, ok := pathEmail(w, r)
	if !ok {
		return
	}
	wk, err := h.repo.GetWork(r.Context(), email)
	if err != nil {
		lookupError(w, r, err)
		return
	}
	httputil.OK(w, r, wk)
}

// GET /participants/home/{email}
func (h *participantHandler) home(w http.ResponseWriter, r *http.Request) {
	email, ok := pathEmail(w, r)
	if !ok {
		return
	}
	hm, err := h.repo.GetHome(r.Context(), email)
	if err != nil {
		lookupError(w, r, err)
		return
	}
	httputil.OK(w, r, hm)
}

// DELETE /participants/{email}
func (h *participantHandler) delete(w http.ResponseWriter, r *http.Request) {
	email, ok := pathEmail(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), email); err != nil {
		lookupError(w, r, err)
		return
	}
	httputil.OK(w, r, messageResponse{Message: "Participant deleted", Email: email})
}

// PUT /participants/{email}
func (h *participantHandler) update(w http.ResponseWriter, r *http.Request) {
	email, ok := pathEmail(w, r)
	if !ok {
		return
	}
	p, err := h.validator.ParseUpdate(email, payloadFromContext(r.Context()))
	if err != nil {
		httputil.BadRequest(w, r, err.Error())
		return
	}
	if err := h.repo.Update(r.Context(), p); err != nil {
		lookupError(w, r, err)
		return
	}
	httputil.OK(w, r, messageResponse{Message: "Participant updated", Email: email})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// pathEmail extracts and shape-checks the {email} path segment. On failure it
// writes the 400 response and returns false.
//
// chi matches against r.URL.RawPath when it is set and r.URL.Path (already
// decoded) otherwise, so the segment is unescaped only in the first case.
func pathEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := chi.URLParam(r, "email")
	var err error
	if r.URL.RawPath != "" {
		email, err = url.PathUnescape(email)
	}
	if err != nil || !validation.IsEmail(email) {
		httputil.BadRequest(w, r, msgInvalidEmail)
		return "", false
	}
	return email, true
}

func lookupError(w http.ResponseWriter, r *http.Request, err error) {
	if db.IsNotFound(err) {
		httputil.NotFound(w, r, msgNotFound)
		return
	}
	storageError(w, r, err)
}

// storageError reports an unexpected persistence failure with the driver's
// own message.
func storageError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	if email := chi.URLParam(r, "email"); email != "" {
		log = log.With("participant", logger.RedactEmail(email))
	}
	log.Error("api: storage failure", "error", err)
	msg := db.DriverMessage(err)
	if msg == "" {
		msg = "Internal server error"
	}
	httputil.Error(w, r, http.StatusInternalServerError, msg)
}
