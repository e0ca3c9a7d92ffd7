package web

import (
	"net/http"
	"strings"

	"invoice-agent/internal/app"
	"invoice-agent/internal/core"
)

// chatMessage handles POST /api/chat.
func (h *Handler) chatMessage(w http.ResponseWriter, r *http.Request) {
	var req app.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, ok := h.authorize(w, r, req.UserID)
	if !ok {
		return
	}
	req.UserID = userID

	resp, err := h.svc.HandleMessage(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, resp)
}

// classify handles POST /api/classify. It runs the context builder and the
// classifier without executing anything.
func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	var req app.ClassifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, ok := h.authorize(w, r, req.UserID)
	if !ok {
		return
	}
	req.UserID = userID

	res, err := h.svc.Classify(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// nextNumber handles GET /api/numbers/next?userId=&kind=invoice|estimate.
func (h *Handler) nextNumber(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, ok := h.authorize(w, r, q.Get("userId"))
	if !ok {
		return
	}
	number, err := h.svc.NextNumber(r.Context(), app.NextNumberRequest{
		UserID: userID,
		Kind:   core.DocumentKind(strings.ToLower(q.Get("kind"))),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"number": number})
}

// authorize resolves the caller's user id against the token subject and applies
// the per-user rate limit. It writes the error response when it returns false.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, userID string) (string, bool) {
	userID = strings.TrimSpace(userID)
	if sub := subjectFromContext(r.Context()); sub != "" {
		if userID == "" {
			userID = sub
		} else if userID != sub {
			writeError(w, r, "userId does not match the authenticated user", "FORBIDDEN", http.StatusForbidden)
			return "", false
		}
	}
	if userID == "" {
		writeError(w, r, "userId is required", "BAD_REQUEST", http.StatusBadRequest)
		return "", false
	}
	if !h.limiter.Allow(userID) {
		w.Header().Set("Retry-After", "1")
		writeError(w, r, "too many requests", "RATE_LIMITED", http.StatusTooManyRequests)
		return "", false
	}
	return userID, true
}
