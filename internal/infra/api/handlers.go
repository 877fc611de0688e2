package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dynamic-qr-platform/internal/domain"
	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/repository"
	"dynamic-qr-platform/internal/infra/logging"
	"dynamic-qr-platform/internal/infra/metrics"
	red "dynamic-qr-platform/internal/infra/redis"
)

// webhook payloads are small; anything bigger is garbage.
const maxWebhookBody = 64 << 10

const signatureHeader = "X-Webhook-Signature"

type envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrAlreadyExists):
		code, msg = http.StatusConflict, "already exists"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidStatusTransition):
		code, msg = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrAlreadyConsumed):
		code, msg = http.StatusConflict, "session already consumed"
	case errors.Is(err, domain.ErrQuotaExceeded):
		code, msg = http.StatusForbidden, "usage quota exceeded"
	case errors.Is(err, domain.ErrSubscriptionInvalid):
		code, msg = http.StatusPaymentRequired, "subscription not valid"
	case errors.Is(err, domain.ErrInvalidArgument):
		code, msg = http.StatusBadRequest, "invalid argument"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Error: msg})
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody))
	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ---- redirect ----

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	ctx := logging.WithSlug(r.Context(), slug)

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, red.RedirectKey(clientIP(r)), s.redirectLimit, time.Minute)
		if err != nil {
			// Redis down: serve the redirect, rate limiting is best effort.
			logging.With(ctx, s.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			metrics.IncRedirectRateLimited()
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
	}

	target, err := s.linkUC.Lookup(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// ---- users ----

type registerRequest struct {
	Email string `json:"email"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339)}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	usr, err := s.userUC.Register(r.Context(), ownerID, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(usr))
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	usr, err := s.userUC.Get(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(usr))
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	if err := s.userUC.Erase(r.Context(), ownerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- subscription ----

type subscriptionResponse struct {
	ID         string `json:"id"`
	Tier       string `json:"tier"`
	Status     string `json:"status"`
	UsageCount int    `json:"usage_count"`
	UsageLimit int    `json:"usage_limit"`
	Valid      bool   `json:"valid"`
}

func toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:         sub.ID,
		Tier:       string(sub.Tier),
		Status:     string(sub.Status),
		UsageCount: sub.UsageCount,
		UsageLimit: sub.UsageLimit,
	}
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	sub, err := s.subUC.Get(r.Context(), repository.NoTX, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := toSubscriptionResponse(sub)
	// Valid is the same predicate the quota gate applies, so clients can
	// surface "fix your billing" before a create fails.
	if ok, err := s.subUC.Validate(r.Context(), ownerID); err == nil {
		out.Valid = ok
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- links ----

type linkRequest struct {
	TargetURL string `json:"target_url"`
}

type linkResponse struct {
	Slug        string `json:"slug"`
	ShortURL    string `json:"short_url"`
	TargetURL   string `json:"target_url"`
	AccessCount int64  `json:"access_count"`
}

func (s *Server) toLinkResponse(l *model.DynamicURL) linkResponse {
	return linkResponse{
		Slug:        l.Slug,
		ShortURL:    s.baseURL + "/" + l.Slug,
		TargetURL:   l.TargetURL,
		AccessCount: l.AccessCount,
	}
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	var req linkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	link, err := s.linkUC.Create(r.Context(), ownerID, req.TargetURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.toLinkResponse(link))
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	links, err := s.linkUC.ListForOwner(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]linkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, s.toLinkResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateLink(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	slug := chi.URLParam(r, "slug")
	var req linkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	link, err := s.linkUC.UpdateTarget(r.Context(), ownerID, slug, req.TargetURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toLinkResponse(link))
}

func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	slug := chi.URLParam(r, "slug")
	if err := s.linkUC.Delete(r.Context(), ownerID, slug); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- checkout & webhook ----

type checkoutRequest struct {
	Tier string `json:"tier"`
}

type checkoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

func (s *Server) handleOpenCheckout(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerFromContext(r.Context())
	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tier, err := model.ParseTier(req.Tier)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, url, err := s.checkoutUC.Open(r.Context(), ownerID, tier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{SessionID: sess.SessionID, CheckoutURL: url})
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string            `json:"id"`
			ClientReferenceID string            `json:"client_reference_id"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ownerID digs the owner out of the event: checkout sessions carry it as
// client_reference_id, subscription/invoice objects in their metadata.
func (ev *webhookEvent) ownerID() string {
	if id := ev.Data.Object.Metadata["owner_id"]; id != "" {
		return id
	}
	return ev.Data.Object.ClientReferenceID
}

// handlePaymentWebhook verifies the provider's HMAC signature over the raw
// body, then acts on the event: a completed checkout resolves the session
// (replays map to 409 so the provider stops retrying without any state
// change), and subscription lifecycle events drive the status machine.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	r.Body.Close()
	if err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if !s.verifySignature(body, r.Header.Get(signatureHeader)) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	switch ev.Type {
	case "checkout.session.completed":
		if ev.Data.Object.ID == "" {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		sub, err := s.checkoutUC.Resolve(r.Context(), ev.Data.Object.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))

	case "invoice.payment_failed":
		s.applyProviderStatus(w, r, &ev, model.SubscriptionStatusPastDue)
	case "invoice.paid":
		s.applyProviderStatus(w, r, &ev, model.SubscriptionStatusActive)
	case "customer.subscription.deleted":
		s.applyProviderStatus(w, r, &ev, model.SubscriptionStatusCanceled)

	default:
		// Not ours to act on; acknowledge so delivery stops.
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) applyProviderStatus(w http.ResponseWriter, r *http.Request, ev *webhookEvent, status model.SubscriptionStatus) {
	ownerID := ev.ownerID()
	if ownerID == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	sub, err := s.subUC.SetStatus(logging.WithOwnerID(r.Context(), ownerID), repository.NoTX, ownerID, status)
	if err != nil {
		// The owner was erased; retrying will never help, so acknowledge.
		if errors.Is(err, domain.ErrNotFound) {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (s *Server) verifySignature(body []byte, signature string) bool {
	if s.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}
