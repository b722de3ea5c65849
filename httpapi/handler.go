// Package httpapi exposes the engine over HTTP. All endpoints except the
// CORS preflights require a bearer session token.
package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/authkeep/authkeep"
)

// Handler serves the account-security endpoints:
//
//	POST /auth/2fa/setup
//	POST /auth/2fa/enable
//	POST /auth/2fa/verify
//	POST /auth/sessions/revoke
//	GET  /auth/password/expiry
type Handler struct {
	engine *authkeep.Engine
	mux    *http.ServeMux
}

// NewHandler wires the routes. The returned handler is safe for concurrent
// use once built.
func NewHandler(engine *authkeep.Engine) *Handler {
	h := &Handler{
		engine: engine,
		mux:    http.NewServeMux(),
	}

	h.mux.HandleFunc("/auth/2fa/setup", h.requireAuth(h.handleSetup))
	h.mux.HandleFunc("/auth/2fa/enable", h.requireAuth(h.handleEnable))
	h.mux.HandleFunc("/auth/2fa/verify", h.requireAuth(h.handleVerify))
	h.mux.HandleFunc("/auth/sessions/revoke", h.requireAuth(h.handleRevoke))
	h.mux.HandleFunc("/auth/password/expiry", h.requireAuth(h.handlePasswordExpiry))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.mux.ServeHTTP(w, r)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, p authkeep.Principal)

// requireAuth resolves the bearer token before the route logic runs, so a
// revoked session is rejected uniformly at the door.
func (h *Handler) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bearer := bearerToken(r)
		if bearer == "" {
			writeError(w, authkeep.ErrUnauthorized)
			return
		}

		ctx := authkeep.WithClientIP(r.Context(), clientIP(r))
		ctx = authkeep.WithUserAgent(ctx, r.UserAgent())

		p, err := h.engine.Authenticate(ctx, bearer)
		if err != nil {
			writeError(w, err)
			return
		}

		next(w, r.WithContext(ctx), p)
	}
}

func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request, p authkeep.Principal) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	setup, err := h.engine.SetupTwoFactor(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"secret":        setup.Secret,
		"provisionUri":  setup.ProvisionURI,
		"qrCode":        setup.QRCodeDataURI,
		"recoveryCodes": setup.RecoveryCodes,
	})
}

func (h *Handler) handleEnable(w http.ResponseWriter, r *http.Request, p authkeep.Principal) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, authkeep.ErrBadRequest)
		return
	}

	if err := h.engine.EnableTwoFactor(r.Context(), p.UserID, req.Code); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request, p authkeep.Principal) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, authkeep.ErrBadRequest)
		return
	}

	result, err := h.engine.VerifyTwoFactor(r.Context(), p.UserID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"valid":            result.Valid,
		"usedRecoveryCode": result.UsedRecoveryCode,
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request, p authkeep.Principal) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SessionID       string `json:"sessionId"`
		RevokeAllOthers bool   `json:"revokeAllOthers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, authkeep.ErrBadRequest)
		return
	}

	// Exactly one of the two forms must be used.
	if (req.SessionID != "") == req.RevokeAllOthers {
		writeError(w, authkeep.ErrBadRequest)
		return
	}

	if req.RevokeAllOthers {
		revoked, err := h.engine.RevokeOtherSessions(r.Context(), p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"revoked": revoked})
		return
	}

	if err := h.engine.RevokeSession(r.Context(), p, req.SessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"revoked": []string{req.SessionID}})
}

func (h *Handler) handlePasswordExpiry(w http.ResponseWriter, r *http.Request, p authkeep.Principal) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	expiry, err := h.engine.CheckPasswordExpiry(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"expired":         expiry.Expired,
		"daysUntilExpiry": expiry.DaysUntilExpiry,
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
