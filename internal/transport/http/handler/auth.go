package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-site-api/internal/application/magiclink"
	"github.com/go-site-api/internal/application/user"
	"github.com/go-site-api/internal/application/verification"
	"github.com/go-site-api/internal/domain"
	"github.com/go-site-api/internal/infrastructure/smtp"
	"github.com/go-site-api/internal/infrastructure/sns"
	"github.com/go-site-api/internal/pkg/validate"
	"github.com/go-site-api/internal/transport/http/middleware"
	websession "github.com/go-site-api/internal/transport/http/session"
)

// invalidProofMsg is the single user-facing message for every magic-link and
// code failure. Invalid, expired, wrong session — callers cannot tell which.
const invalidProofMsg = "invalid or expired link/code, request a new one"

// AuthHandler drives the passwordless sign-in flow: request a proof, consume
// it, sign in, sign out.
type AuthHandler struct {
	sessions      *websession.Manager
	magicLinks    *magiclink.Issuer
	verifications *verification.Service
	users         *user.Service
	mailer        smtp.Mailer
	smsSender     sns.SMSSender
	replayer      *middleware.Replayer
	domainURL     string
}

func NewAuthHandler(
	sessions *websession.Manager,
	magicLinks *magiclink.Issuer,
	verifications *verification.Service,
	users *user.Service,
	mailer smtp.Mailer,
	smsSender sns.SMSSender,
	replayer *middleware.Replayer,
	domainURL string,
) *AuthHandler {
	return &AuthHandler{
		sessions:      sessions,
		magicLinks:    magicLinks,
		verifications: verifications,
		users:         users,
		mailer:        mailer,
		smsSender:     smsSender,
		replayer:      replayer,
		domainURL:     domainURL,
	}
}

type loginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Login mails a magic link plus a numeric code for the given address and
// binds that address into the requester's session, so the link can only be
// consumed from this browser.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	cs := h.sessions.FromRequest(r)

	h.replayer.Replayable(w, r, func(check func(error) bool) error {
		link, err := h.magicLinks.Issue(req.Email, h.domainURL, true, 0)
		if err != nil {
			return err
		}
		prepared, err := h.verifications.Prepare(r.Context(), req.Email, domain.VerificationTypeLogin, 0)
		if err != nil {
			if check(err) {
				return nil
			}
			return err
		}
		body := fmt.Sprintf(
			"Here's your sign-in link:\n\n%s\n\nOr enter this code: %s\n\n%s\n\nIf you didn't request this, ignore it.",
			link, prepared.Code, prepared.VerifyURL,
		)
		if err := h.mailer.SendEmail(req.Email, "Your sign-in link", body); err != nil {
			return err
		}
		cs.BindEmail(req.Email)
		cs.Save(w)
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "check your email"})
		return nil
	})
}

// Magic consumes a magic link. Validation failures redirect back to the
// login page with a flash message; the redirect never says what went wrong.
func (h *AuthHandler) Magic(w http.ResponseWriter, r *http.Request) {
	cs := h.sessions.FromRequest(r)

	h.replayer.Replayable(w, r, func(check func(error) bool) error {
		email, err := h.magicLinks.Validate(r.URL.String(), cs.BoundEmail())
		if err != nil {
			cs.SetFlash("error", invalidProofMsg)
			cs.Save(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return nil
		}
		return h.signIn(r.Context(), w, cs, email, check)
	})
}

type verifyRequest struct {
	Code   string `json:"code" validate:"required"`
	Type   string `json:"type" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// Verify consumes a verification code. GETs carry the parameters in the
// query (the one-click URL from the email); POSTs carry them as JSON.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req = verifyRequest{Code: q.Get("code"), Type: q.Get("type"), Target: q.Get("target")}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// Phone confirmation must be attributable to a signed-in user before
	// the code is consumed, so a stray anonymous attempt can't burn it.
	var phoneOwner *domain.User
	if req.Type == domain.VerificationTypeConfirmPhone {
		if phoneOwner = h.sessions.FromRequest(r).GetUser(r.Context()); phoneOwner == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}

	if !h.verifications.IsValid(r.Context(), req.Code, req.Type, req.Target) {
		writeError(w, http.StatusBadRequest, invalidProofMsg)
		return
	}

	switch req.Type {
	case domain.VerificationTypeLogin:
		cs := h.sessions.FromRequest(r)
		h.replayer.Replayable(w, r, func(check func(error) bool) error {
			return h.signIn(r.Context(), w, cs, req.Target, check)
		})
	case domain.VerificationTypeConfirmPhone:
		h.replayer.Replayable(w, r, func(check func(error) bool) error {
			if err := h.users.ConfirmPhone(r.Context(), phoneOwner.UserID, req.Target); err != nil {
				if check(err) {
					return nil
				}
				return err
			}
			writeJSON(w, http.StatusOK, MessageEnvelope{Message: "phone confirmed"})
			return nil
		})
	default:
		// Confirmation flows: the consumed code is the outcome.
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verified"})
	}
}

type confirmPhoneRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

// ConfirmPhone texts a confirmation code to the given number. Requires a
// signed-in user.
func (h *AuthHandler) ConfirmPhone(w http.ResponseWriter, r *http.Request) {
	if h.smsSender == nil {
		writeError(w, http.StatusServiceUnavailable, "SMS delivery not configured")
		return
	}
	var req confirmPhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	prepared, err := h.verifications.Prepare(r.Context(), req.Phone, domain.VerificationTypeConfirmPhone, 0)
	if err != nil {
		httpError(w, err)
		return
	}
	if err := h.smsSender.SendSMS(r.Context(), req.Phone, "Your verification code: "+prepared.Code); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code sent"})
}

// Logout clears the session. Always succeeds from the client's perspective.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cs := h.sessions.FromRequest(r)
	cs.SignOut()
	cs.Save(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}

// Me returns the signed-in user. Runs inside RequireUser.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{User: u})
}

func (h *AuthHandler) signIn(ctx context.Context, w http.ResponseWriter, cs *websession.ClientSession, email string, check func(error) bool) error {
	u, err := h.users.FindOrCreate(ctx, email)
	if err != nil {
		if check(err) {
			return nil
		}
		return err
	}
	if err := cs.SignIn(ctx, u); err != nil {
		if check(err) {
			return nil
		}
		return err
	}
	cs.Save(w)
	writeJSON(w, http.StatusOK, AuthEnvelope{User: u, Message: "signed in"})
	return nil
}
