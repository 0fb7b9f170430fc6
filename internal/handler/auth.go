package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/shopora/storefront/internal/auth"
	"github.com/shopora/storefront/internal/domain/user"
	"github.com/shopora/storefront/internal/storage/rediscache"
)

const authCookieName = "token"

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Role        string       `json:"role"`
	Address     user.Address `json:"address"`
	PhoneNumber string       `json:"phoneNumber,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Address:     u.Address,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
	}
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	u := &user.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         user.RoleCustomer,
	}
	if err := h.Users.Create(r.Context(), u); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.issueSession(w, r, u, http.StatusCreated)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.Users.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, user.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.issueSession(w, r, u, http.StatusOK)
}

// issueSession mints the access token, stores a fresh refresh token, sets the
// auth cookie, and writes the auth response.
func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, u *user.User, status int) {
	token, err := h.Tokens.Issue(u.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	refresh, err := auth.NewRefreshToken()
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.Cache.StoreRefreshToken(r.Context(), u.ID, refresh); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.Tokens.TokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, status, authResponse{User: toUserResponse(u), Token: token})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())
	if err := h.Cache.DeleteRefreshToken(r.Context(), u.ID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type refreshRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
}

// refreshToken exchanges a stored refresh token for a new access token. The
// refresh token itself is not rotated; it expires with its TTL.
func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, err := h.Cache.RefreshToken(r.Context(), req.UserID)
	if errors.Is(err, rediscache.ErrCacheMiss) || (err == nil && stored != req.RefreshToken) {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	token, err := h.Tokens.Issue(req.UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type profileUpdateRequest struct {
	Name        *string       `json:"name"`
	Email       *string       `json:"email"`
	Address     *user.Address `json:"address"`
	PhoneNumber *string       `json:"phoneNumber"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())

	var req profileUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.Users.UpdateProfile(r.Context(), u.ID, user.ProfileUpdate{
		Name:        req.Name,
		Email:       req.Email,
		Address:     req.Address,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// requireAuth authenticates the request from the auth cookie or a Bearer
// header and loads the user into the request context.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		userID, err := h.Tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		u, err := h.Users.GetByID(r.Context(), userID)
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid access token")
			return
		}
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}

		next(w, r.WithContext(user.NewContext(r.Context(), u)))
	}
}

// requireAdmin is requireAuth plus a role check.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		u, _ := user.FromContext(r.Context())
		if !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	})
}

// bearerToken extracts the access token from the Authorization header or the
// auth cookie, in that order.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
		return ""
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
