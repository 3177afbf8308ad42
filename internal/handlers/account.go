package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jason-s-yu/gamehub/internal/auth"
	"github.com/jason-s-yu/gamehub/internal/database"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/sirupsen/logrus"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AccountHandler serves signup, login, logout and the current account.
type AccountHandler struct {
	users    database.UserStore
	validate *validator.Validate
	logger   *logrus.Logger
}

func NewAccountHandler(users database.UserStore, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{users: users, validate: validator.New(), logger: logger}
}

func (a *AccountHandler) decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid payload")
	}
	if err := a.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New("invalid " + lowerFirst(verrs[0].Field()) + ": " + describeTag(verrs[0]))
		}
		return errors.New("invalid payload")
	}
	return nil
}

// setSessionCookie stores token in the auth cookie for the token lifetime.
func setSessionCookie(w http.ResponseWriter, token string) {
	c := &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl := auth.TokenTTL(); ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
	}
	http.SetCookie(w, c)
}

func (a *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u := &models.User{Email: req.Email, Username: req.Username, Password: req.Password}
	if err := a.users.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, database.ErrUserExists) {
			writeError(w, http.StatusConflict, "email or username already taken")
			return
		}
		a.logger.Errorf("failed to create user: %v", err)
		writeError(w, http.StatusInternalServerError, "could not create account")
		return
	}
	token, err := auth.CreateJWT(u.ID.String())
	if err != nil {
		a.logger.Errorf("failed to create token for %s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	setSessionCookie(w, token)
	a.logger.Infof("account %s created", u.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": u, "token": token})
}

func (a *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, token, err := database.AuthenticateUser(r.Context(), a.users, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		a.logger.Errorf("login failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not log in")
		return
	}
	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u, "token": token})
}

// Logout clears the auth cookie. Tokens are stateless, so a copy held
// elsewhere stays valid until it expires.
func (a *AccountHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	sub, err := auth.AuthenticateJWT(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	u, err := a.users.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		a.logger.Errorf("failed to load user %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "could not load account")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
