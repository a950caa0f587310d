package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ProsperityMC/christmas-draw/store"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

const stateCookie = "login-state"

type DiscordUser struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

func (s *Server) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	return string(hash), err
}

func (s *Server) login(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJson(rw, req, &body); err != nil {
		writeMsg(rw, http.StatusBadRequest, "No data provided")
		return
	}
	if body.Username == "" || body.Password == "" {
		writeMsg(rw, http.StatusBadRequest, "Username and password required")
		return
	}

	user, err := s.store.GetUserByUsername(req.Context(), body.Username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeMsg(rw, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		s.log.Error("Failed to look up user", "username", body.Username, "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Failed to log in")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil {
		writeMsg(rw, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token := s.startSession(rw, user)
	s.log.Debug("User logged in", "user", user.Username, "admin", user.IsAdmin)
	writeJson(rw, http.StatusOK, map[string]any{
		"token":    token.String(),
		"is_admin": user.IsAdmin,
	})
}

func (s *Server) logout(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if token, ok := sessionToken(req); ok {
		s.sessions.Delete(token)
	}
	http.SetCookie(rw, &http.Cookie{
		Name:     sessionCookie,
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
	writeMsg(rw, http.StatusOK, "Logged out")
}

func (s *Server) discordLogin(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.oauth == nil {
		http.NotFound(rw, req)
		return
	}
	nonce := uuid.New()
	stateId := uuid.New()
	s.oauthStates.Set(stateId, nonce, time.Now().Add(15*time.Minute))
	http.SetCookie(rw, &http.Cookie{
		Name:     stateCookie,
		Value:    nonce.String(),
		Path:     "/auth/discord",
		MaxAge:   15 * 60,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(rw, req, s.oauth.AuthCodeURL(stateId.String()), http.StatusFound)
}

func (s *Server) discordCallback(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.oauth == nil {
		http.NotFound(rw, req)
		return
	}
	stateId, err := uuid.Parse(req.FormValue("state"))
	if err != nil {
		writeMsg(rw, http.StatusBadRequest, "Invalid state parameter")
		return
	}
	cookie, err := req.Cookie(stateCookie)
	if err != nil {
		writeMsg(rw, http.StatusBadRequest, "State does not match")
		return
	}
	if nonce, ok := s.oauthStates.Get(stateId); !ok || nonce.String() != cookie.Value {
		writeMsg(rw, http.StatusBadRequest, "State does not match")
		return
	}
	s.oauthStates.Delete(stateId)

	du, err := s.fetchDiscordUser(req.Context(), req.FormValue("code"))
	if err != nil {
		s.log.Warn("Discord login failed", "err", err)
		writeMsg(rw, http.StatusBadGateway, "Error collecting data from the Discord API")
		return
	}

	user, err := s.store.GetUserByDiscordId(req.Context(), du.Id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeMsg(rw, http.StatusConflict, "Discord account is not linked to a participant")
		return
	case err != nil:
		s.log.Error("Failed to look up discord user", "discord", du.Id, "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Failed to log in")
		return
	}

	s.startSession(rw, user)
	s.log.Debug("User logged in with Discord", "user", user.Username, "discord", du.Username)
	http.Redirect(rw, req, s.discordSuccessUrl, http.StatusFound)
}

func (s *Server) fetchDiscordUser(ctx context.Context, code string) (DiscordUser, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return DiscordUser{}, err
	}
	res, err := s.oauth.Client(ctx, token).Get(s.discordApi + "/users/@me")
	if err != nil {
		return DiscordUser{}, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(res.Body)

	if res.StatusCode != http.StatusOK {
		return DiscordUser{}, errors.New("unexpected response from Discord: " + res.Status)
	}
	var du DiscordUser
	if err := json.NewDecoder(res.Body).Decode(&du); err != nil {
		return DiscordUser{}, err
	}
	if du.Id == "" {
		return DiscordUser{}, errors.New("discord user has no id")
	}
	return du, nil
}
