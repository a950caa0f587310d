package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/1f349/cache"
	"github.com/ProsperityMC/christmas-draw/derange"
	"github.com/ProsperityMC/christmas-draw/store"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/ravener/discord-oauth2"
	"github.com/rs/cors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

const sessionCookie = "session-id"

const maxBodyBytes = 1 << 20

type Session struct {
	UserId  int64
	IsAdmin bool
}

type Server struct {
	store      *store.Store
	log        *log.Logger
	sessions   *cache.Cache[uuid.UUID, Session]
	sessionTtl time.Duration

	genMu sync.RWMutex
	gen   *derange.Generator

	// discord login, nil when not configured
	oauth             *oauth2.Config
	oauthStates       *cache.Cache[uuid.UUID, uuid.UUID]
	discordApi        string
	discordSuccessUrl string

	allowedOrigins []string

	passwordCost int
}

func NewServer(conf Config, st *store.Store, gen *derange.Generator, logger *log.Logger) *Server {
	s := &Server{
		store:          st,
		log:            logger,
		sessions:       cache.New[uuid.UUID, Session](),
		sessionTtl:     conf.SessionTtl,
		gen:            gen,
		discordApi:     "https://discord.com/api",
		allowedOrigins: conf.Cors.AllowedOrigins,
		passwordCost:   bcrypt.DefaultCost,
	}
	if s.sessionTtl <= 0 {
		s.sessionTtl = 12 * time.Hour
	}
	if d := conf.Login.Discord; d.Enabled() {
		s.oauth = &oauth2.Config{
			RedirectURL:  d.RedirectUrl,
			ClientID:     d.Id,
			ClientSecret: d.Token,
			Scopes:       []string{discord.ScopeIdentify},
			Endpoint:     discord.Endpoint,
		}
		s.oauthStates = cache.New[uuid.UUID, uuid.UUID]()
		s.discordSuccessUrl = d.SuccessUrl
		if s.discordSuccessUrl == "" {
			s.discordSuccessUrl = "/"
		}
	}
	return s
}

// SetGenerator swaps the generator used by later draws.
func (s *Server) SetGenerator(gen *derange.Generator) {
	s.genMu.Lock()
	s.gen = gen
	s.genMu.Unlock()
}

func (s *Server) generator() *derange.Generator {
	s.genMu.RLock()
	defer s.genMu.RUnlock()
	return s.gen
}

func (s *Server) Router() http.Handler {
	router := httprouter.New()

	router.POST("/auth/login", s.login)
	router.POST("/auth/logout", s.logout)
	router.GET("/auth/discord", s.discordLogin)
	router.GET("/auth/discord/callback", s.discordCallback)

	router.POST("/admin/create-users", s.requireAdmin(s.createUsers))
	router.POST("/admin/generate-assignments", s.requireAdmin(s.generateAssignments))
	router.GET("/admin/users", s.requireAdmin(s.listUsers))
	router.DELETE("/admin/users/:id", s.requireAdmin(s.deleteUser))
	router.PUT("/admin/users/:id/password", s.requireAdmin(s.changePassword))
	router.PUT("/admin/users/:id/discord", s.requireAdmin(s.linkDiscord))
	router.GET("/admin/assignments", s.requireAdmin(s.listAssignments))

	router.GET("/user/assignment", s.requireUser(s.getAssignment))
	router.POST("/user/mark-viewed", s.requireUser(s.markViewed))
	router.GET("/user/all-users", s.requireUser(s.listUsers))

	// same-origin only unless origins are configured, an empty list would allow any origin
	if len(s.allowedOrigins) == 0 {
		return router
	}
	return cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(router)
}

type sessionHandle func(rw http.ResponseWriter, req *http.Request, params httprouter.Params, sess Session)

func (s *Server) requireUser(h sessionHandle) httprouter.Handle {
	return func(rw http.ResponseWriter, req *http.Request, params httprouter.Params) {
		token, sess, ok := s.session(req)
		if !ok {
			writeMsg(rw, http.StatusUnauthorized, "Missing authorization")
			return
		}
		// the user may have been deleted or changed since login
		u, err := s.store.GetUser(req.Context(), sess.UserId)
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.sessions.Delete(token)
			writeMsg(rw, http.StatusUnauthorized, "Missing authorization")
			return
		case err != nil:
			s.log.Error("Failed to look up session user", "id", sess.UserId, "err", err)
			writeMsg(rw, http.StatusInternalServerError, "Failed to check session")
			return
		}
		sess.IsAdmin = u.IsAdmin
		h(rw, req, params, sess)
	}
}

func (s *Server) requireAdmin(h sessionHandle) httprouter.Handle {
	return s.requireUser(func(rw http.ResponseWriter, req *http.Request, params httprouter.Params, sess Session) {
		if !sess.IsAdmin {
			writeMsg(rw, http.StatusForbidden, "Admin access required")
			return
		}
		h(rw, req, params, sess)
	})
}

// sessionToken reads the bearer token, falling back to the session cookie.
func sessionToken(req *http.Request) (uuid.UUID, bool) {
	raw, found := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !found {
		cookie, err := req.Cookie(sessionCookie)
		if err != nil {
			return uuid.UUID{}, false
		}
		raw = cookie.Value
	}
	token, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.UUID{}, false
	}
	return token, true
}

func (s *Server) session(req *http.Request) (uuid.UUID, Session, bool) {
	token, ok := sessionToken(req)
	if !ok {
		return uuid.UUID{}, Session{}, false
	}
	sess, ok := s.sessions.Get(token)
	return token, sess, ok
}

func (s *Server) startSession(rw http.ResponseWriter, u store.User) uuid.UUID {
	token := uuid.New()
	expires := time.Now().Add(s.sessionTtl)
	s.sessions.Set(token, Session{UserId: u.Id, IsAdmin: u.IsAdmin}, expires)
	http.SetCookie(rw, &http.Cookie{
		Name:     sessionCookie,
		Value:    token.String(),
		Path:     "/",
		Expires:  expires,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

func writeJson(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeMsg(rw http.ResponseWriter, status int, msg string) {
	writeJson(rw, status, map[string]string{"msg": msg})
}

func decodeJson(rw http.ResponseWriter, req *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(rw, req.Body, maxBodyBytes)).Decode(v)
}
