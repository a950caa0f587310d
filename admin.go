package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ProsperityMC/christmas-draw/derange"
	"github.com/ProsperityMC/christmas-draw/store"
	"github.com/julienschmidt/httprouter"
)

type userInfo struct {
	Id            int64  `json:"id"`
	Name          string `json:"name"`
	Username      string `json:"username"`
	IsAdmin       bool   `json:"is_admin"`
	HasDrawn      bool   `json:"has_drawn"`
	HasAssignment bool   `json:"has_assignment"`
}

type newUserRequest struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	DiscordId string `json:"discord_id"`
	IsAdmin   bool   `json:"is_admin"`
}

func (s *Server) createUsers(rw http.ResponseWriter, req *http.Request, _ httprouter.Params, _ Session) {
	var body struct {
		Users []newUserRequest `json:"users"`
	}
	if err := decodeJson(rw, req, &body); err != nil {
		writeMsg(rw, http.StatusBadRequest, "No users data provided")
		return
	}
	if len(body.Users) == 0 {
		writeMsg(rw, http.StatusBadRequest, "Users must be a non-empty list")
		return
	}

	created := make([]string, 0, len(body.Users))
	errs := make([]string, 0)
	for _, u := range body.Users {
		if u.Name == "" || u.Username == "" || u.Password == "" {
			name := u.Username
			if name == "" {
				name = "unknown"
			}
			errs = append(errs, "Missing fields for user: "+name)
			continue
		}
		hash, err := s.hashPassword(u.Password)
		if err != nil {
			errs = append(errs, "Failed to hash password for user: "+u.Username)
			continue
		}
		_, err = s.store.CreateUser(req.Context(), store.NewUser{
			Name:         u.Name,
			Username:     u.Username,
			PasswordHash: hash,
			DiscordId:    u.DiscordId,
			IsAdmin:      u.IsAdmin,
		})
		switch {
		case errors.Is(err, store.ErrUsernameTaken):
			errs = append(errs, "Username already exists: "+u.Username)
			continue
		case errors.Is(err, store.ErrDiscordIdTaken):
			errs = append(errs, "Discord account already linked: "+u.DiscordId)
			continue
		case err != nil:
			s.log.Error("Failed to create user", "username", u.Username, "err", err)
			errs = append(errs, "Failed to create user: "+u.Username)
			continue
		}
		created = append(created, u.Username)
	}

	if len(created) > 0 {
		s.log.Info("Created users", "count", len(created))
	}
	writeJson(rw, http.StatusOK, map[string]any{
		"created": created,
		"errors":  errs,
	})
}

func (s *Server) generateAssignments(rw http.ResponseWriter, req *http.Request, _ httprouter.Params, _ Session) {
	gen := s.generator()
	n, err := s.store.Draw(req.Context(), func(ids []int64) ([]int64, error) {
		return derange.Generate(gen, ids)
	})
	switch {
	case errors.Is(err, store.ErrNotEnoughParticipants):
		writeMsg(rw, http.StatusBadRequest, "Need at least 2 non-admin users for assignments")
		return
	case errors.Is(err, derange.ErrRetryBudgetExceeded):
		s.log.Warn("Draw gave up", "err", err)
		writeMsg(rw, http.StatusServiceUnavailable, "Could not generate assignments, try again")
		return
	case err != nil:
		s.log.Error("Draw failed", "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Failed to generate assignments")
		return
	}

	s.log.Info("Assignments generated", "count", n, "strategy", gen.Strategy())
	writeJson(rw, http.StatusOK, map[string]any{
		"msg":   "Assignments generated",
		"count": n,
	})
}

func (s *Server) listUsers(rw http.ResponseWriter, req *http.Request, _ httprouter.Params, _ Session) {
	users, err := s.store.ListUsers(req.Context(), store.Filter{})
	if err != nil {
		s.log.Error("Failed to list users", "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Failed to list users")
		return
	}
	list := make([]userInfo, len(users))
	for i, u := range users {
		list[i] = userInfo{
			Id:            u.Id,
			Name:          u.Name,
			Username:      u.Username,
			IsAdmin:       u.IsAdmin,
			HasDrawn:      u.HasViewed,
			HasAssignment: u.HasAssignment(),
		}
	}
	writeJson(rw, http.StatusOK, map[string]any{"users": list})
}

func userIdParam(params httprouter.Params) (int64, bool) {
	id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
	return id, err == nil
}

func (s *Server) deleteUser(rw http.ResponseWriter, req *http.Request, params httprouter.Params, _ Session) {
	id, ok := userIdParam(params)
	if !ok {
		writeMsg(rw, http.StatusNotFound, "User not found")
		return
	}
	u, err := s.store.DeleteUser(req.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeMsg(rw, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, store.ErrLastAdmin):
		writeMsg(rw, http.StatusBadRequest, "Cannot delete the last admin user")
		return
	case err != nil:
		s.log.Error("Failed to delete user", "id", id, "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	s.log.Info("Deleted user", "user", u.Username)
	writeMsg(rw, http.StatusOK, fmt.Sprintf("User %s deleted successfully", u.Username))
}

func (s *Server) changePassword(rw http.ResponseWriter, req *http.Request, params httprouter.Params, _ Session) {
	var body struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJson(rw, req, &body); err != nil || body.NewPassword == "" {
		writeMsg(rw, http.StatusBadRequest, "New password is required")
		return
	}
	id, ok := userIdParam(params)
	if !ok {
		writeMsg(rw, http.StatusNotFound, "User not found")
		return
	}
	u, err := s.store.GetUser(req.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeMsg(rw, http.StatusNotFound, "User not found")
		return
	}
	if err == nil {
		var hash string
		hash, err = s.hashPassword(body.NewPassword)
		if err == nil {
			err = s.store.SetPassword(req.Context(), id, hash)
		}
	}
	if err != nil {
		s.log.Error("Failed to change password", "id", id, "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Failed to change password")
		return
	}
	writeMsg(rw, http.StatusOK, "Password updated for "+u.Username)
}

// linkDiscord sets the Discord account a user logs in with. An empty id unlinks it.
func (s *Server) linkDiscord(rw http.ResponseWriter, req *http.Request, params httprouter.Params, _ Session) {
	var body struct {
		DiscordId *string `json:"discord_id"`
	}
	if err := decodeJson(rw, req, &body); err != nil || body.DiscordId == nil {
		writeMsg(rw, http.StatusBadRequest, "Discord id is required")
		return
	}
	id, ok := userIdParam(params)
	if !ok {
		writeMsg(rw, http.StatusNotFound, "User not found")
		return
	}
	err := s.store.LinkDiscord(req.Context(), id, *body.DiscordId)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeMsg(rw, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, store.ErrDiscordIdTaken):
		writeMsg(rw, http.StatusConflict, "Discord account already linked: "+*body.DiscordId)
		return
	case err != nil:
		s.log.Error("Failed to link discord", "id", id, "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Failed to link Discord account")
		return
	}
	if *body.DiscordId == "" {
		writeMsg(rw, http.StatusOK, "Discord account unlinked")
		return
	}
	writeMsg(rw, http.StatusOK, "Discord account linked")
}

func (s *Server) listAssignments(rw http.ResponseWriter, req *http.Request, _ httprouter.Params, _ Session) {
	assignments, err := s.store.Assignments(req.Context())
	if err != nil {
		s.log.Error("Failed to list assignments", "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Failed to list assignments")
		return
	}
	type pair struct {
		Giver    string `json:"giver"`
		Receiver string `json:"receiver"`
	}
	list := make([]pair, len(assignments))
	for i, a := range assignments {
		list[i] = pair{Giver: a.Giver, Receiver: a.Receiver}
	}
	writeJson(rw, http.StatusOK, map[string]any{"assignments": list})
}
