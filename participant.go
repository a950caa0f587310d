package main

import (
	"errors"
	"net/http"

	"github.com/ProsperityMC/christmas-draw/store"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) getAssignment(rw http.ResponseWriter, req *http.Request, _ httprouter.Params, sess Session) {
	user, err := s.store.GetUser(req.Context(), sess.UserId)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeMsg(rw, http.StatusNotFound, "User not found")
		return
	case err != nil:
		s.log.Error("Failed to get user", "id", sess.UserId, "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Failed to get assignment")
		return
	}
	if !user.HasAssignment() {
		writeMsg(rw, http.StatusBadRequest, "Assignment not ready yet")
		return
	}

	target, err := s.store.GetUser(req.Context(), user.AssignedUserId)
	if err != nil {
		s.log.Error("Assigned user is missing", "user", user.Username, "target", user.AssignedUserId, "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Assignment error")
		return
	}
	writeJson(rw, http.StatusOK, map[string]any{
		"assigned_to": target.Name,
		"has_drawn":   user.HasViewed,
	})
}

// markViewed is called once the reveal animation has finished.
func (s *Server) markViewed(rw http.ResponseWriter, req *http.Request, _ httprouter.Params, sess Session) {
	err := s.store.MarkViewed(req.Context(), sess.UserId)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeMsg(rw, http.StatusNotFound, "User not found")
		return
	case err != nil:
		s.log.Error("Failed to mark assignment viewed", "id", sess.UserId, "err", err)
		writeMsg(rw, http.StatusInternalServerError, "Failed to mark as viewed")
		return
	}
	writeMsg(rw, http.StatusOK, "Marked as viewed")
}
