package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/remote"
	"geoattend/internal/store"
	"geoattend/internal/timeline"
)

var (
	errUserMismatch = errors.New("userId does not match the credential")
	errNotEnrolled  = errors.New("you are not a member of this class")
	errBadBody      = errors.New("invalid request body")
	errOwnerJoin    = errors.New("owner cannot join their own class")
)

// fail maps err to a status and writes it as {message}.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		verr *timeline.ValidationError
		derr *remote.DecodeError
	)
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.As(err, &verr), errors.As(err, &derr), errors.Is(err, errBadBody), errors.Is(err, errOwnerJoin):
		status = http.StatusBadRequest
	case errors.Is(err, attendance.ErrOutsideGeofence):
		status = http.StatusBadRequest
	case errors.Is(err, attendance.ErrOutsideWindow), errors.Is(err, attendance.ErrInvalidStateTransition):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrNotOwner), errors.Is(err, errUserMismatch), errors.Is(err, errNotEnrolled):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	default:
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, remote.MessageBody{Message: msg})
}
