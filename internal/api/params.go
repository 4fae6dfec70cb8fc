package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pageza/recipe-lens/backend/internal/middleware"
	"github.com/pageza/recipe-lens/backend/internal/service"
)

// pathID parses a uuid path parameter. On failure it records a 400 and
// returns false.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		_ = c.Error(&service.ValidationError{Field: name, Message: "must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// currentUser returns the authenticated user's id.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		_ = c.Error(service.ErrUnauthenticated)
	}
	return id, ok
}

// bind decodes the JSON body into req, recording a bind error on failure.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return false
	}
	return true
}
