package utils

import (
	models "Tavern/models/postgres"
	"Tavern/middleware"
	"Tavern/services/apierror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Abort writes the error envelope and stops the handler chain.
func Abort(c *gin.Context, apiErr *apierror.ApiError) {
	c.AbortWithStatusJSON(apiErr.HTTPStatus(), apiErr)
}

// CurrentAccount returns the account loaded by the auth middleware.
func CurrentAccount(c *gin.Context) *models.Account {
	return c.MustGet(middleware.ContextAccount).(*models.Account)
}

// ParseUUIDParam parses a uuid path parameter, aborting with InvalidUuid
// on malformed input.
func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Abort(c, apierror.Of(apierror.InvalidUuid))
		return uuid.Nil, false
	}
	return id, true
}

// ParseUUIDBody parses a uuid taken from a request body, aborting with
// InvalidUuid on malformed input.
func ParseUUIDBody(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		Abort(c, apierror.Of(apierror.InvalidUuid))
		return uuid.Nil, false
	}
	return id, true
}
