package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"civictrack/media"
	"civictrack/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var transitionErr *services.TransitionError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     transitionErr.Error(),
			"current":   transitionErr.From,
			"attempted": transitionErr.To,
		})
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrDuplicateLocation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, services.ErrForbidden):
		slog.WarnContext(c.Request.Context(), "forbidden", "path", c.FullPath(), "method", c.Request.Method)
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action"})
	case errors.Is(err, services.ErrNoDepartmentForCategory):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrDuplicateDepartment):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, media.ErrUploadFailed):
		slog.ErrorContext(c.Request.Context(), "media upload failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Media upload failed"})
	default:
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}

func bindError(c *gin.Context, err error) {
	slog.WarnContext(c.Request.Context(), "invalid request body", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// paramID parses the named path parameter as an ObjectID. It writes a 400
// and returns false when the value is malformed.
func paramID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name, "field": name})
		return primitive.NilObjectID, false
	}
	return id, true
}

func optionalID(hex *string) *primitive.ObjectID {
	if hex == nil || *hex == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(*hex)
	if err != nil {
		return nil
	}
	return &id
}
