// Package handler implements the HTTP endpoints of the API
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/infrastructure/logger"
	"github.com/tffhost/backend/internal/interfaces/http/dto"
	"github.com/tffhost/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// remoteErrors are failures of the systems the API depends on
var remoteErrors = []error{
	integration.ErrNotConfigured,
	integration.ErrRequestFailed,
	integration.ErrInvalidResponse,
	integration.ErrAuthFailed,
	integration.ErrRateLimited,
	integration.ErrNotFound,
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 response for work that continues in the background
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Forbidden sends a 403 forbidden response
func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, message)
}

// BindJSON binds the request body and answers 400 when it is invalid
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindQuery binds the query string and answers 400 when it is invalid
func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindURI binds the path parameters and answers 400 when they are invalid
func (h *BaseHandler) BindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Invalid path parameter")
		return false
	}
	return true
}

// HandleError converts errors to responses. Domain errors keep their code, failures
// of remote systems answer 502 and anything else is an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	requestID := middleware.GetRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID, domainErr.Details))
		return
	}

	if errors.Is(err, integration.ErrDocumentNotFound) {
		h.NotFound(c, "Document not found")
		return
	}

	for _, remote := range remoteErrors {
		if errors.Is(err, remote) {
			logger.L(c.Request.Context()).Warn("Remote system failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnavailable, "A remote system is unavailable, please retry later", requestID))
			return
		}
	}

	logger.L(c.Request.Context()).Error("Unhandled error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal, "An unexpected error occurred", requestID))
}

// PathID binds the :id path parameter
func (h *BaseHandler) PathID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if !h.BindURI(c, &req) {
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// PathUsername binds the :username path parameter
func (h *BaseHandler) PathUsername(c *gin.Context) (string, bool) {
	var req dto.UsernameRequest
	if !h.BindURI(c, &req) {
		return "", false
	}
	return req.Username, true
}
