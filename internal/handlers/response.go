package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/services"
)

// Error codes carried in the response envelope
const (
	ErrCodeValidation     = "VALIDATION_FAILED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeRemote         = "REMOTE_ERROR"
	ErrCodeRemoteRejected = "REMOTE_REJECTED"
	ErrCodeUpload         = "MEDIA_UPLOAD_FAILED"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeReconciliation = "RECONCILIATION_FAILED"
	ErrCodeInternal       = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
)

// Response is the success envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse is the success envelope for paginated lists
type ListResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Total   int64       `json:"total"`
	Limit   int         `json:"limit,omitempty"`
	Offset  int         `json:"offset,omitempty"`
}

// ErrorResponse is the failure envelope
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Error:   ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// handleError maps a service or remote error onto the envelope.
func handleError(c *gin.Context, err error) {
	status, code, details := classify(err)
	entry := logrus.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}
	respondError(c, status, code, err.Error(), details)
}

func classify(err error) (int, string, interface{}) {
	var (
		validationErr *services.ValidationError
		partialErr    *services.PartialFailure
		stagingErr    *services.StagingError
		transferErr   *services.TransferError
		attachErr     *services.AttachError
		reconcileErr  *services.ReconciliationError
		configErr     *clients.ConfigError
		userErrs      *clients.UserErrors
		remoteErr     *clients.RemoteHTTPError
		graphQLErr    *clients.GraphQLError
		networkErr    *clients.NetworkError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, ErrCodeValidation, validationErr.Fields
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, nil
	case errors.Is(err, services.ErrUnverifiedWebhook):
		return http.StatusUnauthorized, ErrCodeUnauthorized, nil
	case errors.Is(err, services.ErrSyncInProgress):
		return http.StatusConflict, ErrCodeConflict, nil
	case errors.Is(err, services.ErrJobNotRunning):
		return http.StatusConflict, ErrCodeConflict, nil
	case errors.As(err, &partialErr):
		return http.StatusMultiStatus, ErrCodeRemote, partialErr.Items
	case errors.As(err, &transferErr):
		return http.StatusBadGateway, ErrCodeUpload, gin.H{"file": transferErr.File, "status": transferErr.StatusCode, "body": transferErr.Body}
	case errors.As(err, &stagingErr):
		return http.StatusBadGateway, ErrCodeUpload, gin.H{"file": stagingErr.File}
	case errors.As(err, &attachErr):
		return http.StatusBadGateway, ErrCodeUpload, gin.H{"file": attachErr.File}
	case errors.As(err, &reconcileErr):
		return http.StatusInternalServerError, ErrCodeReconciliation, gin.H{"productId": reconcileErr.ProductID}
	case errors.As(err, &configErr):
		return http.StatusInternalServerError, ErrCodeInternal, nil
	case clients.IsTransient(err):
		return http.StatusTooManyRequests, ErrCodeRateLimited, nil
	case errors.As(err, &userErrs):
		return http.StatusUnprocessableEntity, ErrCodeRemoteRejected, userErrs.Errors
	case errors.As(err, &remoteErr):
		if remoteErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, ErrCodeNotFound, nil
		}
		if remoteErr.StatusCode < 400 {
			return http.StatusBadGateway, ErrCodeRemote, nil
		}
		return remoteErr.StatusCode, ErrCodeRemote, gin.H{"upstreamStatus": remoteErr.StatusCode}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout, nil
	case errors.As(err, &graphQLErr), errors.As(err, &networkErr):
		return http.StatusBadGateway, ErrCodeRemote, nil
	}
	return http.StatusInternalServerError, ErrCodeInternal, nil
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
