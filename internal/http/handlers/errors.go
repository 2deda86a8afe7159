package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/tastequest-backend/internal/domain/aggregates"
	"github.com/yungbote/tastequest-backend/internal/http/response"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/scan"
	"github.com/yungbote/tastequest-backend/internal/platform/apierr"
)

// toAPIError maps scan rejections and aggregate codes onto HTTP.
func toAPIError(err error, notFoundCode string) *apierr.Error {
	if err == nil {
		return nil
	}
	if e, ok := apierr.As(err); ok {
		return e
	}

	var rej *scan.Rejection
	if errors.As(err, &rej) {
		code := string(rej.Reason)
		if rej.Kind != scan.KindAuthenticity {
			return apierr.New(http.StatusBadRequest, code, err)
		}
		switch rej.Reason {
		case scan.ReasonInvalidGuestToken, scan.ReasonMissingGuestToken:
			return apierr.New(http.StatusUnauthorized, code, err)
		default:
			return apierr.New(http.StatusForbidden, code, err)
		}
	}

	switch domainagg.CodeOf(err) {
	case domainagg.CodeValidation:
		return apierr.New(http.StatusBadRequest, "invalid_request", err)
	case domainagg.CodeNotFound:
		if notFoundCode == "" {
			notFoundCode = "not_found"
		}
		return apierr.New(http.StatusNotFound, notFoundCode, err)
	case domainagg.CodeRetryable, domainagg.CodeConflict:
		return apierr.Retryable(http.StatusServiceUnavailable, "write_contention", err, 1)
	case domainagg.CodeUnavailable:
		return apierr.Retryable(http.StatusServiceUnavailable, "store_unavailable", err, 1)
	default:
		return apierr.New(http.StatusInternalServerError, "internal_error", err)
	}
}

func respondErr(c *gin.Context, err error, notFoundCode string) {
	_ = c.Error(err)
	response.RespondAPIError(c, toAPIError(err, notFoundCode))
}

// scanFailureOutcome names a failed scan for metrics: the rejection reason,
// or "error" when the write itself failed.
func scanFailureOutcome(err error) string {
	var rej *scan.Rejection
	if errors.As(err, &rej) {
		return string(rej.Reason)
	}
	return "error"
}
