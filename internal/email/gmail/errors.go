package gmail

import (
	"context"
	"errors"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

// quotaReasons are 403 reasons that mean "slow down" rather than "forbidden"
var quotaReasons = map[string]bool{
	"rateLimitExceeded":       true,
	"userRateLimitExceeded":   true,
	"quotaExceeded":           true,
	"dailyLimitExceeded":      true,
	"concurrentLimitExceeded": true,
}

// classify tags an API error with a failure category and retriability.
// Context errors pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			return failure.Transient(failure.CategoryAuth, err)
		}
		return failure.Permanent(failure.CategoryAuth, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return failure.Transient(failure.CategoryNetwork, err)
	}

	return failure.Transient(failure.CategoryUnknown, err)
}

// classifyAPIError maps the HTTP status of apiErr and wraps err, which may
// carry extra context around apiErr
func classifyAPIError(apiErr *googleapi.Error, err error) error {
	switch code := apiErr.Code; {
	case code == http.StatusUnauthorized:
		return failure.Permanent(failure.CategoryAuth, err)
	case code == http.StatusForbidden:
		for _, item := range apiErr.Errors {
			if quotaReasons[item.Reason] {
				return failure.Transient(failure.CategoryQuota, err)
			}
		}
		return failure.Permanent(failure.CategoryAuth, err)
	case code == http.StatusTooManyRequests:
		return failure.Transient(failure.CategoryQuota, err)
	case code == http.StatusNotFound:
		return failure.Permanent(failure.CategoryNotFound, err)
	case code == http.StatusRequestTimeout:
		return failure.Transient(failure.CategoryNetwork, err)
	case code >= 500:
		return failure.Transient(failure.CategoryServer, err)
	case code >= 400:
		return failure.Permanent(failure.CategoryInvalidRequest, err)
	default:
		return failure.Transient(failure.CategoryUnknown, err)
	}
}
