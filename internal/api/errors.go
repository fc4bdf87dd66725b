package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membership/internal/account"
	"membership/internal/approval"
	"membership/internal/attendance"
	"membership/internal/auth"
	"membership/internal/images"
	"membership/internal/ledger"
	"membership/internal/members"
	"membership/internal/store"
)

var (
	badRequest = []error{
		attendance.ErrNoTargets, members.ErrInvalidRoll, members.ErrRollMismatch,
		approval.ErrIncomplete, auth.ErrWeakPassword, images.ErrEmptyImage, images.ErrTooLarge,
	}
	notFound = []error{members.ErrNotFound, approval.ErrNotFound, approval.ErrMemberNotFound}
	conflict = []error{
		store.ErrConflict, members.ErrEmailTaken, approval.ErrEmailPending,
		approval.ErrRollPending, approval.ErrAlreadyMember,
	}
	forbidden    = []error{account.ErrPendingApproval, account.ErrNotApproved}
	unauthorized = []error{account.ErrInvalidCredentials, auth.ErrInvalidToken, auth.ErrTokenRevoked}
)

func matches(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case ledger.IsInvalid(err), matches(err, badRequest):
		return http.StatusBadRequest
	case matches(err, unauthorized):
		return http.StatusUnauthorized
	case matches(err, forbidden):
		return http.StatusForbidden
	case matches(err, notFound):
		return http.StatusNotFound
	case matches(err, conflict):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNothingToSubtract):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		h.Log.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badInput(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func rollParam(c *gin.Context) (int, bool) {
	roll, err := strconv.Atoi(c.Param("roll"))
	if err != nil || roll <= 0 {
		badInput(c, members.ErrInvalidRoll)
		return 0, false
	}
	return roll, true
}

func callerRoll(c *gin.Context) (int, bool) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return 0, false
	}
	roll, err := claims.RollNo()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return 0, false
	}
	return roll, true
}
