package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/lifecycle"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
)

var (
	errInviteAlreadyResponded = apperrors.Conflict("invite already responded")
	errRoleAlreadyFilled      = apperrors.Conflict("role already has a confirmed musician")
	errGigNotOpen             = apperrors.Conflict("gig is not open for booking")
	errGigStarted             = apperrors.Conflict("gig has already started")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}

// transitionError maps lifecycle failures onto the API taxonomy.
func transitionError(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrStaleStatus), errors.Is(err, lifecycle.ErrInvalidTransition):
		return errInviteAlreadyResponded.WithInternal(err)
	default:
		return err
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
