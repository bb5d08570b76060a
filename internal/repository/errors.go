package repository

import (
	"errors"
	"net/http"

	"github.com/lib/pq"

	apperrors "github.com/vaidashi/restaurant-pos/pkg/errors"
)

var (
	ErrNotFound = apperrors.NewNotFoundError("record not found")
	ErrDatabase = apperrors.NewAppError(apperrors.ErrInternal, "database error", http.StatusInternalServerError, true)
	ErrConflict = apperrors.NewConflictError("record conflict")
)

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
