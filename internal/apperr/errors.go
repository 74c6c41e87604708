// Package apperr holds the business-rule failures shared by the ledger,
// budget, review and withdrawal components.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientBudget     = errors.New("insufficient creator budget")
	ErrBudgetExceeded         = errors.New("task budget exceeded")
	ErrTaskInactive           = errors.New("task is not active")
	ErrDuplicateSubmission    = errors.New("submission already exists for this task")
	ErrAlreadyApproved        = errors.New("submission already approved")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrBelowMinimumWithdrawal = errors.New("amount is below the minimum withdrawal")
	ErrBelowUsedBudget        = errors.New("new budget is below the coins already used")
	ErrInvalidPaymentMethod   = errors.New("unsupported payment method")
	ErrInvalidAmount          = errors.New("amount must be > 0")
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrValidation             = errors.New("validation failed")

	// ErrTaskExhausted is returned for a task that was closed by reaching
	// its budget or participant cap. It matches both ErrTaskInactive and
	// ErrBudgetExceeded.
	ErrTaskExhausted = fmt.Errorf("task budget exhausted: %w, %w", ErrTaskInactive, ErrBudgetExceeded)
)

// Postgres SQLSTATE codes that mean "run the transaction again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// HTTPStatus maps a business failure to a response code. Anything not in the
// taxonomy is an infrastructure failure and maps to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrInsufficientBudget):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrDuplicateSubmission),
		errors.Is(err, ErrAlreadyApproved),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrTaskInactive),
		errors.Is(err, ErrBudgetExceeded):
		return http.StatusConflict
	case errors.Is(err, ErrBelowMinimumWithdrawal),
		errors.Is(err, ErrBelowUsedBudget),
		errors.Is(err, ErrInvalidPaymentMethod),
		errors.Is(err, ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsBusiness reports whether err is one of the typed rule violations above.
// Those are never retried.
func IsBusiness(err error) bool {
	return err != nil && HTTPStatus(err) != http.StatusInternalServerError
}

// IsRetryable reports whether err is a transient storage conflict
// (serialization failure or deadlock) that a fresh transaction can clear.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports a duplicate key error from Postgres.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// FromNoRows turns pgx.ErrNoRows into ErrNotFound and passes everything else through.
func FromNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
