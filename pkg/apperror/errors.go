package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error with a stable code callers can branch on.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf extracts the stable code from an error, or "" if it is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Validation (VAL) ----

func ErrInvalidAmount() *AppError {
	return New("INVALID_AMOUNT", "Amount must be positive and within currency precision", http.StatusBadRequest)
}

// ---- Authorization (AUTH) ----

func ErrInvalidPin() *AppError {
	return New("INVALID_PIN", "Transfer PIN does not match", http.StatusUnauthorized)
}

func ErrInvalidPinFormat() *AppError {
	return New("INVALID_PIN_FORMAT", "Transfer PIN must be 4-6 digits", http.StatusBadRequest)
}

func ErrPinThrottled() *AppError {
	return New("PIN_THROTTLED", "Too many transfer PIN attempts, try again later", http.StatusTooManyRequests)
}

// ---- Not Found (NF) ----

func ErrRecipientNotFound() *AppError {
	return New("RECIPIENT_NOT_FOUND", "Recipient not found", http.StatusNotFound)
}

func ErrWalletNotFound() *AppError {
	return New("WALLET_NOT_FOUND", "Wallet not found", http.StatusNotFound)
}

func ErrUserNotFound() *AppError {
	return New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
}

func ErrChallengeNotFound() *AppError {
	return New("CHALLENGE_NOT_FOUND", "Challenge not found", http.StatusNotFound)
}

// ---- Transfer Business Logic (PAY) ----

func ErrSelfTransfer() *AppError {
	return New("SELF_TRANSFER", "Sender and recipient must differ", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("INSUFFICIENT_FUNDS", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrTransferAborted(err error) *AppError {
	return Wrap("TRANSFER_ABORTED", "Transfer could not be committed", http.StatusInternalServerError, err)
}

// ---- Challenge State (OTP) ----

func ErrChallengeExpired() *AppError {
	return New("CHALLENGE_EXPIRED", "Challenge has expired", http.StatusConflict)
}

func ErrChallengeLocked() *AppError {
	return New("CHALLENGE_LOCKED", "Challenge is locked after too many failed attempts", http.StatusConflict)
}

func ErrChallengeConsumed() *AppError {
	return New("CHALLENGE_CONSUMED", "Challenge has already been verified", http.StatusConflict)
}

func ErrCodeMismatch(attemptsLeft int) *AppError {
	return New("CODE_MISMATCH", fmt.Sprintf("Incorrect code, %d attempt(s) remaining", attemptsLeft), http.StatusUnauthorized)
}

func ErrDeliveryFailed(err error) *AppError {
	return Wrap("DELIVERY_FAILED", "Could not deliver one-time code", http.StatusBadGateway, err)
}

func ErrResendThrottled() *AppError {
	return New("RESEND_THROTTLED", "Code was re-sent too recently", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
