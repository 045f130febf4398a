// Package businessflow contains the core business logic and use cases for catalog ingestion workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Raw record errors
	ErrRawRecordNotFound = errors.New("raw record not found")
	ErrEmptyBody         = errors.New("snapshot body is empty")
	ErrInvalidSource     = errors.New("invalid source name")

	// Product resolution errors
	ErrProductNotFound  = errors.New("product not found")
	ErrProductMerged    = errors.New("product was merged into another product")
	ErrSameProduct      = errors.New("survivor and loser are the same product")
	ErrEmptyProductCode = errors.New("normalized product code is empty")

	// Performer resolution errors
	ErrInvalidPerformerName = errors.New("performer name failed validation")
	ErrAmbiguousPerformer   = errors.New("performer name matches multiple identities")

	// Ingestion errors
	ErrUnknownSource       = errors.New("no client registered for source")
	ErrBatchAlreadyRunning = errors.New("an ingestion batch for this source is already running")

	// Review flag errors
	ErrReviewFlagNotFound        = errors.New("review flag not found")
	ErrReviewFlagAlreadyResolved = errors.New("review flag is already resolved")

	// Operator errors
	ErrOperatorNotFound  = errors.New("operator not found")
	ErrAccountInactive   = errors.New("account is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsRawRecordNotFound(err error) bool {
	return errors.Is(err, ErrRawRecordNotFound)
}

func IsEmptyBody(err error) bool {
	return errors.Is(err, ErrEmptyBody)
}

func IsInvalidSource(err error) bool {
	return errors.Is(err, ErrInvalidSource)
}

func IsProductNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}

func IsProductMerged(err error) bool {
	return errors.Is(err, ErrProductMerged)
}

func IsSameProduct(err error) bool {
	return errors.Is(err, ErrSameProduct)
}

func IsEmptyProductCode(err error) bool {
	return errors.Is(err, ErrEmptyProductCode)
}

func IsInvalidPerformerName(err error) bool {
	return errors.Is(err, ErrInvalidPerformerName)
}

func IsAmbiguousPerformer(err error) bool {
	return errors.Is(err, ErrAmbiguousPerformer)
}

func IsUnknownSource(err error) bool {
	return errors.Is(err, ErrUnknownSource)
}

func IsBatchAlreadyRunning(err error) bool {
	return errors.Is(err, ErrBatchAlreadyRunning)
}

func IsReviewFlagNotFound(err error) bool {
	return errors.Is(err, ErrReviewFlagNotFound)
}

func IsReviewFlagAlreadyResolved(err error) bool {
	return errors.Is(err, ErrReviewFlagAlreadyResolved)
}

func IsOperatorNotFound(err error) bool {
	return errors.Is(err, ErrOperatorNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
