package utils

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

// Error kinds. Match with errors.Is; the concrete types below carry the details.
var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConsistencyViolation = errors.New("consistency violation")
)

type NotFoundError struct {
	Resource string
	Id       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s #%d not found", e.Resource, e.Id)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == ErrorRecordNotFound
}

func NewNotFound(resource string, id int) error {
	return &NotFoundError{Resource: resource, Id: id}
}

// InsufficientStockError names the pool that could not cover a request.
type InsufficientStockError struct {
	Pool      string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock in %s: requested %s, available %s, short by %s",
		e.Pool, e.Requested.String(), e.Available.String(), e.Shortfall().String())
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func NewInvalidInput(field string, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return "consistency violation: " + e.Reason
}

func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistencyViolation
}

func NewConsistencyViolation(format string, args ...any) error {
	return &ConsistencyError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundOr maps gorm's not-found to a typed NotFoundError and passes anything else through.
func NotFoundOr(err error, resource string, id int) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFound(resource, id)
	}
	return err
}

// IsDuplicateKeyError reports a MySQL unique-index violation (1062).
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
