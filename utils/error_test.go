package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestTypedErrorsMatchTheirKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"not found", NewNotFound("material", 7), ErrNotFound},
		{"not found legacy sentinel", NewNotFound("material", 7), ErrorRecordNotFound},
		{"insufficient", &InsufficientStockError{Pool: "material:1", Requested: decimal.NewFromInt(5), Available: decimal.NewFromInt(2)}, ErrInsufficientStock},
		{"invalid", NewInvalidInput("quantity", "must be positive"), ErrInvalidInput},
		{"consistency", NewConsistencyViolation("variant %d is not of material %d", 3, 1), ErrConsistencyViolation},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", tc.err)
		if !errors.Is(wrapped, tc.kind) {
			t.Fatalf("%s: expected errors.Is to match %v", tc.name, tc.kind)
		}
	}

	if errors.Is(NewInvalidInput("x", "y"), ErrNotFound) {
		t.Fatalf("invalid input must not match not found")
	}
}

func TestInsufficientStockShortfall(t *testing.T) {
	err := &InsufficientStockError{Pool: "material:1", Requested: decimal.NewFromInt(12), Available: decimal.RequireFromString("4.5")}
	if got := err.Shortfall().String(); got != "7.5" {
		t.Fatalf("expected shortfall 7.5, got %s", got)
	}
}

func TestNotFoundOr(t *testing.T) {
	err := NotFoundOr(gorm.ErrRecordNotFound, "product", 9)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Resource != "product" || nf.Id != 9 {
		t.Fatalf("expected NotFoundError for product 9, got %v", err)
	}
	other := errors.New("boom")
	if NotFoundOr(other, "product", 9) != other {
		t.Fatalf("expected other errors to pass through")
	}
}

func TestIsDuplicateKeyError(t *testing.T) {
	if !IsDuplicateKeyError(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})) {
		t.Fatalf("expected 1062 to be a duplicate key error")
	}
	if IsDuplicateKeyError(&mysql.MySQLError{Number: 1213}) {
		t.Fatalf("deadlock is not a duplicate key error")
	}
}

func TestCalculateDiscountAmount(t *testing.T) {
	cases := []struct {
		subTotal string
		discount string
		kind     string
		expected string
	}{
		{"4000", "10", "P", "400"},
		{"3000", "10", "P", "300"},
		{"4000", "250", "A", "250"},
		{"100", "250", "A", "100"},
		{"100", "0", "P", "0"},
		{"100", "-5", "A", "0"},
	}
	for _, tc := range cases {
		got := CalculateDiscountAmount(decimal.RequireFromString(tc.subTotal), decimal.RequireFromString(tc.discount), tc.kind)
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Fatalf("CalculateDiscountAmount(%s, %s, %s) expected %s, got %s", tc.subTotal, tc.discount, tc.kind, tc.expected, got)
		}
	}
}
