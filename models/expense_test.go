package models

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/utils"
)

func TestNewExpenseValidate(t *testing.T) {
	cases := []struct {
		input NewExpense
		ok    bool
	}{
		{NewExpense{Name: "Rent", Amount: dec("1500000")}, true},
		{NewExpense{Name: " ", Amount: dec("10")}, false},
		{NewExpense{Name: "Power", Amount: dec("0")}, false},
		{NewExpense{Name: "Power", Amount: dec("-5")}, false},
	}
	for i, tc := range cases {
		err := tc.input.validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d: unexpected error %v", i, err)
		}
		if !tc.ok && !errors.Is(err, utils.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}

func TestMonthStart(t *testing.T) {
	got := MonthStart(time.Date(2024, 2, 29, 17, 30, 0, 0, time.UTC))
	if want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("MonthStart = %s, want %s", got, want)
	}
	if next := got.AddDate(0, 1, 0); next.Month() != time.March || next.Day() != 1 {
		t.Fatalf("next month start = %s", next)
	}
}
