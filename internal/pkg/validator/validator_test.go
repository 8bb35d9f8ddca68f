package validator

import (
	"strings"
	"testing"
)

type sample struct {
	Email string `validate:"required,email"`
	Order int    `validate:"gte=1"`
}

func TestStruct(t *testing.T) {
	if err := Struct(sample{Email: "a@example.com", Order: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Struct(sample{Email: "nope", Order: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "sample.Email failed on email") {
		t.Errorf("missing email failure in %q", err.Error())
	}
	if !strings.Contains(err.Error(), "sample.Order failed on gte") {
		t.Errorf("missing order failure in %q", err.Error())
	}
}

func TestVar(t *testing.T) {
	if err := Var("x@example.com", "required,email"); err != nil {
		t.Errorf("Var() error = %v", err)
	}
	if err := Var("", "required"); err == nil {
		t.Error("expected error for empty required value")
	}
}
