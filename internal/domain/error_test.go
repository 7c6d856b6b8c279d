package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "message only",
			err: &Error{
				Code:    EINVALID,
				Message: "invalid quantity",
			},
			expected: "invalid quantity",
		},
		{
			name: "with operation",
			err: &Error{
				Code:    EINVALID,
				Op:      "cart.add",
				Message: "invalid quantity",
			},
			expected: "cart.add: invalid quantity",
		},
		{
			name: "with wrapped error",
			err: &Error{
				Code:    EUNAVAILABLE,
				Op:      "cart.remove",
				Message: "could not update your cart",
				Err:     errors.New("connection refused"),
			},
			expected: "cart.remove: could not update your cart: connection refused",
		},
		{
			name: "wrapped error without op",
			err: &Error{
				Code:    EINTERNAL,
				Message: "failed to record order",
				Err:     errors.New("connection refused"),
			},
			expected: "failed to record order: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &Error{
		Code:    EINTERNAL,
		Message: "wrapped",
		Err:     underlying,
	}

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Error.Unwrap() = %v, want %v", unwrapped, underlying)
	}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find underlying error")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "domain error",
			err:      &Error{Code: EPAYMENT, Message: "test"},
			expected: EPAYMENT,
		},
		{
			name:     "wrapped domain error",
			err:      fmt.Errorf("failed to remove line: %w", ErrLineNotFound),
			expected: ENOTFOUND,
		},
		{
			name:     "non-domain error",
			err:      errors.New("some error"),
			expected: EINTERNAL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "domain error with message",
			err:      &Error{Code: EINVALID, Message: "Quantity must be greater than 0"},
			expected: "Quantity must be greater than 0",
		},
		{
			name:     "internal error hides message",
			err:      &Error{Code: EINTERNAL, Message: "backend connection string leaked"},
			expected: "An internal error occurred. Please try again later.",
		},
		{
			name:     "non-domain error returns generic message",
			err:      errors.New("some internal detail"),
			expected: "An internal error occurred. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.expected {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorOp(t *testing.T) {
	withOp := &Error{Code: EINVALID, Op: "checkout.advance", Message: "test"}
	if got := ErrorOp(withOp); got != "checkout.advance" {
		t.Errorf("ErrorOp() = %q, want %q", got, "checkout.advance")
	}
	if got := ErrorOp(errors.New("test")); got != "" {
		t.Errorf("ErrorOp() = %q, want empty", got)
	}
	if got := ErrorOp(nil); got != "" {
		t.Errorf("ErrorOp(nil) = %q, want empty", got)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(EINVALID, "cart.add", "invalid quantity: %d", -2)

	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatal("Errorf should return *Error")
	}

	if domainErr.Code != EINVALID {
		t.Errorf("Code = %q, want %q", domainErr.Code, EINVALID)
	}

	if domainErr.Op != "cart.add" {
		t.Errorf("Op = %q, want %q", domainErr.Op, "cart.add")
	}

	if domainErr.Message != "invalid quantity: -2" {
		t.Errorf("Message = %q, want %q", domainErr.Message, "invalid quantity: -2")
	}
}

func TestWrapError(t *testing.T) {
	t.Run("wraps non-nil error", func(t *testing.T) {
		underlying := errors.New("backend error")
		err := WrapError(underlying, EUNAVAILABLE, "cart.load", "could not load your cart")

		var domainErr *Error
		if !errors.As(err, &domainErr) {
			t.Fatal("WrapError should return *Error")
		}

		if domainErr.Code != EUNAVAILABLE {
			t.Errorf("Code = %q, want %q", domainErr.Code, EUNAVAILABLE)
		}

		if !errors.Is(err, underlying) {
			t.Error("should wrap underlying error")
		}
	})

	t.Run("returns nil for nil error", func(t *testing.T) {
		err := WrapError(nil, EINTERNAL, "test", "test")
		if err != nil {
			t.Errorf("WrapError(nil) should return nil, got %v", err)
		}
	})
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		expected bool
	}{
		{
			name:     "matching code",
			err:      ErrOrderNotFound,
			code:     ENOTFOUND,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      ErrCartEmpty,
			code:     ENOTFOUND,
			expected: false,
		},
		{
			name:     "non-domain error matches EINTERNAL",
			err:      errors.New("test"),
			code:     EINTERNAL,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.expected {
				t.Errorf("IsCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single field error", func(t *testing.T) {
		err := NewValidationError("checkout.shipping", "email", "Must be a valid email address")

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatal("NewValidationError should return *ValidationError")
		}

		if ve.Op != "checkout.shipping" {
			t.Errorf("Op = %q, want %q", ve.Op, "checkout.shipping")
		}

		expected := "checkout.shipping: email: Must be a valid email address"
		if ve.Error() != expected {
			t.Errorf("Error() = %q, want %q", ve.Error(), expected)
		}
	})

	t.Run("multiple field errors", func(t *testing.T) {
		err := NewValidationError("checkout.shipping", "email", "This field is required")
		err = AddFieldError(err, "city", "This field is required")

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatal("should be ValidationError")
		}

		if len(ve.Fields) != 2 {
			t.Errorf("Fields count = %d, want 2", len(ve.Fields))
		}
	})

	t.Run("add field to nil error", func(t *testing.T) {
		err := AddFieldError(nil, "postal_code", "This field is required")

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatal("AddFieldError(nil) should return *ValidationError")
		}

		if len(ve.Fields) != 1 {
			t.Errorf("Fields count = %d, want 1", len(ve.Fields))
		}
	})
}

func TestGetValidationFields(t *testing.T) {
	t.Run("validation error", func(t *testing.T) {
		err := NewValidationError("checkout.shipping", "full_name", "This field is required")
		fields := GetValidationFields(err)

		if fields == nil {
			t.Fatal("GetValidationFields should return fields map")
		}

		if fields["full_name"] != "This field is required" {
			t.Errorf("fields[full_name] = %q, want %q", fields["full_name"], "This field is required")
		}
	})

	t.Run("plain domain error", func(t *testing.T) {
		if fields := GetValidationFields(ErrCartEmpty); fields != nil {
			t.Error("GetValidationFields should return nil for a plain domain error")
		}
	})

	t.Run("non-domain error", func(t *testing.T) {
		if fields := GetValidationFields(errors.New("test")); fields != nil {
			t.Error("GetValidationFields should return nil for non-validation error")
		}
	})
}

func TestConvenienceFunctions(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		err := NotFound("cart.remove", "cart line", "prod_123")
		if ErrorCode(err) != ENOTFOUND {
			t.Errorf("NotFound code = %q, want %q", ErrorCode(err), ENOTFOUND)
		}
		if ErrorMessage(err) != "cart line not found: prod_123" {
			t.Errorf("NotFound message = %q", ErrorMessage(err))
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		err := Invalid("checkout.start", "cart is empty")
		if ErrorCode(err) != EINVALID {
			t.Errorf("Invalid code = %q, want %q", ErrorCode(err), EINVALID)
		}
	})

	t.Run("Conflict", func(t *testing.T) {
		err := Conflict("payment.start", "a payment is already in progress")
		if ErrorCode(err) != ECONFLICT {
			t.Errorf("Conflict code = %q, want %q", ErrorCode(err), ECONFLICT)
		}
	})

	t.Run("Unavailable", func(t *testing.T) {
		underlying := errors.New("connection refused")
		err := Unavailable(underlying, "cart.load", "could not load your cart")

		if ErrorCode(err) != EUNAVAILABLE {
			t.Errorf("Unavailable code = %q, want %q", ErrorCode(err), EUNAVAILABLE)
		}
		if !errors.Is(err, underlying) {
			t.Error("Unavailable should wrap underlying error")
		}
		// Retryable errors keep their message
		if ErrorMessage(err) != "could not load your cart" {
			t.Errorf("Unavailable message = %q", ErrorMessage(err))
		}
	})

	t.Run("Internal", func(t *testing.T) {
		underlying := errors.New("backend error")
		err := Internal(underlying, "order.create", "failed to record order")

		if ErrorCode(err) != EINTERNAL {
			t.Errorf("Internal code = %q, want %q", ErrorCode(err), EINTERNAL)
		}

		if !errors.Is(err, underlying) {
			t.Error("Internal should wrap underlying error")
		}

		msg := ErrorMessage(err)
		if msg != "An internal error occurred. Please try again later." {
			t.Errorf("Internal message should be hidden, got %q", msg)
		}
	})
}

func TestPreDefinedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"ErrCartNotFound", ErrCartNotFound, ENOTFOUND},
		{"ErrLineNotFound", ErrLineNotFound, ENOTFOUND},
		{"ErrInvalidQuantity", ErrInvalidQuantity, EINVALID},
		{"ErrCartEmpty", ErrCartEmpty, EINVALID},
		{"ErrOrderNotFound", ErrOrderNotFound, ENOTFOUND},
		{"ErrPaymentNotSucceeded", ErrPaymentNotSucceeded, EPAYMENT},
		{"ErrPaymentAlreadyProcessed", ErrPaymentAlreadyProcessed, ECONFLICT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}
