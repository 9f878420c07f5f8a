package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorErrorIncludesInternal(t *testing.T) {
	base := New("LOAN_CONFLICT", "loan is not pending", http.StatusConflict)
	require.Equal(t, "loan is not pending", base.Error())

	wrapped := base.WithInternal(errors.New("row locked"))
	require.Equal(t, "loan is not pending: row locked", wrapped.Error())
	require.Equal(t, base.Code, wrapped.Code)
	// The original must not be mutated.
	require.Nil(t, base.Internal)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := NewConflict("BORROW_DUPLICATE", "duplicate request")
	require.Same(t, appErr, FromError(appErr))

	plain := errors.New("disk full")
	converted := FromError(plain)
	require.Equal(t, ErrInternalServer.Code, converted.Code)
	require.ErrorIs(t, converted, plain)
}

func TestFromErrorUnwrapsNestedAppError(t *testing.T) {
	inner := NewBadRequest("quantity must not be negative")
	wrapped := ErrInternalServer.WithInternal(inner)

	converted := FromError(wrapped)
	require.Equal(t, ErrInternalServer.Code, converted.Code)

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
}

func TestNewConflictStatus(t *testing.T) {
	err := NewConflict("PRODUCT_UNAVAILABLE", "item is not available")
	require.Equal(t, http.StatusConflict, err.StatusCode)
	require.Equal(t, "PRODUCT_UNAVAILABLE", err.Code)
}
