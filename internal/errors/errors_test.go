package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/storefront/internal/errors"
)

func TestError_HTTPStatusCode(t *testing.T) {
	tests := map[string]struct {
		code errors.Code
		want int
	}{
		"invalid argument": {code: errors.CodeInvalidArgument, want: http.StatusBadRequest},
		"not found":        {code: errors.CodeNotFound, want: http.StatusNotFound},
		"unavailable":      {code: errors.CodeUnavailable, want: http.StatusServiceUnavailable},
		"data loss":        {code: errors.CodeDataLoss, want: http.StatusInternalServerError},
		"unmapped code":    {code: errors.Code(codes.ResourceExhausted), want: http.StatusInternalServerError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.New(tt.code).HTTPStatusCode())
		})
	}
}

func TestConvert(t *testing.T) {
	cause := stderrors.New("connection refused")

	t.Run("plain error becomes internal and keeps its cause", func(t *testing.T) {
		e := errors.Convert(cause)
		require.Equal(t, errors.CodeInternal, e.Code)
		require.ErrorIs(t, e, cause)
	})

	t.Run("wrapped *Error is found through the chain", func(t *testing.T) {
		wrapped := fmt.Errorf("save: %w", errors.Unavailable(cause))
		e := errors.Convert(wrapped)
		require.Equal(t, errors.CodeUnavailable, e.Code)
		require.ErrorIs(t, e, cause)
		require.True(t, errors.HasCode(wrapped, errors.CodeUnavailable))
		require.False(t, errors.HasCode(wrapped, errors.CodeDataLoss))
	})
}

func TestError_GRPCStatus(t *testing.T) {
	err := errors.InvalidArgument("user id is required")

	s, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, s.Code())
	assert.Equal(t, "user id is required", s.Message())
}
