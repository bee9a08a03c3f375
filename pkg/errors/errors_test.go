package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "not found",
			err:        goerrors.New("part not found"),
			wantCode:   CodeNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "duplicate",
			err:        goerrors.New("part code already exists"),
			wantCode:   CodeConflict,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "insufficient capital",
			err:        goerrors.New("insufficient capital"),
			wantCode:   CodeInsufficientFunds,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "invalid transition",
			err:        goerrors.New("invalid status transition"),
			wantCode:   CodeInvalidTransition,
			wantStatus: http.StatusConflict,
		},
		{
			// A role rejection mentions "transition" in its message but
			// must still map to 403, not 409
			name:       "role rejection",
			err:        fmt.Errorf("%w: role manager cannot move order from draft to submitted", goerrors.New("permission denied for this transition")),
			wantCode:   CodeForbidden,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "validation",
			err:        goerrors.New("invalid quantity"),
			wantCode:   CodeValidationError,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown",
			err:        goerrors.New("something broke"),
			wantCode:   CodeInternalError,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := MapDomainError(tt.err)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.wantStatus, appErr.HTTPStatus)
		})
	}
}

func TestMapDomainErrorPassesThroughAppError(t *testing.T) {
	original := ErrForbidden("access denied")
	assert.Same(t, original, MapDomainError(original))
}
