package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrorInvalidArgument, http.StatusBadRequest},
		{common.ErrorFileNotFound, http.StatusNotFound},
		{common.ErrorNoVersions, http.StatusNotFound},
		{common.ErrorUnauthorized, http.StatusForbidden},
		{common.ErrorFileDeleted, http.StatusGone},
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.ErrorAuthenticationFailure, http.StatusInternalServerError},
		{common.ErrorChecksumMismatch, http.StatusInternalServerError},
		{common.ErrorKeyNotFound, http.StatusInternalServerError},
		{common.ErrorInvalidNonce, http.StatusInternalServerError},
		{common.ErrorIOFailure, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("%w: %w", common.ErrorIOFailure, &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge},
		{fmt.Errorf("wrapped: %w", common.ErrorFileDeleted), http.StatusGone},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
