package authcore_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meridianpay/authcore"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want authcore.Kind
	}{
		{authcore.ErrInvalidInput, authcore.KindValidation},
		{authcore.ErrWeakPassword, authcore.KindValidation},
		{authcore.ErrInvalidCredentials, authcore.KindAuthentication},
		{authcore.ErrCodeExpired, authcore.KindAuthentication},
		{authcore.ErrCodeMismatch, authcore.KindAuthentication},
		{authcore.ErrTokenInvalid, authcore.KindAuthentication},
		{authcore.ErrTokenExpired, authcore.KindAuthentication},
		{authcore.ErrSessionRevoked, authcore.KindAuthentication},
		{authcore.ErrAccountUnverified, authcore.KindAuthorization},
		{authcore.ErrAccountDisabled, authcore.KindAuthorization},
		{authcore.ErrPermissionDenied, authcore.KindAuthorization},
		{authcore.ErrAccountExists, authcore.KindConflict},
		{authcore.ErrRateLimited, authcore.KindRateLimited},
		{authcore.ErrCodeNotFound, authcore.KindNotFound},
		{authcore.ErrSessionNotFound, authcore.KindNotFound},
		{authcore.ErrAccountNotFound, authcore.KindNotFound},
		{authcore.ErrRefreshReuse, authcore.KindSecurityEvent},
		{authcore.ErrStoreUnavailable, authcore.KindInternal},
		{errors.New("anything else"), authcore.KindInternal},
		{nil, authcore.KindInternal},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, authcore.KindOf(tc.err), "%v", tc.err)
	}
}

func TestKindOfSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: detail for logs", authcore.ErrWeakPassword)
	assert.Equal(t, authcore.KindValidation, authcore.KindOf(wrapped))
}

func TestRateLimitErrorCarriesRetryAfter(t *testing.T) {
	err := error(&authcore.RateLimitError{RetryAfter: 42 * time.Second})

	assert.ErrorIs(t, err, authcore.ErrRateLimited)
	assert.Equal(t, authcore.KindRateLimited, authcore.KindOf(err))
	assert.Equal(t, 42*time.Second, authcore.RetryAfter(err))

	assert.Zero(t, authcore.RetryAfter(authcore.ErrRateLimited))
	assert.Zero(t, authcore.RetryAfter(nil))
}
