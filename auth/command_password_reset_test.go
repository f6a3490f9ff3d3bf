package auth_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-tours/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) requestReset(email string) error {
	return auth.NewInitializePasswordResetHandler(f.repo, f.notifier, f.cfg).
		WithLogger(quietLogger{}).
		WithClock(f.clock.Now).
		Execute(context.Background(), auth.InitializePasswordResetMessage{Email: email})
}

func (f *fixture) redeem(token, password string) (*auth.SessionResponse, error) {
	var session *auth.SessionResponse
	err := auth.NewFinalizePasswordResetHandler(f.repo, f.tokens).
		WithLogger(quietLogger{}).
		WithClock(f.clock.Now).
		Execute(context.Background(), auth.FinalizePasswordResetMessage{
			Token: token,
			Payload: auth.ResetPasswordPayload{
				Password:        password,
				PasswordConfirm: password,
			},
			OnResponse: func(resp *auth.SessionResponse) { session = resp },
		})
	return session, err
}

func tokenFromURL(t *testing.T, url string) string {
	t.Helper()
	idx := strings.LastIndex(url, auth.ResetPasswordPath)
	require.GreaterOrEqual(t, idx, 0, url)
	return url[idx+len(auth.ResetPasswordPath):]
}

func TestPasswordReset_Request(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "Alice", "alice@x.com", "secret123")

	require.NoError(t, f.requestReset("ALICE@x.com"))

	mail, ok := f.notifier.last("reset")
	require.True(t, ok)
	assert.Equal(t, "alice@x.com", mail.to)
	assert.True(t, strings.HasPrefix(mail.url, "http://localhost:3000/api/v1/users/resetPassword/"), mail.url)

	plain := tokenFromURL(t, mail.url)
	assert.Len(t, plain, 64)

	stored, err := f.repo.Users().GetActiveByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordResetToken)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.Equal(t, auth.HashResetToken(plain), *stored.PasswordResetToken, "only the digest is stored")
	assert.NotEqual(t, plain, *stored.PasswordResetToken)
	assert.WithinDuration(t, f.clock.Now().Add(10*time.Minute), *stored.PasswordResetExpires, time.Second)
}

func TestPasswordReset_UnknownEmailLooksLikeSuccess(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.requestReset("nobody@x.com"))

	_, sent := f.notifier.last("reset")
	assert.False(t, sent)
}

func TestPasswordReset_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	err := f.requestReset("not-an-email")
	require.Error(t, err)
	assert.Equal(t, 400, auth.ToRichError(err).Code)
}

func TestPasswordReset_DeliveryFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "Alice", "alice@x.com", "secret123")
	f.notifier.resetErr = stderrors.New("smtp down")

	err := f.requestReset("alice@x.com")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeDeliveryFailed))
	assert.Equal(t, 500, auth.ToRichError(err).Code)

	stored, err := f.repo.Users().GetActiveByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.Nil(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestPasswordReset_RedeemOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.signup(t, "Alice", "alice@x.com", "secret123")

	require.NoError(t, f.requestReset("alice@x.com"))
	mail, _ := f.notifier.last("reset")
	plain := tokenFromURL(t, mail.url)

	f.clock.Advance(2 * time.Minute)

	session, err := f.redeem(plain, "newpass123")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.Token)

	stored, err := f.repo.Users().GetActiveByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Nil(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
	assert.True(t, stored.CorrectPassword("newpass123"))
	assert.False(t, stored.CorrectPassword("secret123"))

	// old sessions are gone, the new one works
	_, err = f.resolver.ResolveToken(ctx, old.Token)
	assert.True(t, auth.HasTextCode(err, auth.TextCodePasswordChanged))
	_, err = f.resolver.ResolveToken(ctx, session.Token)
	assert.NoError(t, err)

	_, err = f.redeem(plain, "another123")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidOrExpired))
}

func TestPasswordReset_Expired(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "Alice", "alice@x.com", "secret123")

	require.NoError(t, f.requestReset("alice@x.com"))
	mail, _ := f.notifier.last("reset")

	f.clock.Advance(11 * time.Minute)

	_, err := f.redeem(tokenFromURL(t, mail.url), "newpass123")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidOrExpired))
	assert.Equal(t, 400, auth.ToRichError(err).Code)

	stored, err := f.repo.Users().GetActiveByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.True(t, stored.CorrectPassword("secret123"), "password unchanged")
}

func TestPasswordReset_NewestTokenWins(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "Alice", "alice@x.com", "secret123")

	require.NoError(t, f.requestReset("alice@x.com"))
	first, _ := f.notifier.last("reset")

	require.NoError(t, f.requestReset("alice@x.com"))
	second, _ := f.notifier.last("reset")
	require.NotEqual(t, first.url, second.url)

	_, err := f.redeem(tokenFromURL(t, first.url), "newpass123")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidOrExpired))

	_, err = f.redeem(tokenFromURL(t, second.url), "newpass123")
	assert.NoError(t, err)
}

func TestPasswordReset_RedeemValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.redeem("", "newpass123")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidOrExpired))

	_, err = f.redeem("whatever", "short")
	require.Error(t, err)
	assert.Equal(t, 400, auth.ToRichError(err).Code)
}
