package auth_test

import (
	"testing"

	"github.com/goliatone/go-tours/auth"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	guide := &auth.User{Role: auth.RoleGuide}
	admin := &auth.User{Role: auth.RoleAdmin}

	err := auth.Authorize(guide, auth.RoleAdmin)
	assert.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeForbidden))

	assert.NoError(t, auth.Authorize(admin, auth.RoleAdmin))
	assert.NoError(t, auth.Authorize(guide, auth.RoleAdmin, auth.RoleLeadGuide, auth.RoleGuide))

	err = auth.Authorize(nil, auth.RoleAdmin)
	assert.True(t, auth.IsUnauthenticated(err))
}

func TestAuthorize_ForbiddenStatus(t *testing.T) {
	err := auth.Authorize(&auth.User{Role: auth.RoleUser}, auth.RoleAdmin)
	rich := auth.ToRichError(err)
	assert.Equal(t, 403, rich.Code)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, auth.RoleLeadGuide, auth.ParseRole("lead-guide"))
	assert.Equal(t, auth.RoleUser, auth.ParseRole(""))
	assert.Equal(t, auth.RoleUser, auth.ParseRole("superuser"))
	assert.Len(t, auth.Roles, 4)
}
