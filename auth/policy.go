package auth

// Authorize allows the action when user holds one of roles. It must run
// after the session was resolved, so user is always present.
func Authorize(user *User, roles ...Role) error {
	if user == nil {
		return ErrUnauthenticated.Clone()
	}

	for _, role := range roles {
		if user.Role == role {
			return nil
		}
	}

	return ErrForbidden.Clone().WithMetadata(map[string]any{
		"role":     user.Role,
		"required": roles,
	})
}
