// Package auth implements authentication and authorization for the tours API.
//
// It covers:
//   - signed session tokens (TokenService) carried in an Authorization
//     header or the jwt cookie
//   - session resolution with rejection of tokens issued before the last
//     password change (SessionResolver)
//   - role based access checks (Authorize, RestrictTo)
//   - the password reset lifecycle and authenticated password changes
//   - the /api/v1/users HTTP controller
//
// Users are persisted with bun through go-repository-bun. Passwords are only
// ever stored as bcrypt hashes and reset tokens only as sha256 digests.
package auth
