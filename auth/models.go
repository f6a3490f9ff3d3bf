package auth

import (
	stderrors "errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// MinPasswordLength minimum accepted password length
	MinPasswordLength = 8
	// DefaultPhoto profile picture assigned on signup
	DefaultPhoto = "default.jpg"
)

// User is the credential record. Secrets never leave the process
// through JSON.
type User struct {
	bun.BaseModel        `bun:"table:users,alias:usr"`
	ID                   uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name                 string     `bun:"name,notnull" json:"name"`
	Email                string     `bun:"email,notnull,unique" json:"email"`
	Photo                string     `bun:"photo" json:"photo,omitempty"`
	Role                 Role       `bun:"role,notnull" json:"role"`
	PasswordHash         string     `bun:"password_hash,notnull" json:"-"`
	PasswordChangedAt    *time.Time `bun:"password_changed_at,nullzero" json:"-"`
	PasswordResetToken   *string    `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetExpires *time.Time `bun:"password_reset_expires,nullzero" json:"-"`
	Active               bool       `bun:"active,notnull" json:"-"`
	CreatedAt            *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt            *time.Time `bun:"updated_at,nullzero" json:"updatedAt,omitempty"`
}

// NormalizeEmail trims and lowercases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsNew reports whether the record has not been persisted yet
func (u *User) IsNew() bool {
	return u.ID == uuid.Nil
}

// ChangedPasswordAfter reports whether the password changed after a token
// with the given issued-at was signed. Both sides are compared at second
// resolution, the precision tokens carry.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u == nil || u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// CorrectPassword compares a candidate against the stored hash
func (u *User) CorrectPassword(candidate string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return ComparePasswordAndHash(candidate, u.PasswordHash) == nil
}

// HasResetToken reports whether a reset is pending
func (u *User) HasResetToken() bool {
	return u.PasswordResetToken != nil && u.PasswordResetExpires != nil
}

// ClearResetToken drops both reset fields together
func (u *User) ClearResetToken() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
}

// PrepareForSave hashes a new plaintext password into the record. For
// records that already exist PasswordChangedAt is stamped at second
// resolution, the precision tokens carry.
func PrepareForSave(user *User, password string, now time.Time) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.Email = NormalizeEmail(user.Email)

	if !user.IsNew() {
		changed := now.Truncate(time.Second)
		user.PasswordChangedAt = &changed
	}

	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if !record.Role.IsValid() {
		record.Role = RoleUser
	}

	if record.Photo == "" {
		record.Photo = DefaultPhoto
	}

	record.Email = NormalizeEmail(record.Email)
	record.Active = true
}

func passwordRules(password, confirm *string) []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(password,
			validation.Required.Error("Please provide a password"),
			validation.Length(MinPasswordLength, 0).Error("Password must have at least 8 characters"),
		),
		validation.Field(confirm,
			validation.Required.Error("Please confirm your password"),
			validation.By(ValidateStringEquals(*password)),
		),
	}
}

// SignupPayload is the body accepted by signup
type SignupPayload struct {
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"passwordConfirm" form:"passwordConfirm"`
}

// Validate runs validation rules
func (r SignupPayload) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		rules := []*validation.FieldRules{
			validation.Field(&r.Name, validation.Required.Error("Please tell us your name!")),
			validation.Field(&r.Email, validation.Required.Error("Please provide your email"), is.EmailFormat),
		}
		return validation.ValidateStruct(&r, append(rules, passwordRules(&r.Password, &r.PasswordConfirm)...)...)
	}, "Invalid signup payload")
}

// LoginPayload is the body accepted by login
type LoginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ForgotPasswordPayload is the body accepted by forgotPassword
type ForgotPasswordPayload struct {
	Email string `json:"email" form:"email"`
}

// Validate runs validation rules
func (r ForgotPasswordPayload) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required.Error("Please provide your email"), is.EmailFormat),
		)
	}, "Invalid password reset request")
}

// ResetPasswordPayload is the body accepted by resetPassword
type ResetPasswordPayload struct {
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"passwordConfirm" form:"passwordConfirm"`
}

// Validate runs validation rules
func (r ResetPasswordPayload) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r, passwordRules(&r.Password, &r.PasswordConfirm)...)
	}, "Invalid password reset payload")
}

// UpdatePasswordPayload is the body accepted by updateMyPassword
type UpdatePasswordPayload struct {
	PasswordCurrent string `json:"passwordCurrent" form:"passwordCurrent"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"passwordConfirm" form:"passwordConfirm"`
}

// Validate runs validation rules
func (r UpdatePasswordPayload) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		rules := []*validation.FieldRules{
			validation.Field(&r.PasswordCurrent, validation.Required.Error("Please provide your current password")),
		}
		return validation.ValidateStruct(&r, append(rules, passwordRules(&r.Password, &r.PasswordConfirm)...)...)
	}, "Invalid password update payload")
}

// ErrPasswordNotAllowed updateMe only edits profile fields
var ErrPasswordNotAllowed = errors.New("This route is not for password updates. Please use /updateMyPassword.", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeValidationFailed)

// UpdateMePayload is the body accepted by updateMe. Password fields are
// only declared so they can be rejected.
type UpdateMePayload struct {
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Photo           string `json:"photo" form:"photo"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"passwordConfirm" form:"passwordConfirm"`
}

// Validate runs validation rules
func (r UpdateMePayload) Validate() *errors.Error {
	if r.Password != "" || r.PasswordConfirm != "" {
		return ErrPasswordNotAllowed.Clone()
	}
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, is.EmailFormat),
		)
	}, "Invalid profile payload")
}

// Apply copies the non empty fields onto user
func (r UpdateMePayload) Apply(user *User) {
	if name := strings.TrimSpace(r.Name); name != "" {
		user.Name = name
	}
	if r.Email != "" {
		user.Email = NormalizeEmail(r.Email)
	}
	if r.Photo != "" {
		user.Photo = r.Photo
	}
}

// UpdateUserPayload is the admin edit body. Passwords cannot be set here.
type UpdateUserPayload struct {
	Name  string `json:"name" form:"name"`
	Email string `json:"email" form:"email"`
	Photo string `json:"photo" form:"photo"`
	Role  string `json:"role" form:"role"`
}

// Validate runs validation rules
func (r UpdateUserPayload) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, is.EmailFormat),
			validation.Field(&r.Role, validation.By(func(value any) error {
				s, _ := value.(string)
				if s != "" && !Role(s).IsValid() {
					return stderrors.New("Role is either: user, guide, lead-guide, admin")
				}
				return nil
			})),
		)
	}, "Invalid user payload")
}

// Apply copies the non empty fields onto user
func (r UpdateUserPayload) Apply(user *User) {
	UpdateMePayload{Name: r.Name, Email: r.Email, Photo: r.Photo}.Apply(user)
	if r.Role != "" {
		user.Role = Role(r.Role)
	}
}

// ValidateStringEquals returns a rule that passes only for str
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return stderrors.New("Passwords are not the same!")
		}
		return nil
	}
}
