package auth

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the credential store. Every finder skips inactive users.
type Users interface {
	repository.Repository[*User]

	GetActiveByID(ctx context.Context, id string) (*User, error)
	GetActiveByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error)
	GetActiveByEmail(ctx context.Context, email string) (*User, error)
	GetActiveByResetToken(ctx context.Context, digest string, now time.Time) (*User, error)
	GetActiveByResetTokenTx(ctx context.Context, tx bun.IDB, digest string, now time.Time) (*User, error)
	ListActive(ctx context.Context) ([]*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	SaveResetToken(ctx context.Context, user *User) error
	SavePassword(ctx context.Context, user *User) error
	SavePasswordTx(ctx context.Context, tx bun.IDB, user *User) error
	UpdateProfile(ctx context.Context, user *User) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Remove(ctx context.Context, id uuid.UUID) error
	RemoveAll(ctx context.Context) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository returns a bun backed credential store
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

// recordNotFound keeps repository.IsRecordNotFound and errors.IsNotFound
// both true for store misses.
func recordNotFound() *errors.Error {
	return errors.Wrap(repository.ErrRecordNotFound, errors.CategoryNotFound, "record not found")
}

func activeOnly(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.active = ?", true)
}

func (a *users) GetActiveByID(ctx context.Context, id string) (*User, error) {
	return a.GetActiveByIDTx(ctx, a.db, id)
}

func (a *users) GetActiveByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, recordNotFound().
			WithMetadata(map[string]any{"id": id})
	}

	return a.findOne(ctx, tx, map[string]any{"id": id}, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", uid)
	})
}

func (a *users) GetActiveByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	return a.findOne(ctx, a.db, map[string]any{"email": email}, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", email)
	})
}

func (a *users) GetActiveByResetToken(ctx context.Context, digest string, now time.Time) (*User, error) {
	return a.GetActiveByResetTokenTx(ctx, a.db, digest, now)
}

func (a *users) GetActiveByResetTokenTx(ctx context.Context, tx bun.IDB, digest string, now time.Time) (*User, error) {
	return a.findOne(ctx, tx, map[string]any{"reset_token": "[redacted]"}, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.password_reset_token = ?", digest).
			Where("?TableAlias.password_reset_expires > ?", now)
	})
}

func (a *users) findOne(ctx context.Context, tx bun.IDB, meta map[string]any, criteria ...repository.SelectCriteria) (*User, error) {
	record := &User{}
	q := tx.NewSelect().Model(record)
	q = activeOnly(q)
	for _, c := range criteria {
		q = c(q)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, recordNotFound().WithMetadata(meta)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to query users")
	}

	return record, nil
}

func (a *users) ListActive(ctx context.Context) ([]*User, error) {
	records := []*User{}
	err := activeOnly(a.db.NewSelect().Model(&records)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list users")
	}
	return records, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx inserts a new user. The password must already be hashed
// with PrepareForSave.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	exists, err := tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", user.Email).
		Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check email uniqueness")
	}
	if exists {
		return nil, ErrEmailTaken.Clone().WithMetadata(map[string]any{"email": user.Email})
	}

	now := time.Now()
	user.CreatedAt = &now

	if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to insert user")
	}

	return user, nil
}

// SaveResetToken writes only the reset columns. The rest of the record
// is not revalidated or rewritten.
func (a *users) SaveResetToken(ctx context.Context, user *User) error {
	_, err := a.db.NewUpdate().
		Model(user).
		Column("password_reset_token", "password_reset_expires").
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to store password reset token")
	}
	return nil
}

func (a *users) SavePassword(ctx context.Context, user *User) error {
	return a.SavePasswordTx(ctx, a.db, user)
}

// SavePasswordTx persists the hash, change timestamp and reset columns.
func (a *users) SavePasswordTx(ctx context.Context, tx bun.IDB, user *User) error {
	now := time.Now()
	user.UpdatedAt = &now

	res, err := tx.NewUpdate().
		Model(user).
		Column("password_hash", "password_changed_at", "password_reset_token", "password_reset_expires", "updated_at").
		WherePK().
		Where("?TableAlias.active = ?", true).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update password")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return recordNotFound().
			WithMetadata(map[string]any{"id": user.ID.String()})
	}

	return nil
}

func (a *users) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("active = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to deactivate user")
	}
	return nil
}

// UpdateProfile writes the fields a user or an admin may edit.
func (a *users) UpdateProfile(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)

	taken, err := a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", user.Email).
		Where("?TableAlias.id != ?", user.ID).
		Exists(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to check email uniqueness")
	}
	if taken {
		return ErrEmailTaken.Clone().WithMetadata(map[string]any{"email": user.Email})
	}

	now := time.Now()
	user.UpdatedAt = &now

	res, err := a.db.NewUpdate().
		Model(user).
		Column("name", "email", "photo", "role", "updated_at").
		WherePK().
		Where("?TableAlias.active = ?", true).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update user")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return recordNotFound().
			WithMetadata(map[string]any{"id": user.ID.String()})
	}
	return nil
}

// Remove hard deletes the user. Reviews go with it.
func (a *users) Remove(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete user")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return recordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}
	return nil
}

// RemoveAll deletes every user, active or not. Used by the dev data loader.
func (a *users) RemoveAll(ctx context.Context) error {
	if _, err := a.db.NewDelete().Model((*User)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete users")
	}
	return nil
}
