package devdata

import (
	"embed"
	"encoding/json"
	"io/fs"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/tours"
	"github.com/google/uuid"
)

//go:embed data/*.json
var fixturesFS embed.FS

// GetFixturesFS returns the embedded fixture files
func GetFixturesFS() fs.FS {
	sub, err := fs.Sub(fixturesFS, "data")
	if err != nil {
		panic(err)
	}
	return sub
}

// User is a fixture user. Password is plaintext and gets hashed on import.
type User struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     auth.Role `json:"role"`
	Photo    string    `json:"photo"`
	Password string    `json:"password"`
}

// Review references its tour and author by id
type Review struct {
	Review string    `json:"review"`
	Rating int       `json:"rating"`
	Tour   uuid.UUID `json:"tour"`
	User   uuid.UUID `json:"user"`
}

// Dataset is everything the importer loads
type Dataset struct {
	Tours   []*tours.Tour
	Users   []User
	Reviews []Review
}

// Load reads the embedded fixtures
func Load() (*Dataset, error) {
	return LoadFS(GetFixturesFS())
}

// LoadFS reads tours.json, users.json and reviews.json from fsys
func LoadFS(fsys fs.FS) (*Dataset, error) {
	data := &Dataset{}

	if err := readJSON(fsys, "tours.json", &data.Tours); err != nil {
		return nil, err
	}

	if err := readJSON(fsys, "users.json", &data.Users); err != nil {
		return nil, err
	}

	if err := readJSON(fsys, "reviews.json", &data.Reviews); err != nil {
		return nil, err
	}

	return data, nil
}

func readJSON(fsys fs.FS, name string, out any) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to read fixture file").
			WithMetadata(map[string]any{"file": name})
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "failed to decode fixture file").
			WithMetadata(map[string]any{"file": name})
	}

	return nil
}
