package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/store"
)

// Profile is the signup form.
type Profile struct {
	ID           string
	Name         string
	Email        string
	Gender       string
	Sexuality    string
	DateOfBirth  string
	PhotoURL     string
	PromptAnswer string
}

// NormalizeSexuality maps case-insensitive input to a known value.
// Empty input defaults to Straight.
func NormalizeSexuality(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "straight":
		return db.SexualityStraight, nil
	case "gay":
		return db.SexualityGay, nil
	case "lesbian":
		return db.SexualityLesbian, nil
	case "bisexual":
		return db.SexualityBisexual, nil
	}
	return "", fmt.Errorf("%w: unknown sexuality %q", ErrInvalidUser, v)
}

// Register creates the profile with every counter zeroed.
func (s *Service) Register(ctx context.Context, p Profile) (*db.User, error) {
	if err := db.ValidateKeyPart(p.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	sexuality, err := NormalizeSexuality(p.Sexuality)
	if err != nil {
		return nil, err
	}

	var out *db.User
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		u := &db.User{Doc: db.Doc{ID: p.ID}}
		found, err := tx.Get(ctx, u)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", ErrUserExists, p.ID)
		}
		*u = db.User{
			Doc:            db.Doc{ID: p.ID},
			Name:           strings.TrimSpace(p.Name),
			Email:          strings.ToLower(strings.TrimSpace(p.Email)),
			Gender:         strings.ToLower(strings.TrimSpace(p.Gender)),
			Sexuality:      sexuality,
			DateOfBirth:    p.DateOfBirth,
			PhotoURL:       p.PhotoURL,
			PromptAnswer:   p.PromptAnswer,
			Level:          1,
			BlockedUserIDs: db.StringSet{},
			CreatedAt:      tx.Now(),
			UpdatedAt:      tx.Now(),
		}
		out = u
		return tx.Set(u)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePushToken stores the opaque notification address.
func (s *Service) UpdatePushToken(ctx context.Context, uid, token string) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		u := &db.User{Doc: db.Doc{ID: uid}}
		found, err := tx.Get(ctx, u)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrUserNotFound, uid)
		}
		if u.PushToken == token {
			return nil
		}
		u.PushToken = token
		return tx.Set(u)
	})
}

func (s *Service) GetUser(ctx context.Context, uid string) (*db.User, error) {
	var u db.User
	err := s.store.DB().WithContext(ctx).Take(&u, "id = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, uid)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func loadUser(ctx context.Context, tx *store.Tx, uid string) (*db.User, bool, error) {
	u := &db.User{Doc: db.Doc{ID: uid}}
	found, err := tx.Get(ctx, u)
	if err != nil {
		return nil, false, err
	}
	return u, found, nil
}
