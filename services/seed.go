package services

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/models"
)

//go:embed seed_data.yml
var defaultFixtures []byte

// SeedTargets are the entity groups Seed accepts, in the order "all" runs them.
var SeedTargets = []string{"users", "categories", "tags"}

type UserFixture struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"full_name"`
	Role     string `yaml:"role"`
}

type CategoryFixture struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

type Fixtures struct {
	Users      []UserFixture     `yaml:"users"`
	Categories []CategoryFixture `yaml:"categories"`
	Tags       []string          `yaml:"tags"`
}

// LoadFixtures parses path, or the built-in fixtures when path is empty.
func LoadFixtures(path string) (Fixtures, error) {
	data := defaultFixtures
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
		}
		data = raw
	}

	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	return fx, nil
}

// Seeder upserts fixtures. Running it twice leaves the database unchanged.
type Seeder struct {
	db     database.Database
	logger zerolog.Logger
}

func NewSeeder(db database.Database, logger zerolog.Logger) Seeder {
	return Seeder{db: db, logger: logger}
}

// Seed runs one target ("users", "categories", "tags") or "all". Each target
// runs in its own transaction.
func (s Seeder) Seed(ctx context.Context, target string, fx Fixtures) error {
	targets := []string{target}
	if target == "all" {
		targets = SeedTargets
	}

	for _, t := range targets {
		var run func(context.Context, database.Database, Fixtures) (int, error)
		switch t {
		case "users":
			run = seedUsers
		case "categories":
			run = seedCategories
		case "tags":
			run = seedTags
		default:
			return fmt.Errorf("unknown seed target %q", t)
		}

		var count int
		err := s.db.Transaction(ctx, func(tx database.Database) error {
			n, err := run(ctx, tx, fx)
			count = n
			return err
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", t, err)
		}
		s.logger.Info().Str("target", t).Int("count", count).Msg("seeded")
	}
	return nil
}

func seedUsers(ctx context.Context, tx database.Database, fx Fixtures) (int, error) {
	for _, u := range fx.Users {
		role := models.RoleUser
		if u.Role != "" {
			parsed, err := models.ParseRole(u.Role)
			if err != nil {
				return 0, fmt.Errorf("user %s: %w", u.Email, err)
			}
			role = parsed
		}

		var fullName *string
		if u.FullName != "" {
			fullName = &u.FullName
		}

		user, err := tx.UserRepo().FindByEmail(ctx, u.Email)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if u.Password == "" {
				return 0, fmt.Errorf("user %s needs a password", u.Email)
			}
			hashed, err := HashPassword(u.Password)
			if err != nil {
				return 0, err
			}
			if err := tx.UserRepo().Create(ctx, &models.User{
				Email:          u.Email,
				HashedPassword: hashed,
				FullName:       fullName,
				Role:           role,
				IsActive:       true,
			}); err != nil {
				return 0, err
			}
		case err != nil:
			return 0, err
		default:
			user.FullName = fullName
			user.Role = role
			if u.Password != "" && !CheckPassword(user.HashedPassword, u.Password) {
				hashed, err := HashPassword(u.Password)
				if err != nil {
					return 0, err
				}
				user.HashedPassword = hashed
			}
			if err := tx.UserRepo().Update(ctx, user); err != nil {
				return 0, err
			}
		}
	}
	return len(fx.Users), nil
}

func seedCategories(ctx context.Context, tx database.Database, fx Fixtures) (int, error) {
	for _, c := range fx.Categories {
		existing, err := tx.CategoryRepo().FindBySlug(ctx, c.Slug)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.CategoryRepo().Create(ctx, &models.Category{Name: c.Name, Slug: c.Slug}); err != nil {
				return 0, err
			}
		case err != nil:
			return 0, err
		default:
			name := c.Name
			if _, err := tx.CategoryRepo().Update(ctx, existing.ID, database.CategoryChanges{Name: &name}); err != nil {
				return 0, err
			}
		}
	}
	return len(fx.Categories), nil
}

func seedTags(ctx context.Context, tx database.Database, fx Fixtures) (int, error) {
	tags, err := tx.TagRepo().EnsureTags(ctx, fx.Tags)
	if err != nil {
		return 0, err
	}
	return len(tags), nil
}
