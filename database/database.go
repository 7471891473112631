package database

import (
	"context"

	"gorm.io/gorm"
)

type Database struct {
	db           *gorm.DB
	userRepo     *UserRepo
	postRepo     *PostRepo
	tagRepo      *TagRepo
	categoryRepo *CategoryRepo
}

// New initializes a new Database struct with each repository using a shared GORM database instance
func New(db *gorm.DB) Database {
	return Database{
		db:           db,
		userRepo:     NewUserRepo(db),
		postRepo:     NewPostRepo(db),
		tagRepo:      NewTagRepo(db),
		categoryRepo: NewCategoryRepo(db),
	}
}

// Accessor methods for each repository

func (d Database) UserRepo() *UserRepo {
	return d.userRepo
}

func (d Database) PostRepo() *PostRepo {
	return d.postRepo
}

func (d Database) TagRepo() *TagRepo {
	return d.tagRepo
}

func (d Database) CategoryRepo() *CategoryRepo {
	return d.categoryRepo
}

// Transaction runs fn against repositories bound to a single transaction. A
// returned error (or panic) rolls the transaction back.
func (d Database) Transaction(ctx context.Context, fn func(tx Database) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

func (d Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
