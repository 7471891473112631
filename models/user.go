package models

import (
	"fmt"
	"strings"
	"time"
)

// Role governs which operations a user may perform. Roles are strictly ordered:
// user < editor < admin.
type Role string

const (
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Rank returns the position of the role in the ordering. Unknown roles rank 0,
// below every real role.
func (r Role) Rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleEditor:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r is the same as or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() > 0 && r.Rank() >= min.Rank()
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// User is an account able to authenticate against the API
type User struct {
	ID             uint      `json:"id" db:"id" gorm:"column:id;primaryKey"`
	Email          string    `json:"email" db:"email" gorm:"column:email;type:varchar(255);not null;uniqueIndex"`
	HashedPassword string    `json:"-" db:"hashed_password" gorm:"column:hashed_password;type:varchar(255);not null"`
	FullName       *string   `json:"full_name" db:"full_name" gorm:"column:full_name;type:varchar(255)"`
	Role           Role      `json:"role" db:"role" gorm:"column:role;type:varchar(20);not null;default:user"`
	IsActive       bool      `json:"is_active" db:"is_active" gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" gorm:"column:created_at"`

	Posts []Post `json:"-" gorm:"foreignKey:UserID"`
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
