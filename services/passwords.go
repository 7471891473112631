package services

import "golang.org/x/crypto/bcrypt"

const (
	MinPasswordLength = 6
	// bcrypt ignores everything past 72 bytes
	MaxPasswordLength = 72
)

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
