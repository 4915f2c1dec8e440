package service

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// passwordCost is a variable so tests can drop to bcrypt.MinCost.
var passwordCost = bcrypt.DefaultCost

func hashPassword(plain string) (string, error) {
	if len(plain) > 72 {
		return "", invalid("password must be at most 72 bytes")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// isPasswordHash reports whether a stored value is a bcrypt hash rather
// than a legacy plain-text password.
func isPasswordHash(stored string) bool {
	if !strings.HasPrefix(stored, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

func verifyPassword(hashed, plain string) bool {
	if strings.TrimSpace(plain) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
