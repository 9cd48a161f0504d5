package utils

import (
	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 10

// HashOrRead returns password unchanged when it is already a bcrypt hash,
// otherwise hashes it.
func HashOrRead(password string) ([]byte, error) {
	if _, err := bcrypt.Cost([]byte(password)); err == nil {
		return []byte(password), nil
	}
	return bcrypt.GenerateFromPassword([]byte(password), passwordCost)
}
