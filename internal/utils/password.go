package utils

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

var dummy = sync.OnceValue(func() []byte {
	b, _ := bcrypt.GenerateFromPassword([]byte("traverum-login-dummy"), bcrypt.DefaultCost)
	return b
})

// BurnPasswordCheck spends the time of one bcrypt comparison.  Login calls
// it for unknown emails so response time does not reveal which partners
// exist.
func BurnPasswordCheck(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummy(), []byte(plain))
}
