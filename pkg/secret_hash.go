package pkg

import "golang.org/x/crypto/bcrypt"

// HashSecret is used to produce the value for FITTRACK_APP_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return BytesToString(bytes), err
}

func CheckSecretHash(secret, hash string) bool {
	if secret == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
