package password

import "golang.org/x/crypto/bcrypt"

// Cost is the bcrypt work factor used by Hash.
var Cost = bcrypt.DefaultCost

func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// Matches reports whether plain matches hash. bcrypt compares in constant time.
func Matches(hash, plain string) bool {
	return Compare(hash, plain) == nil
}
