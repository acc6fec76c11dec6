package security

import "golang.org/x/crypto/bcrypt"

// PasswordHasher checks operator credentials against the simulator's login
// table. The zero value hashes at bcrypt's default cost; tests lower Cost to
// keep hashing cheap.
type PasswordHasher struct {
	Cost int
}

func (h PasswordHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h PasswordHasher) Verify(plain, hashed string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
