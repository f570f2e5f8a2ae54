package bot

// Authenticator turns the server's AUTH key and the account password into
// the AUTH payload.
type Authenticator interface {
	GenerateAuth(key, password []byte) ([]byte, error)
}

type AuthenticatorFunc func(key, password []byte) ([]byte, error)

func (f AuthenticatorFunc) GenerateAuth(key, password []byte) ([]byte, error) {
	return f(key, password)
}

// PlaintextAuth sends the password unchanged.
var PlaintextAuth Authenticator = AuthenticatorFunc(func(_, password []byte) ([]byte, error) {
	out := make([]byte, len(password))
	copy(out, password)
	return out, nil
})
