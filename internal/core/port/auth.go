package port

type Authenticator interface {
	Verify(secret string) error
}
