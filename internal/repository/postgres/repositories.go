package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users          *UserRepository
	LoginAttempts  *LoginAttemptRepository
	SecurityEvents *SecurityEventRepository
	Streams        *StreamRepository
	Entitlements   *EntitlementRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(db txExecutor) *Repositories {
	return &Repositories{
		Users:          NewUserRepository(db),
		LoginAttempts:  NewLoginAttemptRepository(db),
		SecurityEvents: NewSecurityEventRepository(db),
		Streams:        NewStreamRepository(db),
		Entitlements:   NewEntitlementRepository(db),
	}
}
