package domain

// RequireRole fails with an authorization error unless claims satisfy the required role.
func RequireRole(claims TokenClaims, required UserRole) error {
	if !claims.Role.Satisfies(required) {
		return NewAuthorizationError("Insufficient permissions")
	}
	return nil
}
