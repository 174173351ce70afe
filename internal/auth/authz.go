package auth

import (
	"github.com/taskboard/taskboard/internal/errors"
)

// RequireOwnership allows the claim only when it identifies the owner of
// the resource. Pure and total: no I/O, no partial failure.
func RequireOwnership(claims *Claims, resourceOwnerID string) error {
	if claims == nil {
		return errors.MissingCredential()
	}
	if claims.UserID != resourceOwnerID {
		return errors.Forbidden("You can only access your own resources").
			WithDetails("owner", resourceOwnerID)
	}
	return nil
}

// RequireRole allows the claim only when it carries the required role.
// A claim with no role at all yields MissingRole, which is a distinct
// signal from Forbidden for a present-but-wrong role.
func RequireRole(claims *Claims, requiredRole string) error {
	if claims == nil {
		return errors.MissingCredential()
	}
	if claims.Role == "" {
		return errors.MissingRole()
	}
	if claims.Role != requiredRole {
		return errors.Forbidden("Insufficient permissions").
			WithDetails("required_role", requiredRole)
	}
	return nil
}
