// Package service contains compile-time interface checks.
package service

// Compile-time checks to ensure all service implementations satisfy their interfaces.
var (
	_ AuthService       = (*authService)(nil)
	_ UserService       = (*userService)(nil)
	_ ProjectService    = (*projectService)(nil)
	_ DelegationService = (*delegationService)(nil)
	_ EventService      = (*eventService)(nil)
	_ CacheService      = (*cacheServiceImpl)(nil)
)
