// Package repository contains compile-time interface checks.
package repository

// Compile-time interface checks
var _ UsersRepo = (*usersRepo)(nil)
var _ ProjectsRepo = (*projectsRepo)(nil)
var _ DelegationsRepo = (*delegationsRepo)(nil)
var _ OutboxRepo = (*outboxRepo)(nil)
var _ AuditRepo = (*auditRepo)(nil)
