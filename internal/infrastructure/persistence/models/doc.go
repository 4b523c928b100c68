// Package models contains GORM-specific persistence models that map to
// database tables. These models are separate from domain types to keep the
// domain layer free from ORM concerns: models carry all GORM annotations and
// provide ToDomain/FromDomain mappers, repositories use them for database
// operations.
package models
