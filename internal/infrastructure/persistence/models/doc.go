// Package models contains the GORM persistence models of the hosting backend.
// Domain aggregates stay free of ORM tags; repositories convert with the
// FromDomain and ToDomain mappers defined next to each model.
//
// Nested value objects (node samples, KYC history, contact details) are stored
// as jsonb columns. Columns that are filtered on are denormalized next to them.
package models
