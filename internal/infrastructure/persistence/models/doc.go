// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Tables:
//   - product_lines: one row per stockable variant, with its unit counter
//   - cost_layers: live cost layers; closed layers are deleted
//   - stock_movements: append-only audit log of every increase and decrease
package models
