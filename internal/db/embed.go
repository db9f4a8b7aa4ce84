// Package db holds the embedded goose migrations.
package db

import "embed"

// Migrations contains the SQL migration files under migrations/
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations passed to goose
const MigrationsDir = "migrations"
