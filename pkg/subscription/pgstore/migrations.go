package pgstore

import "embed"

// Migrations holds the goose migrations for the tables used by Store.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the files.
const MigrationsDir = "migrations"
