// Package pg bootstraps PostgreSQL access for the billing engine using
// pgx/v5 connection pools and goose/v3 migrations.
//
// Connect opens a *pgxpool.Pool described by Config, retrying while the
// database comes up. MigrateFS applies migrations embedded in the binary
// (the subscription store ships its schema this way), and Migrate applies
// them from a directory on disk when PG_MIGRATIONS_PATH is set.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateFS(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//
// # Error Handling
//
// IsNotFoundError, IsDuplicateKeyError, IsForeignKeyViolationError and
// IsSerializationError classify errors returned by pgx without callers
// having to inspect *pgconn.PgError themselves.
package pg
