// Package database provides connection management, configuration, logging,
// query hooks, model registration, migrations with foreign keys, SQL
// seeding and driver error classification built on top of Bun.
package database
