// Package repository is the Postgres persistence layer for users, PMScan
// devices and sensor records.
//
// It talks database/sql through the pgx stdlib driver and applies the
// embedded goose migrations on startup. [Directory] adapts the user table to
// [pmscanauth.UserDirectory].
package repository
