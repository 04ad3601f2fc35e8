// Package database gives the SQL tools a handle on the host application's
// database. Both sqlite drivers are registered: "sqlite" (modernc.org/sqlite,
// pure Go) and "sqlite3" (github.com/mattn/go-sqlite3, cgo).
package database
