// Package storage persists the ordered list of already notified links.
//
// Backends store the list wholesale: Load returns it oldest first and Save
// replaces it. Drivers:
//   - "file": JSON array on disk (default)
//   - "sqlite": SQLite database file (modernc.org/sqlite, pure Go)
//   - "redis": a Redis list
package storage
