package postgres

import "database/sql"

// nullStr maps empty strings to SQL NULL on write.
func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// strOf maps SQL NULL to the empty string on read.
func strOf(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
