package db

import (
	"database/sql"
	"fmt"

	"learnhub/config"

	_ "github.com/lib/pq"
)

var DB *sql.DB

func InitDB() error {
	var err error
	connStr := config.GetDBConnString()

	DB, err = sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	err = DB.Ping()
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	// Create tables
	if err := createTables(); err != nil {
		return fmt.Errorf("error creating tables: %w", err)
	}

	return nil
}

func createTables() error {
	institutionTable := `
	CREATE TABLE IF NOT EXISTS institutions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		certificate_template TEXT,
		certificate_folder TEXT,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);`

	userTable := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		institution_id TEXT REFERENCES institutions(id),
		api_token TEXT UNIQUE,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);`

	courseTable := `
	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		institution_id TEXT REFERENCES institutions(id),
		instructor_id TEXT REFERENCES users(id),
		price BIGINT NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'INR',
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);`

	paymentTable := `
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		user_id TEXT REFERENCES users(id),
		course_id TEXT REFERENCES courses(id),
		institution_id TEXT REFERENCES institutions(id),
		gateway_order_id TEXT NOT NULL UNIQUE,
		gateway_payment_id TEXT,
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		method TEXT,
		bank TEXT,
		refund_id TEXT,
		refund_amount BIGINT,
		refund_reason TEXT,
		enrollment_id TEXT,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);`

	paymentEventTable := `
	CREATE TABLE IF NOT EXISTS payment_events (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL REFERENCES payments(id),
		event TEXT NOT NULL,
		raw_body BYTEA,
		received_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);`

	enrollmentTable := `
	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		user_id TEXT REFERENCES users(id),
		course_id TEXT REFERENCES courses(id),
		institution_id TEXT REFERENCES institutions(id),
		payment_id TEXT REFERENCES payments(id),
		status TEXT NOT NULL,
		access_start TIMESTAMPTZ NOT NULL,
		access_end TIMESTAMPTZ,
		progress INTEGER NOT NULL DEFAULT 0,
		certificate_id TEXT,
		certificate_eligible BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);`

	certificateTable := `
	CREATE TABLE IF NOT EXISTS certificates (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL UNIQUE REFERENCES enrollments(id),
		recipient_name TEXT NOT NULL,
		course_title TEXT NOT NULL,
		institution_name TEXT NOT NULL,
		grade TEXT,
		final_score DOUBLE PRECISION,
		document_path TEXT,
		file_path TEXT,
		document_url TEXT,
		verification_url TEXT,
		status TEXT NOT NULL,
		revoked_reason TEXT,
		issued_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);`

	tables := []string{
		institutionTable,
		userTable,
		courseTable,
		paymentTable,
		paymentEventTable,
		enrollmentTable,
		certificateTable,
	}
	for _, stmt := range tables {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("error creating table: %w", err)
		}
	}

	return nil
}
