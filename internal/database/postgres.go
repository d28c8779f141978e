package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL database
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Set connection pool settings
	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	// Initialize tables
	if err = InitPostgresTables(); err != nil {
		return err
	}

	return nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables() error {
	queries := []string{
		// Users table. At least one of email/phone must be set; both are unique when present.
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username VARCHAR(150) NOT NULL UNIQUE,
			email VARCHAR(200) UNIQUE,
			phone VARCHAR(20) UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			bio TEXT,
			profile_picture TEXT,
			date_of_birth DATE,
			is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			is_phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			failed_login_attempts INTEGER NOT NULL DEFAULT 0,
			locked_until TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (email IS NOT NULL OR phone IS NOT NULL)
		)`,

		// OTPs table. Regeneration deletes prior rows, so at most one live OTP per identifier.
		`CREATE TABLE IF NOT EXISTS otps (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			identifier VARCHAR(255) NOT NULL,
			code VARCHAR(6) NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// AI conversations. Message bodies live in MongoDB; this row carries the token counter.
		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL DEFAULT 'New Chat',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			total_tokens_used BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Communities table
		`CREATE TABLE IF NOT EXISTS communities (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(100) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT,
			is_private BOOLEAN NOT NULL DEFAULT FALSE,
			invite_code VARCHAR(20) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Memberships table (many-to-many relationship)
		`CREATE TABLE IF NOT EXISTS memberships (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			community_id UUID NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role VARCHAR(10) NOT NULL DEFAULT 'member',
			is_muted BOOLEAN NOT NULL DEFAULT FALSE,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(community_id, user_id)
		)`,

		// Pending join requests for private communities
		`CREATE TABLE IF NOT EXISTS join_requests (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			community_id UUID NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(community_id, user_id)
		)`,

		// Support tickets table
		`CREATE TABLE IF NOT EXISTS support_tickets (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subject VARCHAR(255) NOT NULL DEFAULT 'General Concern',
			message TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			admin_response TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Static content pages (about, privacy, terms) edited from the dashboard
		`CREATE TABLE IF NOT EXISTS app_pages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			slug VARCHAR(100) NOT NULL UNIQUE,
			title VARCHAR(255) NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Create indexes for better performance
		`CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users(LOWER(username))`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_users_phone ON users(phone)`,
		`CREATE INDEX IF NOT EXISTS idx_otps_identifier ON otps(identifier)`,
		`CREATE INDEX IF NOT EXISTS idx_otps_created_at ON otps(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user_id ON conversations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_communities_invite_code ON communities(invite_code)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_community_id ON memberships(community_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_user_id ON memberships(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_join_requests_community_id ON join_requests(community_id)`,
		`CREATE INDEX IF NOT EXISTS idx_support_tickets_user_id ON support_tickets(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_support_tickets_status ON support_tickets(status)`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
