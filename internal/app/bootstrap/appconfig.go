// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level, and request limits. AppConfig is where
// everything specific to the conversation club lives: the Mongo
// connection, session cookies, SMTP, OAuth, and startup bootstrap
// values. Runtime-tunable policy (no-show limits, unregister cutoff,
// room sizes) is NOT here; admins adjust those through app_settings.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: chitchat-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Auth session cleanup worker
	SessionCleanupInterval   time.Duration // How often the cleanup sweep runs
	SessionInactiveThreshold time.Duration // Idle time before an auth session is closed

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (blank means log-only delivery)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address (e.g., noreply@chitchat.club)

	// Base URL for email links (verification magic links)
	BaseURL  string // e.g., "https://chitchat.club" or "http://localhost:3000"
	SiteName string // Display name used in outgoing email

	// Email verification settings
	EmailVerifyExpiry time.Duration // Verification code/link lifetime

	// Google OAuth configuration
	GoogleClientID     string // Google OAuth2 client ID (blank disables Google sign-in)
	GoogleClientSecret string // Google OAuth2 client secret
	OAuthSuccessURL    string // Where the browser lands after a successful Google sign-in
	OAuthFailureURL    string // Where the browser lands when Google sign-in fails

	// SuperAdmin bootstrap
	SuperAdminEmail string // Email of the superadmin user (promotes/creates on startup)
}
