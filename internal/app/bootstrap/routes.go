// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	accountsfeature "github.com/chitchatclub/chitchatclub/internal/app/features/accounts"
	attendancefeature "github.com/chitchatclub/chitchatclub/internal/app/features/attendance"
	authgooglefeature "github.com/chitchatclub/chitchatclub/internal/app/features/authgoogle"
	feedbackfeature "github.com/chitchatclub/chitchatclub/internal/app/features/feedback"
	healthfeature "github.com/chitchatclub/chitchatclub/internal/app/features/health"
	heartbeatfeature "github.com/chitchatclub/chitchatclub/internal/app/features/heartbeat"
	levelsfeature "github.com/chitchatclub/chitchatclub/internal/app/features/levels"
	roomsfeature "github.com/chitchatclub/chitchatclub/internal/app/features/rooms"
	sessionsfeature "github.com/chitchatclub/chitchatclub/internal/app/features/sessions"
	usersfeature "github.com/chitchatclub/chitchatclub/internal/app/features/users"
	authsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/authsessions"
	clubsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/clubsessions"
	emailverifystore "github.com/chitchatclub/chitchatclub/internal/app/store/emailverify"
	feedbackstore "github.com/chitchatclub/chitchatclub/internal/app/store/feedback"
	levelhistorystore "github.com/chitchatclub/chitchatclub/internal/app/store/levelhistory"
	passwordresetstore "github.com/chitchatclub/chitchatclub/internal/app/store/passwordreset"
	registrationstore "github.com/chitchatclub/chitchatclub/internal/app/store/registrations"
	roomstore "github.com/chitchatclub/chitchatclub/internal/app/store/rooms"
	settingstore "github.com/chitchatclub/chitchatclub/internal/app/store/settings"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/chitchatclub/chitchatclub/internal/app/system/breakout"
	"github.com/chitchatclub/chitchatclub/internal/app/system/mailer"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It creates the session manager, the
// stores, and the breakout engine, then mounts one feature router per
// surface of the JSON API.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase

	// Fresh user data on each request so role changes, disabled accounts,
	// and blacklist updates take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	users := userstore.New(db)
	authSessions := authsessionstore.New(db)
	verify := emailverifystore.New(db, appCfg.EmailVerifyExpiry)
	settings := settingstore.New(db)
	clubSessions := clubsessionstore.New(db)
	registrations := registrationstore.New(db)
	feedback := feedbackstore.New(db)
	levelHistory := levelhistorystore.New(db)
	rooms := roomstore.New(db)
	resets := passwordresetstore.New(db, passwordresetstore.DefaultExpiry)

	engine := breakout.NewEngine(deps.MongoClient, db, logger)

	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		Username: appCfg.MailSMTPUser,
		Password: appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
	}, logger)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Activity heartbeats against the auth session
	heartbeatHandler := heartbeatfeature.NewHandler(authSessions, logger)
	r.Mount("/heartbeat", heartbeatfeature.Routes(heartbeatHandler, sessionMgr))

	// Accounts: register, login, logout, email verification, password
	accountsHandler := accountsfeature.NewHandler(users, verify, resets, authSessions, mail, sessionMgr, appCfg.BaseURL, appCfg.SiteName, logger)
	r.Mount("/auth", accountsfeature.Routes(accountsHandler, sessionMgr))

	// Google OAuth sign-in
	googleHandler := authgooglefeature.NewHandler(users, authSessions, sessionMgr,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret,
		appCfg.BaseURL, appCfg.OAuthSuccessURL, appCfg.OAuthFailureURL,
		appCfg.SessionKey, logger)
	r.Mount("/oauth/google", authgooglefeature.Routes(googleHandler))

	// Club sessions and registration
	sessionsHandler := sessionsfeature.NewHandler(clubSessions, registrations, users, settings, mail, appCfg.SiteName, logger)
	r.Mount("/sessions", sessionsfeature.Routes(sessionsHandler, sessionMgr))

	// Breakout room assignment and rosters
	roomsHandler := roomsfeature.NewHandler(engine, settings, logger)
	r.Mount("/rooms", roomsfeature.Routes(roomsHandler, sessionMgr))

	// Attendance verification and no-show finalization
	attendanceHandler := attendancefeature.NewHandler(clubSessions, registrations, users, settings, logger)
	r.Mount("/attendance", attendancefeature.Routes(attendanceHandler, sessionMgr))

	// Session and peer feedback
	feedbackHandler := feedbackfeature.NewHandler(feedback, registrations, users, logger)
	r.Mount("/feedback", feedbackfeature.Routes(feedbackHandler, sessionMgr))

	// English proficiency levels
	levelsHandler := levelsfeature.NewHandler(users, levelHistory, registrations, rooms, logger)
	r.Mount("/levels", levelsfeature.Routes(levelsHandler, sessionMgr))

	// User administration
	usersHandler := usersfeature.NewHandler(users, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr))

	return r, nil
}
