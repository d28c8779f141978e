package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/raihq/rai-backend/internal/handlers"
	"github.com/raihq/rai-backend/internal/middleware"
)

func SetupRoutes(r *chi.Mux) {
	// Auth routes (public)
	r.Post("/api/auth/signup/initiate", handlers.InitiateSignup)
	r.Post("/api/auth/signup/verify", handlers.VerifySignupOTP)
	r.Post("/api/auth/signup/finalize", handlers.FinalizeSignup)
	r.Post("/api/auth/signup/resend-otp", handlers.ResendSignupOTP)
	r.Post("/api/auth/login", handlers.Login)
	r.Post("/api/auth/token/refresh", handlers.RefreshToken)
	r.Post("/api/auth/logout", handlers.Logout)
	r.Post("/api/auth/password-reset/request", handlers.RequestPasswordReset)
	r.Post("/api/auth/password-reset/confirm", handlers.ConfirmPasswordReset)

	// Public static pages
	r.Get("/api/pages/{slug}", handlers.GetAppPage)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		// Profile
		r.Get("/api/auth/profile", handlers.GetProfile)
		r.Patch("/api/auth/profile", handlers.UpdateProfile)
		r.Post("/api/auth/password/change", handlers.ChangePassword)
		r.Delete("/api/auth/account", handlers.DeleteAccount)
		r.Post("/api/auth/email-change/initiate", handlers.InitiateEmailChange)
		r.Post("/api/auth/email-change/verify", handlers.VerifyEmailChange)
		r.Post("/api/auth/email-change/resend-otp", handlers.InitiateEmailChange)

		// AI conversations (Mongo history + queued completions)
		r.Get("/api/ai/conversations", handlers.ListConversations)
		r.Get("/api/ai/conversations/{conversationID}/messages", handlers.GetConversationMessages)
		r.Delete("/api/ai/conversations/{conversationID}", handlers.DeleteConversation)
		r.Post("/api/ai/transcribe", handlers.TranscribeAudio)

		// Media uploads
		r.Post("/api/upload", handlers.UploadImage)

		// Communities
		r.Post("/api/community", handlers.CreateCommunity)
		r.Get("/api/community", handlers.ListMyCommunities)
		r.Post("/api/community/join-by-code", handlers.JoinByCode)
		r.Get("/api/community/{communityID}", handlers.GetCommunityDetail)
		r.Patch("/api/community/{communityID}", handlers.UpdateCommunity)
		r.Delete("/api/community/{communityID}", handlers.DeleteCommunity)
		r.Post("/api/community/{communityID}/join", handlers.JoinCommunity)
		r.Post("/api/community/{communityID}/leave", handlers.LeaveCommunity)
		r.Post("/api/community/{communityID}/mute", handlers.ToggleMute)
		r.Post("/api/community/{communityID}/rotate-invite", handlers.RotateInviteCode)
		r.Get("/api/community/{communityID}/requests", handlers.ListJoinRequests)
		r.Post("/api/community/{communityID}/requests/{requestID}", handlers.ProcessJoinRequest)
		r.Get("/api/community/{communityID}/members", handlers.ListMembers)
		r.Post("/api/community/{communityID}/members", handlers.AddMember)
		r.Get("/api/community/{communityID}/messages", handlers.GetCommunityMessages)
		r.Post("/api/community/{communityID}/upload-media", handlers.UploadCommunityMedia)

		// Support
		r.Post("/api/support/tickets", handlers.CreateSupportTicket)
		r.Get("/api/support/tickets", handlers.ListMyTickets)
	})

	// Admin dashboard
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(middleware.RequireAdmin)

		r.Get("/api/dashboard/stats", handlers.DashboardStats)
		r.Get("/api/dashboard/users", handlers.ListUsers)
		r.Post("/api/dashboard/users/{userID}/toggle-active", handlers.ToggleUserActive)
		r.Delete("/api/dashboard/users/{userID}", handlers.DeleteUser)
		r.Get("/api/dashboard/communities", handlers.ListAllCommunities)
		r.Delete("/api/dashboard/communities/{communityID}", handlers.AdminDeleteCommunity)
		r.Get("/api/dashboard/tickets", handlers.ListAllTickets)
		r.Patch("/api/dashboard/tickets/{ticketID}", handlers.UpdateTicket)
		r.Get("/api/dashboard/pages", handlers.ListAppPages)
		r.Put("/api/dashboard/pages/{slug}", handlers.UpsertAppPage)
		r.Delete("/api/dashboard/pages/{slug}", handlers.DeleteAppPage)
	})

	// WebSocket endpoints (token auth happens inside the handlers so close
	// codes reach browser clients)
	r.Get("/ws/chat", handlers.AIChatWebSocket)
	r.Get("/ws/community/{communityID}", handlers.CommunityWebSocket)
}
