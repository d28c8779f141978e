package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/middleware"
	"github.com/raihq/rai-backend/internal/models"
)

type createTicketRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// CreateSupportTicket opens a ticket for the authenticated user.
func CreateSupportTicket(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req createTicketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	if req.Subject == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, "Subject and message are required")
		return
	}

	t := models.SupportTicket{}
	err := database.PostgresDB.QueryRowContext(r.Context(), `
		INSERT INTO support_tickets (user_id, subject, message)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, subject, message, status, admin_response, created_at, updated_at
	`, userID, req.Subject, req.Message).Scan(
		&t.ID, &t.UserID, &t.Subject, &t.Message, &t.Status, &t.AdminResponse, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		log.Printf("ticket create failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create ticket")
		return
	}
	respondSuccess(w, http.StatusCreated, "Ticket created", t)
}

// ListMyTickets returns the caller's tickets, newest first.
func ListMyTickets(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	rows, err := database.PostgresDB.QueryContext(r.Context(), `
		SELECT id, user_id, subject, message, status, admin_response, created_at, updated_at
		FROM support_tickets WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch tickets")
		return
	}
	defer rows.Close()

	tickets := []models.SupportTicket{}
	for rows.Next() {
		var t models.SupportTicket
		if err := rows.Scan(&t.ID, &t.UserID, &t.Subject, &t.Message, &t.Status, &t.AdminResponse, &t.CreatedAt, &t.UpdatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch tickets")
			return
		}
		tickets = append(tickets, t)
	}
	respondSuccess(w, http.StatusOK, "Tickets fetched", tickets)
}

// GetAppPage serves a public static content page by slug.
func GetAppPage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	p := models.AppPage{}
	err := database.PostgresDB.QueryRowContext(r.Context(), `
		SELECT id, slug, title, body, updated_at FROM app_pages WHERE slug = $1
	`, slug).Scan(&p.ID, &p.Slug, &p.Title, &p.Body, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		respondError(w, http.StatusNotFound, "Page not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch page")
		return
	}
	respondSuccess(w, http.StatusOK, "Page fetched", p)
}
