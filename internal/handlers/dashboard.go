package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/models"
)

// Admin-only endpoints backing the operations dashboard.

type updateTicketRequest struct {
	Status        string  `json:"status"`
	AdminResponse *string `json:"admin_response"`
}

type upsertPageRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// DashboardStats returns headline counts for the admin home screen.
func DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]int64{}
	queries := map[string]string{
		"total_users":       `SELECT COUNT(*) FROM users`,
		"active_users":      `SELECT COUNT(*) FROM users WHERE is_active = TRUE`,
		"conversations":     `SELECT COUNT(*) FROM conversations WHERE is_active = TRUE`,
		"communities":       `SELECT COUNT(*) FROM communities`,
		"open_tickets":      `SELECT COUNT(*) FROM support_tickets WHERE status = 'open'`,
		"total_tokens_used": `SELECT COALESCE(SUM(total_tokens_used), 0) FROM conversations`,
	}
	for name, query := range queries {
		var n int64
		if err := database.PostgresDB.QueryRowContext(r.Context(), query).Scan(&n); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to compute stats")
			return
		}
		stats[name] = n
	}
	respondSuccess(w, http.StatusOK, "Stats fetched", stats)
}

// ListUsers returns a paginated, searchable user list.
func ListUsers(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	const pageSize = 50

	rows, err := database.PostgresDB.QueryContext(r.Context(), `
		SELECT id, username, email, phone, first_name, last_name, is_admin, is_active, created_at
		FROM users
		WHERE $1 = '' OR username ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, search, pageSize, (page-1)*pageSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	defer rows.Close()

	users := []map[string]interface{}{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.FirstName, &u.LastName, &u.IsAdmin, &u.IsActive, &u.CreatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch users")
			return
		}
		users = append(users, map[string]interface{}{
			"id":         u.ID,
			"username":   u.Username,
			"email":      u.Email,
			"phone":      u.Phone,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
			"is_admin":   u.IsAdmin,
			"is_active":  u.IsActive,
			"created_at": u.CreatedAt,
		})
	}
	respondSuccess(w, http.StatusOK, "Users fetched", users)
}

// ToggleUserActive flips a user's active flag (admin soft ban / restore).
func ToggleUserActive(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var isActive bool
	err = database.PostgresDB.QueryRowContext(r.Context(), `
		UPDATE users SET is_active = NOT is_active, updated_at = NOW()
		WHERE id = $1
		RETURNING is_active
	`, userID).Scan(&isActive)
	if err == sql.ErrNoRows {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}
	respondSuccess(w, http.StatusOK, "User updated", map[string]bool{"is_active": isActive})
}

// DeleteUser removes an account and its relational rows entirely. Prefer
// ToggleUserActive; this is for GDPR-style erasure requests.
func DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	res, err := database.PostgresDB.ExecContext(r.Context(), `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	respondSuccess(w, http.StatusOK, "User deleted", nil)
}

// ListAllCommunities returns every community with member counts.
func ListAllCommunities(w http.ResponseWriter, r *http.Request) {
	rows, err := database.PostgresDB.QueryContext(r.Context(), `
		SELECT c.id, c.name, c.description, c.icon, c.is_private, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM memberships m WHERE m.community_id = c.id)
		FROM communities c
		ORDER BY c.created_at DESC
	`)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch communities")
		return
	}
	defer rows.Close()

	communities := []models.Community{}
	for rows.Next() {
		var c models.Community
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.IsPrivate, &c.CreatedAt, &c.UpdatedAt, &c.MemberCount); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch communities")
			return
		}
		communities = append(communities, c)
	}
	respondSuccess(w, http.StatusOK, "Communities fetched", communities)
}

// AdminDeleteCommunity removes any community regardless of membership.
func AdminDeleteCommunity(w http.ResponseWriter, r *http.Request) {
	communityID, err := uuid.Parse(chi.URLParam(r, "communityID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}

	res, err := database.PostgresDB.ExecContext(r.Context(), `DELETE FROM communities WHERE id = $1`, communityID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete community")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		respondError(w, http.StatusNotFound, "Community not found")
		return
	}
	respondSuccess(w, http.StatusOK, "Community deleted", nil)
}

// ListAllTickets returns tickets, optionally filtered by status.
func ListAllTickets(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !models.ValidTicketStatus(status) {
		respondError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	rows, err := database.PostgresDB.QueryContext(r.Context(), `
		SELECT t.id, t.user_id, u.username, t.subject, t.message, t.status, t.admin_response, t.created_at, t.updated_at
		FROM support_tickets t
		JOIN users u ON u.id = t.user_id
		WHERE $1 = '' OR t.status = $1
		ORDER BY t.created_at DESC
	`, status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch tickets")
		return
	}
	defer rows.Close()

	tickets := []models.SupportTicket{}
	for rows.Next() {
		var t models.SupportTicket
		if err := rows.Scan(&t.ID, &t.UserID, &t.Username, &t.Subject, &t.Message, &t.Status, &t.AdminResponse, &t.CreatedAt, &t.UpdatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch tickets")
			return
		}
		tickets = append(tickets, t)
	}
	respondSuccess(w, http.StatusOK, "Tickets fetched", tickets)
}

// UpdateTicket sets status and/or the admin response on a ticket.
func UpdateTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(chi.URLParam(r, "ticketID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid ticket id")
		return
	}

	var req updateTicketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status != "" && !models.ValidTicketStatus(req.Status) {
		respondError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	res, err := database.PostgresDB.ExecContext(r.Context(), `
		UPDATE support_tickets
		SET status = CASE WHEN $2 = '' THEN status ELSE $2 END,
		    admin_response = COALESCE($3, admin_response),
		    updated_at = NOW()
		WHERE id = $1
	`, ticketID, req.Status, req.AdminResponse)
	if err != nil {
		log.Printf("ticket update failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to update ticket")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		respondError(w, http.StatusNotFound, "Ticket not found")
		return
	}
	respondSuccess(w, http.StatusOK, "Ticket updated", nil)
}

// UpsertAppPage creates or replaces a static content page.
func UpsertAppPage(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		respondError(w, http.StatusBadRequest, "Slug is required")
		return
	}

	var req upsertPageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}

	p := models.AppPage{}
	err := database.PostgresDB.QueryRowContext(r.Context(), `
		INSERT INTO app_pages (slug, title, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET title = $2, body = $3, updated_at = NOW()
		RETURNING id, slug, title, body, updated_at
	`, slug, req.Title, req.Body).Scan(&p.ID, &p.Slug, &p.Title, &p.Body, &p.UpdatedAt)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save page")
		return
	}
	respondSuccess(w, http.StatusOK, "Page saved", p)
}

// ListAppPages returns all static pages for the dashboard editor.
func ListAppPages(w http.ResponseWriter, r *http.Request) {
	rows, err := database.PostgresDB.QueryContext(r.Context(), `
		SELECT id, slug, title, body, updated_at FROM app_pages ORDER BY slug ASC
	`)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch pages")
		return
	}
	defer rows.Close()

	pages := []models.AppPage{}
	for rows.Next() {
		var p models.AppPage
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Body, &p.UpdatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch pages")
			return
		}
		pages = append(pages, p)
	}
	respondSuccess(w, http.StatusOK, "Pages fetched", pages)
}

// DeleteAppPage removes a static page.
func DeleteAppPage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	res, err := database.PostgresDB.ExecContext(r.Context(), `DELETE FROM app_pages WHERE slug = $1`, slug)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete page")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		respondError(w, http.StatusNotFound, "Page not found")
		return
	}
	respondSuccess(w, http.StatusOK, "Page deleted", nil)
}
