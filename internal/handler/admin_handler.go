package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/agencysite/internal/middleware"
	"github.com/hitoshi/agencysite/internal/model"
)

// AdminContactService は管理APIが必要とするお問い合わせサービスインターフェース。
type AdminContactService interface {
	List(ctx context.Context) ([]*model.Contact, error)
	Count(ctx context.Context) (int, error)
}

// AdminSubscriberService は管理APIが必要とする購読者サービスインターフェース。
type AdminSubscriberService interface {
	List(ctx context.Context) ([]*model.Subscriber, error)
	Counts(ctx context.Context) (total int, active int, err error)
}

// AdminUserService は管理APIが必要とするユーザー管理サービスインターフェース。
type AdminUserService interface {
	List(ctx context.Context) ([]*model.User, error)
	Counts(ctx context.Context) (total int, admins int, err error)
	UpdateRole(ctx context.Context, actorID, targetID string, role model.Role) (*model.User, error)
}

// AdminHandler は管理画面用APIのHTTPハンドラー。
type AdminHandler struct {
	contacts    AdminContactService
	subscribers AdminSubscriberService
	users       AdminUserService
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(contacts AdminContactService, subscribers AdminSubscriberService, users AdminUserService) *AdminHandler {
	return &AdminHandler{
		contacts:    contacts,
		subscribers: subscribers,
		users:       users,
	}
}

// adminUserResponse は管理画面に表示するユーザー情報。パスワードハッシュは含まない。
type adminUserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

// StatsResponse はダッシュボードの集計値。
type StatsResponse struct {
	TotalContacts     int `json:"total_contacts"`
	TotalSubscribers  int `json:"total_subscribers"`
	ActiveSubscribers int `json:"active_subscribers"`
	TotalUsers        int `json:"total_users"`
	AdminUsers        int `json:"admin_users"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func toAdminUserResponse(u *model.User) adminUserResponse {
	return adminUserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// ListContacts はお問い合わせ一覧を受信日時の降順で返す。
// GET /api/admin/contacts
func (h *AdminHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.contacts.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if contacts == nil {
		contacts = []*model.Contact{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"contacts": contacts,
		"total":    len(contacts),
	})
}

// ListSubscribers は購読者一覧を購読日時の降順で返す。
// GET /api/admin/subscribers
func (h *AdminHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscribers.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if subs == nil {
		subs = []*model.Subscriber{}
	}

	active := 0
	for _, s := range subs {
		if s.Active {
			active++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subscribers": subs,
		"total":       len(subs),
		"active":      active,
	})
}

// ListUsers はユーザー一覧を作成日時の降順で返す。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toAdminUserResponse(u))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": resp,
		"total": len(resp),
	})
}

// Stats はダッシュボードの集計値を返す。
// GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.collectStats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// collectStats は3種類の集計を並行して取得する。
func (h *AdminHandler) collectStats(ctx context.Context) (*StatsResponse, error) {
	var stats StatsResponse
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		count, err := h.contacts.Count(ctx)
		stats.TotalContacts = count
		return err
	})
	g.Go(func() error {
		total, active, err := h.subscribers.Counts(ctx)
		stats.TotalSubscribers, stats.ActiveSubscribers = total, active
		return err
	})
	g.Go(func() error {
		total, admins, err := h.users.Counts(ctx)
		stats.TotalUsers, stats.AdminUsers = total, admins
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// UpdateUserRole はユーザーのロールを変更する。管理者ロールが必要。
// PATCH /api/admin/users/{id}/role
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRoleError(""))
		return
	}

	user, err := h.users.UpdateRole(r.Context(), actorID, chi.URLParam(r, "id"), model.Role(req.Role))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": toAdminUserResponse(user),
	})
}
