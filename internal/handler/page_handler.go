package handler

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/hitoshi/agencysite/internal/content"
	"github.com/hitoshi/agencysite/internal/middleware"
	"github.com/hitoshi/agencysite/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// StaticHandler は埋め込みの静的ファイルを /static/ 以下で配信するハンドラーを返す。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// pageNames は描画可能なページテンプレート。layoutとadmin_navは全ページで共有する。
var pageNames = []string{
	"home",
	"login",
	"signup",
	"admin_dashboard",
	"admin_contacts",
	"admin_subscribers",
	"admin_users",
}

// PageHandler はサーバー描画のHTMLページを返すハンドラー。
// 管理ページのアクセス制御はゲートミドルウェアが行う。
type PageHandler struct {
	site         *content.Site
	admin        *AdminHandler
	oauthEnabled bool
	pages        map[string]*template.Template
}

// NewPageHandler はテンプレートを解析してPageHandlerを生成する。
func NewPageHandler(site *content.Site, admin *AdminHandler, oauthEnabled bool) (*PageHandler, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &PageHandler{
		site:         site,
		admin:        admin,
		oauthEnabled: oauthEnabled,
		pages:        pages,
	}, nil
}

func parsePages() (map[string]*template.Template, error) {
	base, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/admin_nav.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout: %w", err)
		}
		if _, err := t.ParseFS(templatesFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// pageData は全ページ共通のテンプレートデータ。
type pageData struct {
	Title         string
	Company       string
	Site          *content.Site
	OAuthEnabled  bool
	Error         string
	CurrentUserID string
	IsAdmin       bool
	Stats         *StatsResponse
	Contacts      []*model.Contact
	Subscribers   []*model.Subscriber
	Users         []*model.User
}

func (h *PageHandler) newPageData(ctx context.Context, title string) *pageData {
	userID, _ := middleware.UserIDFromContext(ctx)
	return &pageData{
		Title:         title,
		Company:       h.site.Company,
		Site:          h.site,
		OAuthEnabled:  h.oauthEnabled,
		CurrentUserID: userID,
		IsAdmin:       middleware.RoleFromContext(ctx) == model.RoleAdmin,
	}
}

// render はページを一旦バッファに描画してから書き込む。描画エラー時は500を返す。
func (h *PageHandler) render(w http.ResponseWriter, name string, data *pageData) {
	t, ok := h.pages[name]
	if !ok {
		slog.Error("unknown page template", slog.String("page", name))
		http.Error(w, model.MsgInternal, http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, model.MsgInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// pageError は管理ページのデータ取得失敗を記録して500を返す。
func pageError(w http.ResponseWriter, page string, err error) {
	slog.Error("failed to load page data",
		slog.String("page", page),
		slog.String("error", err.Error()),
	)
	http.Error(w, model.MsgInternal, http.StatusInternalServerError)
}

// Home はマーケティングページを返す。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, "home", h.newPageData(r.Context(), "Home"))
}

// Login はログインページを返す。認証済みの場合はゲートが管理画面へリダイレクトする。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	data := h.newPageData(r.Context(), "Sign in")
	data.Error = r.URL.Query().Get("error")
	h.render(w, "login", data)
}

// Signup はアカウント作成ページを返す。
// GET /signup
func (h *PageHandler) Signup(w http.ResponseWriter, r *http.Request) {
	h.render(w, "signup", h.newPageData(r.Context(), "Sign up"))
}

// AdminDashboard は管理画面トップを返す。
// GET /admin
func (h *PageHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.collectStats(r.Context())
	if err != nil {
		pageError(w, "admin_dashboard", err)
		return
	}
	data := h.newPageData(r.Context(), "Dashboard")
	data.Stats = stats
	h.render(w, "admin_dashboard", data)
}

// AdminContacts はお問い合わせ一覧ページを返す。
// GET /admin/contacts
func (h *PageHandler) AdminContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.admin.contacts.List(r.Context())
	if err != nil {
		pageError(w, "admin_contacts", err)
		return
	}
	data := h.newPageData(r.Context(), "Contacts")
	data.Contacts = contacts
	h.render(w, "admin_contacts", data)
}

// AdminSubscribers は購読者一覧ページを返す。
// GET /admin/subscribers
func (h *PageHandler) AdminSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.admin.subscribers.List(r.Context())
	if err != nil {
		pageError(w, "admin_subscribers", err)
		return
	}
	data := h.newPageData(r.Context(), "Subscribers")
	data.Subscribers = subs
	h.render(w, "admin_subscribers", data)
}

// AdminUsers はユーザー一覧ページを返す。
// GET /admin/users
func (h *PageHandler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.users.List(r.Context())
	if err != nil {
		pageError(w, "admin_users", err)
		return
	}
	data := h.newPageData(r.Context(), "Users")
	data.Users = users
	h.render(w, "admin_users", data)
}

// ContentAPI はマーケティングコンテンツをJSONで返す。
// GET /api/content
func (h *PageHandler) ContentAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.site)
}
