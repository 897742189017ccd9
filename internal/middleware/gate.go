package middleware

import (
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/hitoshi/agencysite/internal/metrics"
	"github.com/hitoshi/agencysite/internal/model"
)

const (
	// LoginPath は未認証時のリダイレクト先。
	LoginPath = "/login"
	// AdminPath は認証済みでログインページにアクセスした場合のリダイレクト先。
	AdminPath = "/admin"
)

// RouteClass はゲートにおけるルートの種別。
type RouteClass int

const (
	// RoutePublic は誰でもアクセスできるルート。
	RoutePublic RouteClass = iota
	// RouteLogin はログイン・登録ページ（/login以下）。
	RouteLogin
	// RouteProtected は管理画面（/admin以下）。
	RouteProtected
)

// String はメトリクスのラベルに使う名前を返す。
func (c RouteClass) String() string {
	switch c {
	case RouteLogin:
		return "login"
	case RouteProtected:
		return "protected"
	default:
		return "public"
	}
}

// Decision はゲートの判定結果。
type Decision int

const (
	// Allow はリクエストをそのまま通す。
	Allow Decision = iota
	// RedirectToLogin はログインページへリダイレクトする。
	RedirectToLogin
	// RedirectToAdmin は管理画面へリダイレクトする。
	RedirectToAdmin
)

// String はメトリクスのラベルに使う名前を返す。
func (d Decision) String() string {
	switch d {
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToAdmin:
		return "redirect_admin"
	default:
		return "allow"
	}
}

// ClassifyRoute はパスをルート種別に分類する。
// /admin と /login はそれ自身と配下のパスのみを対象とし、/administrator のような前方一致は含まない。
func ClassifyRoute(p string) RouteClass {
	p = cleanPath(p)
	switch {
	case underPath(p, AdminPath):
		return RouteProtected
	case underPath(p, LoginPath):
		return RouteLogin
	default:
		return RoutePublic
	}
}

// Decide はルート種別とセッションの有効性から判定を返す。
//
//	protected + 有効   → Allow
//	protected + 無効   → RedirectToLogin
//	login     + 有効   → RedirectToAdmin
//	login     + 無効   → Allow
//	public    + 任意   → Allow
func Decide(class RouteClass, sessionValid bool) Decision {
	switch class {
	case RouteProtected:
		if sessionValid {
			return Allow
		}
		return RedirectToLogin
	case RouteLogin:
		if sessionValid {
			return RedirectToAdmin
		}
		return Allow
	default:
		return Allow
	}
}

// DefaultGateExclusions はゲートの対象外とするパスパターンを返す。
// 末尾が "/*" のパターンはそのディレクトリ自身と配下に一致する。
func DefaultGateExclusions() []string {
	return []string{
		"/api/*",
		"/static/*",
		"/_image/*",
		"/favicon.ico",
		"/health",
		"/metrics",
	}
}

// GateConfig はページゲートの設定。
type GateConfig struct {
	// Exclusions はゲートを適用しないパスパターン。nilの場合はDefaultGateExclusions。
	Exclusions []string
	// RequireAdmin がtrueの場合、管理者ロールのセッションのみを有効とみなす。
	RequireAdmin bool
	// Metrics は判定結果の記録先。nilの場合は記録しない。
	Metrics metrics.MetricsCollector
}

// NewGateMiddleware はページ単位でアクセスを制御するゲートミドルウェアを返す。
// セッションの欠落・形式不正・期限切れ・検証エラーはすべて「セッションなし」として扱い、
// エラーを返さずにリダイレクトで応答する。
// 有効なセッションがあればユーザーIDとロールをコンテキストに注入して次に渡す。
func NewGateMiddleware(validator SessionValidator, config GateConfig) func(next http.Handler) http.Handler {
	exclusions := config.Exclusions
	if exclusions == nil {
		exclusions = DefaultGateExclusions()
	}
	collector := config.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExcluded(cleanPath(r.URL.Path), exclusions) {
				next.ServeHTTP(w, r)
				return
			}

			// 1. ルート種別を判定
			class := ClassifyRoute(r.URL.Path)

			// 2. セッションを検証。公開ページでもコンテキスト注入のため検証する
			session := resolveSession(r, validator)
			valid := session != nil
			if valid && config.RequireAdmin && session.Role != model.RoleAdmin {
				valid = false
			}

			// 3. 判定に従って応答
			decision := Decide(class, valid)
			collector.RecordGateDecision(class.String(), decision.String())

			switch decision {
			case RedirectToLogin:
				slog.Debug("gate redirect", slog.String("path", r.URL.Path), slog.String("to", LoginPath))
				http.Redirect(w, r, LoginPath, http.StatusFound)
			case RedirectToAdmin:
				http.Redirect(w, r, AdminPath, http.StatusFound)
			default:
				if session != nil {
					r = r.WithContext(ContextWithSession(r.Context(), session))
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}

// isExcluded はパスが除外パターンのいずれかに一致するかを判定する。
func isExcluded(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if dir, ok := strings.CutSuffix(pattern, "/*"); ok {
			if underPath(p, dir) {
				return true
			}
			continue
		}
		if p == pattern {
			return true
		}
	}
	return false
}

// underPath はpがbase自身またはその配下であるかを返す。
func underPath(p, base string) bool {
	return p == base || strings.HasPrefix(p, base+"/")
}

// cleanPath は ".." や重複スラッシュを解決したパスを返す。
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
