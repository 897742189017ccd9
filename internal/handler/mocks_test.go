package handler

import (
	"context"

	"github.com/hitoshi/agencysite/internal/auth"
	"github.com/hitoshi/agencysite/internal/contact"
	"github.com/hitoshi/agencysite/internal/model"
	"github.com/hitoshi/agencysite/internal/newsletter"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn          func(ctx context.Context, email, password string) (*auth.LoginResult, error)
	registerFn       func(ctx context.Context, name, email, password string) (*model.User, error)
	logoutFn         func(ctx context.Context, token string) error
	getCurrentUserFn func(ctx context.Context, userID string) (*model.User, error)
	handleCallbackFn func(ctx context.Context, code string) (*auth.IssuedSession, error)
	oauthEnabled     bool
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, name, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAuthService) OAuthEnabled() bool {
	return m.oauthEnabled
}

func (m *mockAuthService) GetLoginURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*auth.IssuedSession, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) SessionMaxAge() int {
	return 86400
}

type mockContactService struct {
	submitFn func(ctx context.Context, input contact.SubmitInput) (*model.Contact, error)
	listFn   func(ctx context.Context) ([]*model.Contact, error)
	count    int
}

func (m *mockContactService) Submit(ctx context.Context, input contact.SubmitInput) (*model.Contact, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, input)
	}
	return &model.Contact{ID: "contact-1"}, nil
}

func (m *mockContactService) List(ctx context.Context) ([]*model.Contact, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Contact{}, nil
}

func (m *mockContactService) Count(ctx context.Context) (int, error) {
	return m.count, nil
}

type mockNewsletterService struct {
	subscribeFn func(ctx context.Context, email string) (newsletter.Outcome, error)
	listFn      func(ctx context.Context) ([]*model.Subscriber, error)
	countsErr   error
}

func (m *mockNewsletterService) Subscribe(ctx context.Context, email string) (newsletter.Outcome, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, email)
	}
	return newsletter.Subscribed, nil
}

func (m *mockNewsletterService) List(ctx context.Context) ([]*model.Subscriber, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Subscriber{}, nil
}

func (m *mockNewsletterService) Counts(ctx context.Context) (int, int, error) {
	if m.countsErr != nil {
		return 0, 0, m.countsErr
	}
	return 3, 2, nil
}

type mockUserService struct {
	listFn       func(ctx context.Context) ([]*model.User, error)
	updateRoleFn func(ctx context.Context, actorID, targetID string, role model.Role) (*model.User, error)
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.User{}, nil
}

func (m *mockUserService) Counts(ctx context.Context) (int, int, error) {
	return 4, 1, nil
}

func (m *mockUserService) UpdateRole(ctx context.Context, actorID, targetID string, role model.Role) (*model.User, error) {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, actorID, targetID, role)
	}
	return &model.User{ID: targetID, Role: role}, nil
}

// mockSessionValidator はトークンとセッションの対応表で検証する。
type mockSessionValidator struct {
	sessions map[string]*model.Session
}

func (m *mockSessionValidator) ValidateSession(ctx context.Context, token string) (*model.Session, error) {
	return m.sessions[token], nil
}
