package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/agencysite/internal/contact"
	"github.com/hitoshi/agencysite/internal/metrics"
	"github.com/hitoshi/agencysite/internal/middleware"
	"github.com/hitoshi/agencysite/internal/model"
	"github.com/hitoshi/agencysite/internal/newsletter"
)

// ContactServiceInterface はお問い合わせハンドラーが必要とするサービスインターフェース。
type ContactServiceInterface interface {
	Submit(ctx context.Context, input contact.SubmitInput) (*model.Contact, error)
}

// NewsletterServiceInterface はニュースレターハンドラーが必要とするサービスインターフェース。
type NewsletterServiceInterface interface {
	Subscribe(ctx context.Context, email string) (newsletter.Outcome, error)
}

// FormHandler は公開フォーム（お問い合わせ・ニュースレター）のHTTPハンドラー。
type FormHandler struct {
	contacts    ContactServiceInterface
	subscribers NewsletterServiceInterface
	metrics     metrics.MetricsCollector
}

// NewFormHandler はFormHandlerを生成する。
func NewFormHandler(contacts ContactServiceInterface, subscribers NewsletterServiceInterface, collector metrics.MetricsCollector) *FormHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &FormHandler{
		contacts:    contacts,
		subscribers: subscribers,
		metrics:     collector,
	}
}

type contactResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type newsletterRequest struct {
	Email string `json:"email"`
}

// SubmitContact はお問い合わせを受け付ける。
// POST /api/contact
func (h *FormHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var input contact.SubmitInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.metrics.RecordFormSubmission("contact", "invalid")
		middleware.WriteMessageResponse(w, http.StatusBadRequest, contact.MsgFieldsRequired)
		return
	}

	saved, err := h.contacts.Submit(r.Context(), input)
	if err != nil {
		h.metrics.RecordFormSubmission("contact", formOutcome(err))
		writeAppError(w, err)
		return
	}

	h.metrics.RecordFormSubmission("contact", "accepted")
	writeJSON(w, http.StatusCreated, contactResponse{
		Message: contact.MsgReceived,
		ID:      saved.ID,
	})
}

// Subscribe はニュースレター購読を受け付ける。
// 新規登録は201、再購読と購読済みは200を返す。
// POST /api/newsletter
func (h *FormHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req newsletterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.RecordFormSubmission("newsletter", "invalid")
		middleware.WriteMessageResponse(w, http.StatusBadRequest, newsletter.MsgEmailRequired)
		return
	}

	outcome, err := h.subscribers.Subscribe(r.Context(), req.Email)
	if err != nil {
		h.metrics.RecordFormSubmission("newsletter", formOutcome(err))
		writeAppError(w, err)
		return
	}

	h.metrics.RecordFormSubmission("newsletter", outcome.String())
	status := http.StatusOK
	if outcome == newsletter.Subscribed {
		status = http.StatusCreated
	}
	middleware.WriteMessageResponse(w, status, outcome.Message())
}

// formOutcome はフォーム送信失敗のエラーをメトリクスのラベルに変換する。
func formOutcome(err error) string {
	var appErr *model.AppError
	if errors.As(err, &appErr) && appErr.Kind == model.KindValidation {
		return "invalid"
	}
	return "error"
}
