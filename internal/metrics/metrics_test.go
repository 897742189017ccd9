package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DoubleRegisterPanics は同じレジストリへの二重登録でpanicすることを検証する。
func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

// TestRecordLogin_CountsByOutcome はログイン結果別にカウントされることを検証する。
func TestRecordLogin_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("success")
	c.RecordLogin("invalid_credentials")
	c.RecordLogin("invalid_credentials")

	m := findMetric(t, reg, "agencysite_login_attempts_total", map[string]string{"outcome": "invalid_credentials"})
	if m == nil {
		t.Fatal("login metric not found")
	}
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("invalid_credentials = %v, want 2", v)
	}
}

// TestRecordGateDecision_Labels はゲート判定がルート種別と判定でラベル付けされることを検証する。
func TestRecordGateDecision_Labels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGateDecision("protected", "redirect_login")

	m := findMetric(t, reg, "agencysite_gate_decisions_total", map[string]string{"route_class": "protected", "decision": "redirect_login"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("gate decision metric = %v, want 1", m)
	}
}

// TestRecordFormSubmissionAndRateLimited はフォーム送信とレート制限が記録されることを検証する。
func TestRecordFormSubmissionAndRateLimited(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFormSubmission("contact", "created")
	c.RecordRateLimited("forms")

	if m := findMetric(t, reg, "agencysite_form_submissions_total", map[string]string{"form": "contact", "outcome": "created"}); m == nil {
		t.Error("form submission metric not found")
	}
	if m := findMetric(t, reg, "agencysite_rate_limited_total", map[string]string{"scope": "forms"}); m == nil {
		t.Error("rate limited metric not found")
	}
}

// TestRecordSessionsCleaned_AddsCount は削除件数が加算されることを検証する。
func TestRecordSessionsCleaned_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsCleaned(3)
	c.RecordSessionsCleaned(2)

	m := findMetric(t, reg, "agencysite_sessions_cleaned_total", nil)
	if m == nil || m.GetCounter().GetValue() != 5 {
		t.Errorf("sessions cleaned = %v, want 5", m)
	}
}

// TestHTTPMiddleware_RecordsStatusAndLatency はミドルウェアがステータスと処理時間を記録することを検証する。
func TestHTTPMiddleware_RecordsStatusAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := HTTPMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		w.WriteHeader(http.StatusFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin", nil))

	if m := findMetric(t, reg, "agencysite_http_status_total", map[string]string{"status_code": "302"}); m == nil {
		t.Error("status 302 not recorded")
	}
	m := findMetric(t, reg, "agencysite_request_duration_seconds", nil)
	if m == nil || m.GetHistogram().GetSampleCount() != 1 {
		t.Errorf("latency histogram = %v, want 1 sample", m)
	}
}

// TestHTTPMiddleware_DefaultStatusIs200 はWriteHeaderを呼ばない場合に200として記録することを検証する。
func TestHTTPMiddleware_DefaultStatusIs200(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := HTTPMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if m := findMetric(t, reg, "agencysite_http_status_total", map[string]string{"status_code": "200"}); m == nil {
		t.Error("status 200 not recorded")
	}
}

// TestHandler_ServesMetrics はスクレイプ用ハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordLogin("success")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "agencysite_login_attempts_total") {
		t.Error("response should contain agencysite_login_attempts_total metric")
	}
}

// TestNopCollector_DoesNothing はNopCollectorがpanicしないことを検証する。
func TestNopCollector_DoesNothing(t *testing.T) {
	var c MetricsCollector = NopCollector{}
	c.RecordLogin("success")
	c.RecordGateDecision("public", "allow")
	c.RecordFormSubmission("newsletter", "created")
	c.RecordRateLimited("auth")
	c.RecordHTTPStatus(200)
	c.RecordRequestLatency(time.Second)
	c.RecordSessionsCleaned(1)
}
