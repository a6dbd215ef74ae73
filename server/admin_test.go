package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdminConfigGetAndUpdate(t *testing.T) {
	reg := NewRegistry(&Metrics{}, NewLimits(), nil)
	t.Cleanup(reg.Close)
	gw := NewGateway(reg, nil)

	// 读默认配置
	rec := httptest.NewRecorder()
	gw.HandleAdminConfig(rec, httptest.NewRequest(http.MethodGet, "/admin/config", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status %d", rec.Code)
	}
	var got struct {
		MsgRate *float64 `json:"msgRate"`
		KeyLen  *int     `json:"keyLen"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if got.MsgRate == nil || *got.MsgRate <= 0 || got.KeyLen == nil || *got.KeyLen != 32 {
		t.Fatalf("unexpected defaults: %s", rec.Body.String())
	}

	// 热更新部分字段
	body := strings.NewReader(`{"msgRate":60,"keyLen":16}`)
	rec = httptest.NewRecorder()
	gw.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status %d", rec.Code)
	}
	if rate, _ := gw.limits.MsgRate(); rate != 60 {
		t.Fatalf("msgRate = %v after update", rate)
	}
	if gw.limits.KeyLen() != 16 {
		t.Fatalf("keyLen = %d after update", gw.limits.KeyLen())
	}

	// 越界的 keyLen 被忽略
	rec = httptest.NewRecorder()
	gw.HandleAdminConfig(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(`{"keyLen":4}`)))
	if gw.limits.KeyLen() != 16 {
		t.Fatalf("out-of-range keyLen accepted: %d", gw.limits.KeyLen())
	}

	rec = httptest.NewRecorder()
	gw.HandleAdminConfig(rec, httptest.NewRequest(http.MethodDelete, "/admin/config", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE status %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := &Metrics{}
	reg := NewRegistry(m, NewLimits(), nil)
	t.Cleanup(reg.Close)
	gw := NewGateway(reg, nil)

	m.IncMalformed()
	m.IncCommandsRouted()

	rec := httptest.NewRecorder()
	gw.HandleMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var payload struct {
		Sessions int              `json:"sessions"`
		Metrics  map[string]int64 `json:"metrics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if payload.Sessions != 0 {
		t.Fatalf("sessions = %d, want 0", payload.Sessions)
	}
	if payload.Metrics["malformed_dropped"] != 1 || payload.Metrics["commands_routed"] != 1 {
		t.Fatalf("counters wrong: %v", payload.Metrics)
	}
}
