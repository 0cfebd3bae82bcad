package token

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateTokenSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate-token" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req["participant_name"] == "" || req["room_name"] == "" {
			t.Fatalf("missing fields in request: %v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"token":     "jwt-abc",
			"url":       "ws://localhost:7880",
			"room_name": req["room_name"],
		})
	}))
	defer srv.Close()

	creds, err := NewClient(srv.URL).GenerateToken(context.Background(), "room-patient-1", "patient-1")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if creds.Token != "jwt-abc" {
		t.Fatalf("unexpected token: %s", creds.Token)
	}
	if creds.URL != "ws://localhost:7880" {
		t.Fatalf("unexpected url: %s", creds.URL)
	}
	if string(creds.Room) != "room-patient-1" {
		t.Fatalf("unexpected room: %s", creds.Room)
	}
}

func TestGenerateTokenServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GenerateToken(context.Background(), "room-x", "patient-x")
	if err == nil {
		t.Fatalf("expected non-2xx to fail")
	}
}

func TestGenerateTokenEmptyBodyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GenerateToken(context.Background(), "room-x", "patient-x")
	if !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", err)
	}
}
