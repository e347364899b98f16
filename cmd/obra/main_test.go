package main

import (
	"testing"
	"time"
)

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Fatalf("expected 42, got %d (%v)", id, err)
	}
	for _, raw := range []string{"", "0", "-3", "abc"} {
		if _, err := parseID(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2026-03-31")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", got)
	}
	if got, err := parseDate(""); err != nil || got != nil {
		t.Fatalf("empty date should be nil, got %v (%v)", got, err)
	}
	if _, err := parseDate("31/03/2026"); err == nil {
		t.Fatalf("expected error for non-ISO date")
	}
}

func TestFieldTableCells(t *testing.T) {
	fields, err := jsonFields(struct {
		ID     int64           `json:"id"`
		Status string          `json:"status"`
		Docs   map[string]bool `json:"documents"`
		Notes  *string         `json:"notes"`
	}{ID: 7, Status: "Enviado", Docs: map[string]bool{"f30": true}})
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	want := map[string]string{"id": "7", "status": "Enviado", "documents": `{"f30":true}`, "notes": ""}
	for k, v := range want {
		if got := cellValue(fields[k]); got != v {
			t.Fatalf("%s: expected %q, got %q", k, v, got)
		}
	}
	if _, err := jsonFields([]int{1, 2}); err == nil {
		t.Fatal("a list has no field table")
	}
}
