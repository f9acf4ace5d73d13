package ftpclient_test

import (
	"testing"

	"zakupki/ingest-service/internal/ftpclient"
)

// ── AfterCutoff — date token comparison ────────────────────────────────────

func TestAfterCutoff_TokenComparison(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		cutoff   string
		want     bool
	}{
		{"newer", "notification_20240615_001.xml.zip", "20240101", true},
		{"older", "notification_20231231_001.xml.zip", "20240101", false},
		{"equal is excluded", "notification_20240101_001.xml.zip", "20240101", false},
		{"one day newer", "20240102.xml.zip", "20240101", true},
		{"token at start", "20250101_batch.zip", "20241231", true},
		{"token at end", "contract_dump_20240401", "20240501", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ftpclient.AfterCutoff(c.filename, c.cutoff); got != c.want {
				t.Errorf("AfterCutoff(%q, %q) = %v, want %v", c.filename, c.cutoff, got, c.want)
			}
		})
	}
}

// ── AfterCutoff — no 8-digit token means exclude ───────────────────────────

func TestAfterCutoff_NoToken(t *testing.T) {
	names := []string{
		"",
		"notification.xml.zip",
		"dump_1234567.zip",   // 7 digits
		"v1_2024_06_15.zip",  // separated digits
		"readme.txt",
	}
	for _, name := range names {
		if ftpclient.AfterCutoff(name, "20240101") {
			t.Errorf("AfterCutoff(%q) = true, want false for name without 8-digit token", name)
		}
	}
}

// ── AfterCutoff — first token wins ─────────────────────────────────────────

func TestAfterCutoff_FirstTokenWins(t *testing.T) {
	// The leading 8-digit run is the date; later runs are batch numbers.
	if !ftpclient.AfterCutoff("20240615_99999999.zip", "20240101") {
		t.Error("expected first token 20240615 to be compared, not the batch number")
	}
	if ftpclient.AfterCutoff("20230615_99999999.zip", "20240101") {
		t.Error("expected first token 20230615 to exclude the file")
	}
}
