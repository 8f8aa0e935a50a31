package camera

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatusLabel(t *testing.T) {
	tests := map[Status]string{
		StatusOnline:  "Online",
		StatusOffline: "Offline",
		StatusError:   "Error",
		"":            "",
	}
	for st, want := range tests {
		if got := st.Label(); got != want {
			t.Errorf("%q.Label() = %q, want %q", st, got, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if st, err := ParseStatus(" Offline "); err != nil || st != StatusOffline {
		t.Fatalf("ParseStatus = %q, %v", st, err)
	}
	if _, err := ParseStatus("rebooting"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestStatusRecordDecode(t *testing.T) {
	body := `[
		{"id": "cam1", "status": "offline"},
		{"id": 42, "status": "online", "last_seen": "2025-03-01T11:58:00.123456"},
		{"id": "cam3", "status": "error", "last_seen": "2025-03-01T10:00:00Z"}
	]`

	var records []StatusRecord
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records", len(records))
	}

	if records[0].ID != "cam1" || records[0].Status != StatusOffline || records[0].LastSeen != nil {
		t.Errorf("record 0 = %+v", records[0])
	}
	if records[1].ID != "42" || records[1].Status != StatusOnline {
		t.Errorf("record 1 = %+v", records[1])
	}
	want := time.Date(2025, 3, 1, 11, 58, 0, 123456000, time.UTC)
	if records[1].LastSeen == nil || !records[1].LastSeen.Equal(want) {
		t.Errorf("record 1 last_seen = %v, want %v", records[1].LastSeen, want)
	}
	if records[2].LastSeen == nil || records[2].LastSeen.Hour() != 10 {
		t.Errorf("record 2 last_seen = %v", records[2].LastSeen)
	}
}

func TestStatusRecordRejectsUnknownStatus(t *testing.T) {
	var rec StatusRecord
	if err := json.Unmarshal([]byte(`{"id":"x","status":"melting"}`), &rec); err == nil {
		t.Fatal("expected error")
	}
}

func TestStatusRecordEncode(t *testing.T) {
	seen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out, err := json.Marshal([]StatusRecord{
		{ID: "cam1", Status: StatusOnline, LastSeen: &seen},
		{ID: "cam2", Status: StatusOffline},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"id":"cam1","status":"online","last_seen":"2025-03-01T12:00:00Z"},{"id":"cam2","status":"offline"}]`
	if string(out) != want {
		t.Fatalf("got %s\nwant %s", out, want)
	}
}
