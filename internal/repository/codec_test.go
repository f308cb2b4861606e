package repository

import (
	"strings"
	"testing"

	"quakescope/internal/model"
)

func TestDecodeRegistrations_StoreFileFormat(t *testing.T) {
	data := []byte(`[
	  {
	    "token": "abc",
	    "created_at": 1700000000,
	    "updated_at": 1700000100,
	    "metadata": {"platform": "android"},
	    "preferences": {
	      "latitude": 35.6,
	      "longitude": 139.7,
	      "radius_km": 250,
	      "minimum_magnitude": null,
	      "updated_at": 1700000100
	    },
	    "delivered_ids": ["us7000abcd"]
	  }
	]`)

	regs, err := decodeRegistrations(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regs) != 1 {
		t.Fatalf("expected 1 registration, got %d", len(regs))
	}

	r := regs[0]
	if r.Preferences == nil || r.Preferences.RadiusKm == nil || *r.Preferences.RadiusKm != 250 {
		t.Errorf("unexpected preferences %+v", r.Preferences)
	}
	if r.Preferences.MinimumMagnitude != nil {
		t.Error("null minimum_magnitude should decode as nil")
	}
	if !r.HasDelivered("us7000abcd") {
		t.Error("expected delivered id")
	}

	t.Log("✓ Persisted field names decode")
}

func TestDecodeRegistrations_DropsBlankAndDuplicateTokens(t *testing.T) {
	data := []byte(`[
	  {"token": "a", "created_at": 1},
	  {"token": ""},
	  {"token": "b", "created_at": 2},
	  {"token": "a", "created_at": 3}
	]`)

	regs, err := decodeRegistrations(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("expected 2 registrations, got %d", len(regs))
	}
	if regs[0].Token != "a" || regs[0].CreatedAt != 3 {
		t.Errorf("later duplicate should replace the earlier one in place, got %+v", regs[0])
	}
	if regs[1].Token != "b" {
		t.Errorf("unexpected order: %s", regs[1].Token)
	}

	t.Log("✓ Blank tokens dropped, duplicates collapse")
}

func TestDecodeRegistrations_NonStringMetadata(t *testing.T) {
	data := []byte(`[
	  {"token": "A", "metadata": {"appVersion": 3, "beta": true, "build": 12.5, "locale": "ja-JP", "gone": null}},
	  {"token": "B"}
	]`)

	regs, err := decodeRegistrations(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("expected 2 registrations, got %d", len(regs))
	}

	want := map[string]string{"appVersion": "3", "beta": "true", "build": "12.5", "locale": "ja-JP"}
	got := regs[0].Metadata
	if len(got) != len(want) {
		t.Fatalf("unexpected metadata %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("metadata[%s] = %q, want %q", k, got[k], v)
		}
	}
	if regs[1].Token != "B" {
		t.Errorf("unexpected second token %q", regs[1].Token)
	}

	t.Log("✓ Scalar metadata values are kept as strings")
}

func TestDecodeRegistrations_SkipsUnreadableEntries(t *testing.T) {
	data := []byte(`[
	  {"token": "a"},
	  {"token": 42},
	  "not an object",
	  null,
	  {"token": "b", "delivered_ids": "eq-1"},
	  {"token": "c"}
	]`)

	regs, err := decodeRegistrations(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regs) != 2 || regs[0].Token != "a" || regs[1].Token != "c" {
		t.Errorf("expected [a c], got %+v", regs)
	}

	t.Log("✓ Only unreadable entries are dropped")
}

func TestDecodeRegistrations_Malformed(t *testing.T) {
	cases := map[string]string{
		"garbage": "{not json",
		"object":  `{"token": "a"}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := decodeRegistrations([]byte(input)); err == nil {
				t.Error("expected an error")
			}
		})
	}

	regs, err := decodeRegistrations([]byte("  \n"))
	if err != nil || regs != nil {
		t.Errorf("blank input should be empty, got %v, %v", regs, err)
	}

	t.Log("✓ Malformed documents are reported")
}

func TestEncodeRegistrations_EmptyIsArray(t *testing.T) {
	data, err := encodeRegistrations(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("expected [], got %s", data)
	}

	data, err = encodeRegistrations([]*model.Registration{{Token: "a", CreatedAt: 1, UpdatedAt: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  {") {
		t.Errorf("expected indented output, got %s", data)
	}

	t.Log("✓ Encoding is an indented JSON array")
}
