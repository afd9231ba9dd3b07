package device

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestGeneratedIMEIPassesLuhn(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := generate()
		if len(id.IMEI) != 15 {
			t.Fatalf("IMEI length = %d, want 15: %s", len(id.IMEI), id.IMEI)
		}
		if !luhnValid(id.IMEI) {
			t.Fatalf("generated IMEI fails Luhn check: %s", id.IMEI)
		}
	}
}

func TestLuhnCheckDigit(t *testing.T) {
	cases := []struct {
		body string
		want int
	}{
		{"86427531901234", 3},
		{"35503104421354", 0},
	}
	for _, c := range cases {
		if got := luhnCheckDigit(c.body); got != c.want {
			t.Errorf("luhnCheckDigit(%s) = %d, want %d", c.body, got, c.want)
		}
	}
}

func TestLoadOrCreatePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")

	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("first LoadOrCreate: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("identity file was not written: %v", err)
	}

	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate: %v", err)
	}
	if first.IMEI != second.IMEI || first.ClientID != second.ClientID || first.CUID != second.CUID {
		t.Fatalf("identity changed across runs: %+v vs %+v", first, second)
	}
}

func TestLoadOrCreateRegeneratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	id, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate on corrupt file: %v", err)
	}
	if !luhnValid(id.IMEI) {
		t.Fatalf("regenerated identity has invalid IMEI: %s", id.IMEI)
	}

	// The corrupt file must have been replaced with a valid one.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var reloaded Identity
	if err := json.Unmarshal(data, &reloaded); err != nil {
		t.Fatalf("rewritten file is not valid JSON: %v", err)
	}
	if reloaded.IMEI != id.IMEI {
		t.Fatalf("persisted IMEI %s does not match in-memory %s", reloaded.IMEI, id.IMEI)
	}
}

func TestParamsExposeDeviceFields(t *testing.T) {
	id := generate()
	params := id.Params()
	if params["_phone_imei"] != id.IMEI {
		t.Errorf("_phone_imei = %s, want %s", params["_phone_imei"], id.IMEI)
	}
	if params["model"] != id.Model {
		t.Errorf("model = %s, want %s", params["model"], id.Model)
	}
	if params["cuid"] == "" || params["_client_id"] == "" {
		t.Error("cuid and _client_id must be populated")
	}
}
