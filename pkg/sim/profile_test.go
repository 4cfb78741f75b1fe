package sim

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestWithICCID(t *testing.T) {
	p := (&Profile{}).WithICCID("8945")
	if p.ICCID != "8945" {
		t.Errorf("ICCID = %q, want 8945", p.ICCID)
	}
	p = (&Profile{ICCID: "1111"}).WithICCID("8945")
	if p.ICCID != "1111" {
		t.Errorf("已有 ICCID 被覆盖: %q", p.ICCID)
	}
}

func TestProfileOmitsAbsentFields(t *testing.T) {
	out, err := json.Marshal(Profile{IMSI: "001010123456063"})
	if err != nil {
		t.Fatalf("json.Marshal 失败: %v", err)
	}
	if string(out) != `{"imsi":"001010123456063"}` {
		t.Errorf("got %s", out)
	}
}

func TestProfileIgnoresUnknownFields(t *testing.T) {
	var p Profile
	if err := json.NewDecoder(strings.NewReader(`{"k":"00","extra":1}`)).Decode(&p); err != nil {
		t.Fatalf("Decode 失败: %v", err)
	}
	if p.K != "00" {
		t.Errorf("K = %q", p.K)
	}
}

func TestEncryptedProfileValidate(t *testing.T) {
	if err := (EncryptedProfile{ICCID: "1"}).Validate(); !errors.Is(err, ErrNoPayload) {
		t.Errorf("got %v, want ErrNoPayload", err)
	}
	if err := (EncryptedProfile{Profile: "AA=="}).Validate(); err != nil {
		t.Errorf("got %v", err)
	}
}
