package notify

import (
	"testing"

	"github.com/jeterchen1226/fastapi-trello/pkg/models"
	"pgregory.net/rapid"
)

// genSeverity draws one of the two flash categories.
func genSeverity(t *rapid.T, label string) models.Severity {
	return rapid.SampledFrom([]models.Severity{models.SeveritySuccess, models.SeverityError}).Draw(t, label)
}

// Property: for every category and non-empty message, encoding then decoding
// yields the original pair.
func TestFlash_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sev := genSeverity(t, "severity")
		msg := rapid.StringN(1, 64, -1).Draw(t, "message")

		sig, ok := DecodeFlash(EncodeFlash(sev, msg))
		if !ok {
			t.Fatalf("decode failed for %q", msg)
		}
		if sig.Severity != sev || sig.Message != msg {
			t.Fatalf("round trip = %+v, want %s/%q", sig, sev, msg)
		}
	})
}

// Property: the flash cookie fires at most once across consecutive loads.
func TestFlash_SingleReadProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sev := genSeverity(t, "severity")
		msg := rapid.StringN(1, 32, -1).Draw(t, "message")
		loads := rapid.IntRange(2, 5).Draw(t, "loads")

		jar := &fakeCookies{values: map[string]string{"flash_message": EncodeFlash(sev, msg)}}
		slot := NewSlot()
		a := NewArbiter(slot, models.DefaultMarkup())
		for i := 0; i < loads; i++ {
			a.Run(models.TriggerLoad, Scope{Cookies: jar})
		}
		if slot.Pending() != 1 {
			t.Fatalf("alerts after %d loads = %d, want 1", loads, slot.Pending())
		}
		if _, present := jar.values["flash_message"]; present {
			t.Fatal("cookie still present after read")
		}
	})
}
