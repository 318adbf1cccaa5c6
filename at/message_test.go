package at

import (
	"reflect"
	"testing"
)

func TestParseSuccessResponse(t *testing.T) {
	msg := Parse("VER-MSG SUCCESS 1.0.0")

	if msg.Type != "VER" {
		t.Errorf("Type: got %q, want VER", msg.Type)
	}
	if !msg.IsSuccess() || msg.IsError() {
		t.Errorf("status: got %q", msg.Status)
	}
	if !reflect.DeepEqual(msg.Params, []string{"1.0.0"}) {
		t.Errorf("Params: got %q", msg.Params)
	}
	if msg.Raw != "VER-MSG SUCCESS 1.0.0" {
		t.Errorf("Raw: got %q", msg.Raw)
	}
}

func TestParseErrorResponse(t *testing.T) {
	msg := Parse("PROV-MSG ERROR 5")

	if msg.Type != "PROV" {
		t.Errorf("Type: got %q, want PROV", msg.Type)
	}
	if !msg.IsError() {
		t.Errorf("status: got %q, want ERROR", msg.Status)
	}
	if !reflect.DeepEqual(msg.Params, []string{"5"}) {
		t.Errorf("Params: got %q", msg.Params)
	}
}

func TestParseNotificationWithoutStatus(t *testing.T) {
	msg := Parse("DIS-MSG 655600000152 -48 0000000000000000000000000000ABCD")

	if msg.Type != "DIS" {
		t.Errorf("Type: got %q, want DIS", msg.Type)
	}
	if msg.Status != "" {
		t.Errorf("Status: got %q, want empty", msg.Status)
	}
	want := []string{"655600000152", "-48", "0000000000000000000000000000ABCD"}
	if !reflect.DeepEqual(msg.Params, want) {
		t.Errorf("Params: got %q, want %q", msg.Params, want)
	}
}

func TestParseUnknownFallback(t *testing.T) {
	for _, line := range []string{
		"garbage line",
		"SYSTEM READY",
		"VER-MSG", // bare type without a rest portion
	} {
		msg := Parse(line)
		if msg.Type != TypeUnknown {
			t.Errorf("Parse(%q).Type: got %q, want UNKNOWN", line, msg.Type)
		}
		if !reflect.DeepEqual(msg.Params, []string{line}) {
			t.Errorf("Parse(%q).Params: got %q", line, msg.Params)
		}
	}
}

func TestParseTrimsAndNormalizes(t *testing.T) {
	msg := Parse("  VER-MSG SUCCESS 1.0.0\r")

	if msg.Type != "VER" {
		t.Errorf("Type: got %q, want VER", msg.Type)
	}
	if msg.Raw != "VER-MSG SUCCESS 1.0.0" {
		t.Errorf("Raw: got %q", msg.Raw)
	}

	// Invalid UTF-8 degrades to UNKNOWN instead of failing.
	if got := Parse("\xff\xfe"); got.Type != TypeUnknown {
		t.Errorf("invalid UTF-8: got type %q, want UNKNOWN", got.Type)
	}
}

func TestParseEmptyLine(t *testing.T) {
	msg := Parse("  \r\n")

	if msg.Type != "" {
		t.Errorf("Type: got %q, want empty", msg.Type)
	}
	if len(msg.Params) != 0 {
		t.Errorf("Params: got %q, want none", msg.Params)
	}
}

func TestParamDefault(t *testing.T) {
	msg := Parse("NL-MSG 0 0x0100 1 1")

	if got := msg.Param(1, ""); got != "0x0100" {
		t.Errorf("Param(1): got %q", got)
	}
	if got := msg.Param(9, "fallback"); got != "fallback" {
		t.Errorf("Param(9): got %q, want fallback", got)
	}
	if got := msg.Param(-1, "fallback"); got != "fallback" {
		t.Errorf("Param(-1): got %q, want fallback", got)
	}
}

func TestIsNotification(t *testing.T) {
	cases := map[string]bool{
		"DIS-MSG AA -48 BB":       true,
		"NL-MSG 0 0x0100 1 1":     true,
		"NL-MSG":                  true, // unparseable but still a notification class
		"PROV-MSG SUCCESS 0x0100": true,
		"MDTG-MSG 0x0100 0 AB":    true,
		"VER-MSG SUCCESS 1.0.0":   false,
		"garbage":                 false,
	}

	for line, want := range cases {
		if got := IsNotification(line); got != want {
			t.Errorf("IsNotification(%q): got %t, want %t", line, got, want)
		}
	}
}
