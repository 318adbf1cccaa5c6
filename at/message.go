package at

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Message is one parsed line from the provisioner module. It is immutable
// once constructed; Parse is the only producer.
type Message struct {
	// Type is the message type without the -MSG suffix (e.g. "VER",
	// "DIS"), or TypeUnknown for lines that do not match the grammar.
	Type string
	// Status is StatusSuccess, StatusError, or empty when the line
	// carried no status token (typical for unsolicited notifications).
	Status string
	// Params are the remaining whitespace-separated tokens, in order.
	Params []string
	// Raw is the trimmed original line.
	Raw string
}

// grammar matches "TYPE-MSG <rest>". TYPE is alphanumeric. Lines without
// a rest portion (bare "TYPE-MSG") deliberately do not match; the firmware
// never sends them and treating them as UNKNOWN keeps parsing total.
var grammar = regexp.MustCompile(`^(\w+)-MSG\s+(.*)$`)

// Parse classifies a single line. It never fails: malformed input degrades
// to a Message with Type == TypeUnknown carrying the raw line as its only
// parameter. Invalid UTF-8 sequences are replaced rather than rejected.
func Parse(line string) *Message {
	raw := strings.TrimSpace(strings.ToValidUTF8(line, string(utf8.RuneError)))
	if raw == "" {
		return &Message{Params: []string{}, Raw: raw}
	}

	m := grammar.FindStringSubmatch(raw)
	if m == nil {
		return &Message{Type: TypeUnknown, Params: []string{raw}, Raw: raw}
	}

	params := strings.Fields(m[2])
	status := ""
	if len(params) > 0 && (params[0] == StatusSuccess || params[0] == StatusError) {
		status = params[0]
		params = params[1:]
	}

	return &Message{Type: m[1], Status: status, Params: params, Raw: raw}
}

// IsSuccess reports whether the message carries a SUCCESS status.
func (m *Message) IsSuccess() bool {
	return m.Status == StatusSuccess
}

// IsError reports whether the message carries an ERROR status.
func (m *Message) IsError() bool {
	return m.Status == StatusError
}

// Param returns the parameter at index i, or def when out of range.
func (m *Message) Param(i int, def string) string {
	if i >= 0 && i < len(m.Params) {
		return m.Params[i]
	}
	return def
}
