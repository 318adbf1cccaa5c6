package at

import "strings"

const (
	// Terminal control
	CRLF   = "\r\n"
	Prefix = "AT+"

	// Response status tokens
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"

	// TypeUnknown is assigned to any line that does not match the
	// TYPE-MSG grammar.
	TypeUnknown = "UNKNOWN"

	// Command names (AT+<name>)
	CmdVersion      = "VER"
	CmdRole         = "MRG"
	CmdRestart      = "RST"
	CmdClearNetwork = "NR"
	CmdDiscover     = "DIS"
	CmdOpenBearer   = "PBADVCON"
	CmdProvision    = "PROV"
	CmdAddAppKey    = "AKA"
	CmdBindModel    = "MAKB"
	CmdListNodes    = "NL"
	CmdRemoveNode   = "MRN"
	CmdSetPublish   = "MPAS"
	CmdClearPublish = "MPAD"
	CmdAddSub       = "MSAA"
	CmdRemoveSub    = "MSAD"
	CmdSendData     = "MDTS"

	// Notification message types (parsed form, without the -MSG suffix)
	TypeMeshData  = "MDTG"
	TypeVendor    = "MDTS"
	TypeMeshPage  = "MDTPG"
	TypeDiscover  = "DIS"
	TypeProvision = "PROV"
	TypeNodeReset = "NR"
	TypeNodeList  = "NL"
)

// notificationPrefixes is the fixed set of unsolicited message classes the
// module emits. Lines matching one of these prefixes that no pending
// command claims are routed to the notification queue.
var notificationPrefixes = []string{
	"MDTG-MSG",
	"MDTS-MSG",
	"MDTPG-MSG",
	"DIS-MSG",
	"PROV-MSG",
	"NR-MSG",
	"NL-MSG",
}

// IsNotification reports whether a raw line belongs to the notification
// class. The check runs against the raw line, not the parsed type, so that
// lines the grammar cannot parse (e.g. "NL-MSG" with no parameters) are
// still classified correctly.
func IsNotification(raw string) bool {
	for _, p := range notificationPrefixes {
		if strings.HasPrefix(raw, p) {
			return true
		}
	}
	return false
}
