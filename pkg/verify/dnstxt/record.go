package dnstxt

import "strings"

// recordPrefix tags TXT records carrying a ledger identity claim, e.g.
//
//	openatts net=ethereum netId=3 addr=0x2f60375e8144e16Adf1979936301D8341D58C36C
const recordPrefix = "openatts"

// Record is one parsed identity claim from a TXT record.
type Record struct {
	Net   string
	NetID string
	Addr  string
}

// parseRecord extracts a Record from one TXT string. Records without the
// prefix or without all three fields are not claims and are dropped.
func parseRecord(txt string) (Record, bool) {
	fields := strings.Fields(strings.TrimSpace(txt))
	if len(fields) == 0 || fields[0] != recordPrefix {
		return Record{}, false
	}

	var record Record
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "net":
			record.Net = value
		case "netId":
			record.NetID = value
		case "addr":
			record.Addr = value
		}
	}
	if record.Net == "" || record.NetID == "" || record.Addr == "" {
		return Record{}, false
	}
	return record, true
}

// Matches reports whether the claim binds the given address on the given
// ledger. Address comparison is case-insensitive: checksummed and plain hex
// renderings of one address are the same claim.
func (r Record) Matches(net, netID, addr string) bool {
	return r.Net == net && r.NetID == netID && strings.EqualFold(r.Addr, addr)
}
