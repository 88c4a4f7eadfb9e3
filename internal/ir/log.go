package ir

// Log is one committed event record.
//
// Seq comes from the engine's logical clock and totally orders logs across
// transactions. TxID is the UUIDv7 of the message that emitted it. Data is
// RFC 8785 canonical JSON.
type Log struct {
	Seq     int64   `json:"seq"`
	TxID    string  `json:"tx_id"`
	Address Address `json:"address"`
	Event   string  `json:"event"`
	Data    []byte  `json:"-"`
}

// LogFilter selects logs. Zero fields match everything.
type LogFilter struct {
	Address  Address
	Event    string
	AfterSeq int64
	Limit    int
}

// Matches reports whether l passes the filter.
func (f LogFilter) Matches(l Log) bool {
	if !f.Address.IsZero() && l.Address != f.Address {
		return false
	}
	if f.Event != "" && l.Event != f.Event {
		return false
	}
	return l.Seq > f.AfterSeq
}
