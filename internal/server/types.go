package server

import (
	"encoding/json"

	"github.com/roach88/diamond/internal/abi"
	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// CallRequest is the body of POST /v1/call and /v1/query.
//
// Data is hex call data. When it is empty, Function (a signature or a 0x
// selector) and Args build it instead.
type CallRequest struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Value    uint64   `json:"value,omitempty"`
	Data     string   `json:"data,omitempty"`
	Function string   `json:"function,omitempty"`
	Args     []string `json:"args,omitempty"`
	GasLimit uint64   `json:"gas_limit,omitempty"`
}

// Receipt is the JSON form of engine.Receipt.
type Receipt struct {
	TxID    string     `json:"tx_id"`
	Return  string     `json:"return"`
	Values  []string   `json:"values,omitempty"`
	GasUsed uint64     `json:"gas_used"`
	Address string     `json:"address,omitempty"`
	Logs    []Log      `json:"logs,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// Log is the JSON form of ir.Log with its payload inlined.
type Log struct {
	Seq     int64           `json:"seq"`
	TxID    string          `json:"tx_id"`
	Address ir.Address      `json:"address"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// ErrorBody carries an error code and message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Facet is one facet with its catalog name, when it has one.
type Facet struct {
	Address   ir.Address    `json:"address"`
	Name      string        `json:"name,omitempty"`
	Selectors []ir.Selector `json:"selectors"`
}

// FacetsResponse is the body of GET /v1/diamonds/{address}/facets.
type FacetsResponse struct {
	Diamond ir.Address `json:"diamond"`
	Owner   ir.Address `json:"owner"`
	Facets  []Facet    `json:"facets"`
}

// Module is one catalog entry.
type Module struct {
	Name        string        `json:"name"`
	Address     ir.Address    `json:"address"`
	Description string        `json:"description"`
	Selectors   []ir.Selector `json:"selectors,omitempty"`
}

// NewReceipt renders r. Return values are also decoded generically into
// Values when they parse.
func NewReceipt(r *engine.Receipt) Receipt {
	out := Receipt{
		TxID:    r.TxID,
		Return:  ir.FormatBytes(r.Return),
		GasUsed: r.GasUsed,
		Logs:    NewLogs(r.Logs),
	}
	if !r.Address.IsZero() {
		out.Address = r.Address.Hex()
	}
	if r.Err != nil {
		out.Error = NewErrorBody(r.Err)
		return out
	}
	if len(r.Return) > 0 {
		if vals, err := abi.FormatValues(r.Return); err == nil {
			out.Values = vals
		}
	}
	return out
}

// NewLogs renders logs.
func NewLogs(logs []ir.Log) []Log {
	if len(logs) == 0 {
		return nil
	}
	out := make([]Log, len(logs))
	for i, l := range logs {
		out[i] = Log{Seq: l.Seq, TxID: l.TxID, Address: l.Address, Event: l.Event, Data: json.RawMessage(l.Data)}
	}
	return out
}

// NewErrorBody renders an execution failure with its diamond or engine
// code.
func NewErrorBody(err error) *ErrorBody {
	code := diamond.ErrorCode(err)
	if code == "" {
		code = "ERROR"
	}
	return &ErrorBody{Code: code, Message: err.Error()}
}

// EncodeRequest builds call data from a request.
func EncodeRequest(req CallRequest) ([]byte, error) {
	if req.Data != "" {
		return ir.ParseBytes(req.Data)
	}
	if req.Function == "" {
		return []byte{}, nil
	}
	return abi.EncodeTextCall(req.Function, req.Args)
}
