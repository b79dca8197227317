// internal/server/protocol.go
package server

import "time"

// Operations understood by the server.
const (
	OpGet     = "get"
	OpPut     = "put"
	OpMonitor = "monitor"
	OpList    = "list"
	OpInfo    = "info"
)

// Request is one line sent by a client.
type Request struct {
	ID    string   `json:"id,omitempty"`
	Op    string   `json:"op"`
	PV    string   `json:"pv,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

// Response is one line sent by the server.
// A monitor request produces one Response per update, all carrying the request id.
type Response struct {
	ID    string     `json:"id,omitempty"`
	OK    bool       `json:"ok"`
	PV    string     `json:"pv,omitempty"`
	Value *float64   `json:"value,omitempty"`
	TS    *time.Time `json:"ts,omitempty"`
	Error string     `json:"error,omitempty"`

	Names []string `json:"names,omitempty"`
	Info  *Info    `json:"info,omitempty"`
}

// Info describes a PV.
type Info struct {
	Kind     string `json:"kind"`
	ReadOnly bool   `json:"read_only"`
	Units    string `json:"units,omitempty"`
	Doc      string `json:"doc,omitempty"`
}
