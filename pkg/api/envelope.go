// Package api defines the wire types shared between the sync client and the
// remote sync service.
package api

import "encoding/json"

// Envelope is the uniform response wrapper returned by every sync endpoint.
// A Code in the 2xx range means Data carries the endpoint payload; any other
// code means Data carries an ErrorData describing the failure.
type Envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Ts   int64           `json:"ts"`
}

// OK reports whether the envelope code is in the 2xx success range.
func (e *Envelope) OK() bool {
	return e.Code >= 200 && e.Code < 300
}

// ErrorData is the payload carried by non-2xx envelopes.
type ErrorData struct {
	Message string `json:"message"`
}
