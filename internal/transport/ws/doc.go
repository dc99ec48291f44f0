// Package ws exposes fusion sessions over WebSocket.
//
// Each connection gets its own session. The client sends one JSON request
// per message and receives exactly one reply for it:
//
//	-> {"type":"deal","cards":["Fire","Water","Earth"]}
//	<- {"type":"event","seq":1,"kind":"deal","hand":["Fire","Water","Earth"],"outcome":{...}}
//	-> {"type":"toggle_on","slot":0}
//	<- {"type":"event","seq":2,"kind":"toggle_on","handle":"slot-0","outcome":{...}}
//
// A "welcome" message carrying the session ID is sent on connect. Rejected
// operations are still "event" replies, with outcome.error set. Requests
// that cannot be decoded get an "error" reply and change nothing.
package ws
