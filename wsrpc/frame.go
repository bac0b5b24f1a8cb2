// Package wsrpc carries bifrost calls over a single WebSocket connection.
//
// Each call is one text frame {"id","path","argument"}, answered by one
// frame {"id","result"} or {"id","error"} with the same id. Calls on a
// connection run concurrently and may complete in any order.
package wsrpc

import (
	"encoding/json"

	"github.com/broady/bifrost"
)

// maxMessageSize bounds a single frame in either direction.
const maxMessageSize = 1 << 20

type requestFrame struct {
	ID       string          `json:"id"`
	Path     bifrost.Path    `json:"path"`
	Argument json.RawMessage `json:"argument,omitempty"`
}

type responseFrame struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *bifrost.Error  `json:"error,omitempty"`
}
