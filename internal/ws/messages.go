package ws

import "encoding/json"

// JSON-RPC 2.0 framing for the Solana WebSocket endpoint. Outbound messages
// are {id, method, params}; inbound messages are either {id, result|error}
// responses or {method, params} notifications.

// Request is an outbound JSON-RPC request.
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// envelope is the union shape of every inbound message.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ResponseError is the error field of a JSON-RPC response.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	return e.Message
}

// Subscription notification methods.
const (
	methodAccountNotification   = "accountNotification"
	methodLogsNotification      = "logsNotification"
	methodSignatureNotification = "signatureNotification"
)

// notificationParams is the params shape of subscription notifications.
type notificationParams struct {
	Subscription int64              `json:"subscription"`
	Result       notificationResult `json:"result"`
}

type notificationResult struct {
	Context *notificationContext `json:"context"`
	Value   json.RawMessage      `json:"value"`
}

type notificationContext struct {
	Slot int64 `json:"slot"`
}

// accountValue is the value of an accountNotification: the updated account
// snapshot for a watched wallet.
type accountValue struct {
	Lamports uint64 `json:"lamports"`
}
