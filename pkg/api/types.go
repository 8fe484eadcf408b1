package api

// Request/response types for the REST endpoints and WebSocket messages.
// Amounts travel as base-10 strings so arbitrary-precision values survive
// JSON round trips.

type DepositNativeRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type DepositTokenRequest struct {
	From   string `json:"from"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type WithdrawRequest struct {
	From   string `json:"from"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type MakeOrderRequest struct {
	From       string `json:"from"`
	TokenGet   string `json:"tokenGet"`
	AmountGet  string `json:"amountGet"`
	TokenGive  string `json:"tokenGive"`
	AmountGive string `json:"amountGive"`
}

// OrderRefRequest addresses an existing order for cancel and fill.
type OrderRefRequest struct {
	From string `json:"from"`
	ID   uint64 `json:"id"`
}

type ChangeFeeAccountRequest struct {
	From       string `json:"from"`
	NewAccount string `json:"newAccount"`
}

type ChangeFeePercentRequest struct {
	From    string `json:"from"`
	Percent uint64 `json:"percent"`
}

type BalanceResponse struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type OrderInfo struct {
	ID         uint64 `json:"id"`
	User       string `json:"user"`
	TokenGet   string `json:"tokenGet"`
	AmountGet  string `json:"amountGet"`
	TokenGive  string `json:"tokenGive"`
	AmountGive string `json:"amountGive"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"`
}

type MakeOrderResponse struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type FeeInfo struct {
	FeeAccount string `json:"feeAccount"`
	Admin      string `json:"admin"`
	FeePercent uint64 `json:"feePercent"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is the client->server control message on the
// WebSocket; channels are "events" and "trades".
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}
