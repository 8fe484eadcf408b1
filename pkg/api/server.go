package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/events"
	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/exchange"
)

// Server exposes the exchange over REST and streams its event journal
// over WebSocket. Mutating requests carry the caller address in the
// body; this is the trusted devnet surface, not an authenticated one.
type Server struct {
	ex     *exchange.Exchange
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer wires a server to the exchange and hooks the event stream.
func NewServer(ex *exchange.Exchange, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		ex:     ex,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	ex.OnEvent = s.broadcastEvent
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Ledger
	api.HandleFunc("/deposits/native", s.handleDepositNative).Methods("POST")
	api.HandleFunc("/deposits/token", s.handleDepositToken).Methods("POST")
	api.HandleFunc("/withdrawals", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/balances/{asset}/{account}", s.handleGetBalance).Methods("GET")

	// Orders
	api.HandleFunc("/orders", s.handleMakeOrder).Methods("POST")
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/fill", s.handleFillOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")

	// Fee control
	api.HandleFunc("/fee", s.handleGetFee).Methods("GET")
	api.HandleFunc("/fee/account", s.handleChangeFeeAccount).Methods("POST")
	api.HandleFunc("/fee/percent", s.handleChangeFeePercent).Methods("POST")

	// Event journal
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the hub and serves HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Ledger handlers
// ==============================

func (s *Server) handleDepositNative(w http.ResponseWriter, r *http.Request) {
	var req DepositNativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	from, ok := parseAddress(w, req.From, "from")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	if err := s.ex.DepositNative(from, amount); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleDepositToken(w http.ResponseWriter, r *http.Request) {
	var req DepositTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	from, ok := parseAddress(w, req.From, "from")
	if !ok {
		return
	}
	tokenAddr, ok := parseAddress(w, req.Token, "token")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	if err := s.ex.DepositToken(from, tokenAddr, amount); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	from, ok := parseAddress(w, req.From, "from")
	if !ok {
		return
	}
	asset, ok := parseAddress(w, req.Asset, "asset")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	if err := s.ex.Withdraw(from, asset, amount); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !common.IsHexAddress(vars["asset"]) || !common.IsHexAddress(vars["account"]) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	asset := common.HexToAddress(vars["asset"])
	account := common.HexToAddress(vars["account"])
	balance := s.ex.BalanceOf(asset, account)

	respondJSON(w, BalanceResponse{
		Asset:   asset.Hex(),
		Account: account.Hex(),
		Balance: balance.Text(10),
	})
}

// ==============================
// Order handlers
// ==============================

func (s *Server) handleMakeOrder(w http.ResponseWriter, r *http.Request) {
	var req MakeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	from, ok := parseAddress(w, req.From, "from")
	if !ok {
		return
	}
	tokenGet, ok := parseAddress(w, req.TokenGet, "tokenGet")
	if !ok {
		return
	}
	tokenGive, ok := parseAddress(w, req.TokenGive, "tokenGive")
	if !ok {
		return
	}
	amountGet, ok := parseAmount(w, req.AmountGet)
	if !ok {
		return
	}
	amountGive, ok := parseAmount(w, req.AmountGive)
	if !ok {
		return
	}

	id, err := s.ex.MakeOrder(from, tokenGet, amountGet, tokenGive, amountGive)
	if err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, MakeOrderResponse{ID: id, Status: "open"})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.ex.OpenOrders()
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = orderInfo(o, exchange.StatusOpen)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	order, err := s.ex.Orders(id)
	if err != nil {
		respondExchangeError(w, err)
		return
	}
	status, err := s.ex.OrderStatus(id)
	if err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, orderInfo(order, status))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	from, ok := parseAddress(w, req.From, "from")
	if !ok {
		return
	}
	if err := s.ex.CancelOrder(from, req.ID); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "cancelled"})
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	from, ok := parseAddress(w, req.From, "from")
	if !ok {
		return
	}
	if err := s.ex.FillOrder(from, req.ID); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "filled"})
}

// ==============================
// Fee handlers
// ==============================

func (s *Server) handleGetFee(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, FeeInfo{
		FeeAccount: s.ex.FeeAccount().Hex(),
		Admin:      s.ex.Admin().Hex(),
		FeePercent: s.ex.FeePercent(),
	})
}

func (s *Server) handleChangeFeeAccount(w http.ResponseWriter, r *http.Request) {
	var req ChangeFeeAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	from, ok := parseAddress(w, req.From, "from")
	if !ok {
		return
	}
	newAccount, ok := parseAddress(w, req.NewAccount, "newAccount")
	if !ok {
		return
	}
	if err := s.ex.ChangeFeeAccount(from, newAccount); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

func (s *Server) handleChangeFeePercent(w http.ResponseWriter, r *http.Request) {
	var req ChangeFeePercentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	from, ok := parseAddress(w, req.From, "from")
	if !ok {
		return
	}
	if err := s.ex.ChangeFeePercent(from, req.Percent); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "ok"})
}

// ==============================
// Event journal
// ==============================

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	var after uint64
	limit := 100
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid after cursor", err.Error())
			return
		}
		after = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", "")
			return
		}
		limit = n
	}

	evts, err := s.ex.Events(after, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read events", err.Error())
		return
	}
	if evts == nil {
		evts = []events.Event{}
	}
	respondJSON(w, evts)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// broadcastEvent fans a committed event out to WebSocket subscribers.
func (s *Server) broadcastEvent(evt events.Event) {
	s.hub.BroadcastToChannel("events", evt)
	if evt.Type == events.TypeTrade {
		s.hub.BroadcastToChannel("trades", evt)
	}
}

// ==============================
// Helpers
// ==============================

func orderInfo(o *exchange.Order, status exchange.Status) OrderInfo {
	return OrderInfo{
		ID:         o.ID,
		User:       o.User.Hex(),
		TokenGet:   o.TokenGet.Hex(),
		AmountGet:  o.AmountGet.Text(10),
		TokenGive:  o.TokenGive.Hex(),
		AmountGive: o.AmountGive.Text(10),
		Status:     string(status),
		CreatedAt:  o.CreatedAt,
	}
}

func parseAddress(w http.ResponseWriter, s, field string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid address", field)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAmount(w http.ResponseWriter, s string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		respondError(w, http.StatusBadRequest, "invalid amount", s)
		return nil, false
	}
	return amount, true
}

// respondExchangeError maps the exchange failure taxonomy onto HTTP
// status codes.
func respondExchangeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exchange.ErrZeroAmount),
		errors.Is(err, exchange.ErrInvalidAsset),
		errors.Is(err, exchange.ErrFeeOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, exchange.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, exchange.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exchange.ErrInsufficientBalance),
		errors.Is(err, exchange.ErrAlreadyCancelled),
		errors.Is(err, exchange.ErrAlreadyFilled):
		status = http.StatusConflict
	case errors.Is(err, exchange.ErrAssetTransferFailed):
		status = http.StatusBadGateway
	}
	respondError(w, status, err.Error(), "")
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
