package exchange

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/events"
	"github.com/Abdillahzakkie/blockchain-developer-bootcamp/pkg/util"
)

// Exchange is the custodial ledger + order book state machine. All state
// lives behind one mutex: every exported call validates, mutates and
// persists as a single atomic step, or fails leaving nothing changed.
//
// Collaborator calls (token transfers, native value-out) happen while the
// lock is held and are always the last step before the durable commit, so
// no caller can observe a half-applied operation.
type Exchange struct {
	mu    sync.Mutex
	log   *zap.SugaredLogger
	store *Store
	clock util.Clock

	addr   common.Address
	vault  NativeVault
	tokens map[common.Address]TokenContract

	admin      common.Address
	feeAccount common.Address
	feePercent uint64

	ledger     *ledger
	orders     map[uint64]*Order
	orderCount uint64
	cancelled  map[uint64]bool
	filled     map[uint64]bool

	eventSeq uint64

	// OnEvent, when set before the exchange starts serving, receives every
	// journaled event after its commit. It runs outside the state lock.
	OnEvent func(events.Event)
}

// Config carries the construction parameters of an Exchange.
type Config struct {
	// FeeAccount receives the withdrawal fee skim. The admin identity is
	// bootstrapped to this address and does not move when the fee account
	// is later reassigned.
	FeeAccount common.Address

	// FeePercent is the withdrawal fee in whole percent, 0 to 100.
	FeePercent uint64

	// Address is the exchange's own identity, used as the recipient of
	// token custody transfers. Defaults to DeployAddress.
	Address common.Address

	Store  *Store
	Vault  NativeVault
	Logger *zap.SugaredLogger

	// Clock stamps orders and events. Defaults to the wall clock.
	Clock util.Clock
}

// New builds an exchange, reloading any persisted state. Fee settings in
// the store win over the constructor values, so a restarted exchange
// keeps admin-applied changes.
func New(cfg Config) (*Exchange, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("exchange: store is required")
	}
	if cfg.Vault == nil {
		return nil, fmt.Errorf("exchange: native vault is required")
	}
	if cfg.FeeAccount == (common.Address{}) {
		return nil, fmt.Errorf("exchange: fee account is required")
	}
	if cfg.FeePercent > 100 {
		return nil, fmt.Errorf("exchange: %w: %d", ErrFeeOutOfRange, cfg.FeePercent)
	}
	if cfg.Address == (common.Address{}) {
		cfg.Address = DeployAddress
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Clock == nil {
		cfg.Clock = util.RealClock{}
	}

	st, err := cfg.Store.LoadState()
	if err != nil {
		return nil, fmt.Errorf("exchange: failed to load state: %w", err)
	}

	x := &Exchange{
		log:        cfg.Logger,
		store:      cfg.Store,
		clock:      cfg.Clock,
		addr:       cfg.Address,
		vault:      cfg.Vault,
		tokens:     make(map[common.Address]TokenContract),
		admin:      cfg.FeeAccount,
		feeAccount: cfg.FeeAccount,
		feePercent: cfg.FeePercent,
		ledger:     newLedger(),
		orders:     st.Orders,
		orderCount: st.OrderCount,
		cancelled:  st.Cancelled,
		filled:     st.Filled,
		eventSeq:   st.EventSeq,
	}
	for asset, accounts := range st.Balances {
		for account, amount := range accounts {
			x.ledger.set(asset, account, amount)
		}
	}

	if st.HasFeeConfig {
		x.admin = st.Admin
		x.feeAccount = st.FeeAccount
		x.feePercent = st.FeePercent
	} else {
		batch := x.store.NewBatch()
		defer batch.Close()
		if err := batch.SetAddress(metaAdmin, x.admin); err != nil {
			return nil, err
		}
		if err := batch.SetAddress(metaFeeAccount, x.feeAccount); err != nil {
			return nil, err
		}
		if err := batch.SetUint64(metaFeePercent, x.feePercent); err != nil {
			return nil, err
		}
		if err := batch.Commit(); err != nil {
			return nil, fmt.Errorf("exchange: failed to persist fee config: %w", err)
		}
	}

	x.log.Infow("exchange_ready",
		"address", x.addr.Hex(),
		"fee_account", x.feeAccount.Hex(),
		"fee_percent", x.feePercent,
		"orders", len(x.orders),
	)
	return x, nil
}

// RegisterToken makes a fungible-asset collaborator reachable under its
// address. Registering the native sentinel is invalid.
func (x *Exchange) RegisterToken(addr common.Address, contract TokenContract) error {
	if addr == NativeAsset {
		return ErrInvalidAsset
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tokens[addr] = contract
	return nil
}

// Address returns the exchange's own identity.
func (x *Exchange) Address() common.Address {
	return x.addr
}

// DepositNative credits the value attached to the call to the caller's
// native-asset ledger entry.
func (x *Exchange) DepositNative(from common.Address, amount *big.Int) error {
	evt, err := x.depositNative(from, amount)
	if err != nil {
		return err
	}
	x.emit(evt)
	return nil
}

func (x *Exchange) depositNative(from common.Address, amount *big.Int) (events.Event, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return events.Event{}, ErrZeroAmount
	}
	if err := x.vault.TransferIn(from, amount); err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
	}

	balance := x.ledger.credit(NativeAsset, from, amount)

	evt := x.nextEvent(events.TypeDeposit)
	evt.Deposit = &events.Deposit{
		Token:   NativeAsset,
		User:    from,
		Amount:  new(big.Int).Set(amount),
		Balance: new(big.Int).Set(balance),
	}

	batch := x.store.NewBatch()
	defer batch.Close()
	if err := batch.SetBalance(NativeAsset, from, balance); err != nil {
		return events.Event{}, err
	}
	if err := batch.AppendEvent(evt); err != nil {
		return events.Event{}, err
	}
	if err := batch.Commit(); err != nil {
		return events.Event{}, fmt.Errorf("failed to commit deposit: %w", err)
	}
	return evt, nil
}

// DepositToken pulls amount of token from the caller via the token
// contract's transferFrom (which requires a prior allowance grant to the
// exchange) and credits the caller's ledger entry.
func (x *Exchange) DepositToken(from, token common.Address, amount *big.Int) error {
	evt, err := x.depositToken(from, token, amount)
	if err != nil {
		return err
	}
	x.emit(evt)
	return nil
}

func (x *Exchange) depositToken(from, token common.Address, amount *big.Int) (events.Event, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if token == NativeAsset {
		return events.Event{}, fmt.Errorf("%w: native deposits must use DepositNative", ErrInvalidAsset)
	}
	if amount == nil || amount.Sign() <= 0 {
		return events.Event{}, ErrZeroAmount
	}

	contract, ok := x.tokens[token]
	if !ok {
		return events.Event{}, fmt.Errorf("%w: no token contract at %s", ErrAssetTransferFailed, token.Hex())
	}
	if err := contract.TransferFrom(from, x.addr, amount); err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
	}

	balance := x.ledger.credit(token, from, amount)

	evt := x.nextEvent(events.TypeDeposit)
	evt.Deposit = &events.Deposit{
		Token:   token,
		User:    from,
		Amount:  new(big.Int).Set(amount),
		Balance: new(big.Int).Set(balance),
	}

	batch := x.store.NewBatch()
	defer batch.Close()
	if err := batch.SetBalance(token, from, balance); err != nil {
		return events.Event{}, err
	}
	if err := batch.AppendEvent(evt); err != nil {
		return events.Event{}, err
	}
	if err := batch.Commit(); err != nil {
		return events.Event{}, fmt.Errorf("failed to commit deposit: %w", err)
	}
	return evt, nil
}

// Withdraw debits the caller's ledger entry by the full requested amount,
// credits the fee skim to the fee account, and releases the net amount
// out of custody. The debit happens before the outbound transfer; if the
// transfer is refused the ledger entries are restored and nothing is
// committed.
func (x *Exchange) Withdraw(from, asset common.Address, amount *big.Int) error {
	evt, err := x.withdraw(from, asset, amount)
	if err != nil {
		return err
	}
	x.emit(evt)
	return nil
}

func (x *Exchange) withdraw(from, asset common.Address, amount *big.Int) (events.Event, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return events.Event{}, ErrZeroAmount
	}
	if x.ledger.get(asset, from).Cmp(amount) < 0 {
		return events.Event{}, ErrInsufficientBalance
	}

	// fee = floor(amount * feePercent / 100)
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(x.feePercent))
	fee.Div(fee, big.NewInt(100))
	net := new(big.Int).Sub(amount, fee)

	balance, err := x.ledger.debit(asset, from, amount)
	if err != nil {
		return events.Event{}, err
	}
	feeBalance := x.ledger.credit(asset, x.feeAccount, fee)

	// Value leaves custody last. A refusal rolls the ledger back and the
	// operation fails whole.
	if asset == NativeAsset {
		err = x.vault.TransferOut(from, net)
	} else {
		contract, ok := x.tokens[asset]
		if !ok {
			err = fmt.Errorf("no token contract at %s", asset.Hex())
		} else {
			err = contract.Transfer(from, net)
		}
	}
	if err != nil {
		x.ledger.credit(asset, from, amount)
		if _, derr := x.ledger.debit(asset, x.feeAccount, fee); derr != nil {
			x.log.Errorw("fee_rollback_failed", "err", derr)
		}
		return events.Event{}, fmt.Errorf("%w: %v", ErrAssetTransferFailed, err)
	}

	evt := x.nextEvent(events.TypeWithdrawal)
	evt.Withdrawal = &events.Withdrawal{
		Token:   asset,
		User:    from,
		Amount:  new(big.Int).Set(amount),
		Balance: new(big.Int).Set(balance),
	}

	batch := x.store.NewBatch()
	defer batch.Close()
	if err := batch.SetBalance(asset, from, balance); err != nil {
		return events.Event{}, err
	}
	if err := batch.SetBalance(asset, x.feeAccount, feeBalance); err != nil {
		return events.Event{}, err
	}
	if err := batch.AppendEvent(evt); err != nil {
		return events.Event{}, err
	}
	if err := batch.Commit(); err != nil {
		return events.Event{}, fmt.Errorf("failed to commit withdrawal: %w", err)
	}
	return evt, nil
}

// BalanceOf returns the custodial ledger balance of account for asset.
func (x *Exchange) BalanceOf(asset, account common.Address) *big.Int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return new(big.Int).Set(x.ledger.get(asset, account))
}

// MakeOrder creates a resting order and returns its id. Orders carry no
// balance precondition; funds are checked at fill time.
func (x *Exchange) MakeOrder(from, tokenGet common.Address, amountGet *big.Int, tokenGive common.Address, amountGive *big.Int) (uint64, error) {
	evt, id, err := x.makeOrder(from, tokenGet, amountGet, tokenGive, amountGive)
	if err != nil {
		return 0, err
	}
	x.emit(evt)
	return id, nil
}

func (x *Exchange) makeOrder(from, tokenGet common.Address, amountGet *big.Int, tokenGive common.Address, amountGive *big.Int) (events.Event, uint64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if amountGet == nil || amountGet.Sign() <= 0 || amountGive == nil || amountGive.Sign() <= 0 {
		return events.Event{}, 0, ErrZeroAmount
	}

	id := x.orderCount + 1
	order := &Order{
		ID:         id,
		User:       from,
		TokenGet:   tokenGet,
		AmountGet:  new(big.Int).Set(amountGet),
		TokenGive:  tokenGive,
		AmountGive: new(big.Int).Set(amountGive),
		CreatedAt:  x.clock.Now().UnixMilli(),
	}

	evt := x.nextEvent(events.TypeOrder)
	evt.Order = &events.Order{
		ID:         id,
		User:       from,
		TokenGet:   tokenGet,
		AmountGet:  new(big.Int).Set(amountGet),
		TokenGive:  tokenGive,
		AmountGive: new(big.Int).Set(amountGive),
		Timestamp:  order.CreatedAt,
	}

	batch := x.store.NewBatch()
	defer batch.Close()
	if err := batch.PutOrder(order); err != nil {
		return events.Event{}, 0, err
	}
	if err := batch.SetUint64(metaOrderCount, id); err != nil {
		return events.Event{}, 0, err
	}
	if err := batch.AppendEvent(evt); err != nil {
		return events.Event{}, 0, err
	}
	if err := batch.Commit(); err != nil {
		return events.Event{}, 0, fmt.Errorf("failed to commit order: %w", err)
	}

	x.orderCount = id
	x.orders[id] = order
	return evt, id, nil
}

// CancelOrder marks an open order cancelled. Only the creator may cancel,
// and only once; filled orders cannot be cancelled.
func (x *Exchange) CancelOrder(from common.Address, id uint64) error {
	evt, err := x.cancelOrder(from, id)
	if err != nil {
		return err
	}
	x.emit(evt)
	return nil
}

func (x *Exchange) cancelOrder(from common.Address, id uint64) (events.Event, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	order, ok := x.orders[id]
	if !ok {
		return events.Event{}, ErrOrderNotFound
	}
	if order.User != from {
		return events.Event{}, ErrUnauthorized
	}
	if x.cancelled[id] {
		return events.Event{}, ErrAlreadyCancelled
	}
	if x.filled[id] {
		return events.Event{}, ErrAlreadyFilled
	}

	evt := x.nextEvent(events.TypeCancel)
	evt.Cancel = &events.Cancel{
		ID:         id,
		User:       order.User,
		TokenGet:   order.TokenGet,
		AmountGet:  new(big.Int).Set(order.AmountGet),
		TokenGive:  order.TokenGive,
		AmountGive: new(big.Int).Set(order.AmountGive),
		Timestamp:  evt.Timestamp,
	}

	batch := x.store.NewBatch()
	defer batch.Close()
	if err := batch.MarkCancelled(id); err != nil {
		return events.Event{}, err
	}
	if err := batch.AppendEvent(evt); err != nil {
		return events.Event{}, err
	}
	if err := batch.Commit(); err != nil {
		return events.Event{}, fmt.Errorf("failed to commit cancel: %w", err)
	}

	x.cancelled[id] = true
	return evt, nil
}

// FillOrder settles an open order against the caller's ledger balances:
// the caller pays AmountGet of TokenGet to the creator and receives
// AmountGive of TokenGive, atomically and without any fee skim. Creators
// cancel their own orders rather than fill them.
func (x *Exchange) FillOrder(from common.Address, id uint64) error {
	evt, err := x.fillOrder(from, id)
	if err != nil {
		return err
	}
	x.emit(evt)
	return nil
}

func (x *Exchange) fillOrder(from common.Address, id uint64) (events.Event, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	order, ok := x.orders[id]
	if !ok {
		return events.Event{}, ErrOrderNotFound
	}
	if x.cancelled[id] {
		return events.Event{}, ErrAlreadyCancelled
	}
	if x.filled[id] {
		return events.Event{}, ErrAlreadyFilled
	}
	if order.User == from {
		return events.Event{}, fmt.Errorf("%w: creator cannot fill own order", ErrUnauthorized)
	}
	if x.ledger.get(order.TokenGet, from).Cmp(order.AmountGet) < 0 {
		return events.Event{}, ErrInsufficientBalance
	}
	if x.ledger.get(order.TokenGive, order.User).Cmp(order.AmountGive) < 0 {
		return events.Event{}, ErrInsufficientBalance
	}

	// Two symmetric moves, zero net change per asset.
	fillerGet, err := x.ledger.debit(order.TokenGet, from, order.AmountGet)
	if err != nil {
		return events.Event{}, err
	}
	makerGet := x.ledger.credit(order.TokenGet, order.User, order.AmountGet)
	makerGive, err := x.ledger.debit(order.TokenGive, order.User, order.AmountGive)
	if err != nil {
		return events.Event{}, err
	}
	fillerGive := x.ledger.credit(order.TokenGive, from, order.AmountGive)

	evt := x.nextEvent(events.TypeTrade)
	evt.Trade = &events.Trade{
		ID:         id,
		User:       order.User,
		UserFill:   from,
		TokenGet:   order.TokenGet,
		AmountGet:  new(big.Int).Set(order.AmountGet),
		TokenGive:  order.TokenGive,
		AmountGive: new(big.Int).Set(order.AmountGive),
		Timestamp:  evt.Timestamp,
	}

	batch := x.store.NewBatch()
	defer batch.Close()
	if err := batch.SetBalance(order.TokenGet, from, fillerGet); err != nil {
		return events.Event{}, err
	}
	if err := batch.SetBalance(order.TokenGet, order.User, makerGet); err != nil {
		return events.Event{}, err
	}
	if err := batch.SetBalance(order.TokenGive, order.User, makerGive); err != nil {
		return events.Event{}, err
	}
	if err := batch.SetBalance(order.TokenGive, from, fillerGive); err != nil {
		return events.Event{}, err
	}
	if err := batch.MarkFilled(id); err != nil {
		return events.Event{}, err
	}
	if err := batch.AppendEvent(evt); err != nil {
		return events.Event{}, err
	}
	if err := batch.Commit(); err != nil {
		return events.Event{}, fmt.Errorf("failed to commit trade: %w", err)
	}

	x.filled[id] = true
	return evt, nil
}

// ChangeFeeAccount redirects future fee skims to newAccount. Admin
// authority stays with the original admin identity; it does not follow
// the fee account.
func (x *Exchange) ChangeFeeAccount(from, newAccount common.Address) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if from != x.admin {
		return ErrUnauthorized
	}

	batch := x.store.NewBatch()
	defer batch.Close()
	if err := batch.SetAddress(metaFeeAccount, newAccount); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("failed to commit fee account change: %w", err)
	}

	x.log.Infow("fee_account_changed", "old", x.feeAccount.Hex(), "new", newAccount.Hex())
	x.feeAccount = newAccount
	return nil
}

// ChangeFeePercent sets the withdrawal fee percentage. Values above 100
// are rejected.
func (x *Exchange) ChangeFeePercent(from common.Address, percent uint64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if from != x.admin {
		return ErrUnauthorized
	}
	if percent > 100 {
		return fmt.Errorf("%w: %d", ErrFeeOutOfRange, percent)
	}

	batch := x.store.NewBatch()
	defer batch.Close()
	if err := batch.SetUint64(metaFeePercent, percent); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("failed to commit fee percent change: %w", err)
	}

	x.log.Infow("fee_percent_changed", "old", x.feePercent, "new", percent)
	x.feePercent = percent
	return nil
}

// OrderCount returns the id of the most recently created order.
func (x *Exchange) OrderCount() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.orderCount
}

// Orders returns the order record for id.
func (x *Exchange) Orders(id uint64) (*Order, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	order, ok := x.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order.clone(), nil
}

// OrderStatus returns the lifecycle state of an order.
func (x *Exchange) OrderStatus(id uint64) (Status, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.orders[id]; !ok {
		return "", ErrOrderNotFound
	}
	switch {
	case x.cancelled[id]:
		return StatusCancelled, nil
	case x.filled[id]:
		return StatusFilled, nil
	default:
		return StatusOpen, nil
	}
}

// OpenOrders returns all orders that are neither cancelled nor filled,
// in creation order.
func (x *Exchange) OpenOrders() []*Order {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make([]*Order, 0, len(x.orders))
	for id, order := range x.orders {
		if x.cancelled[id] || x.filled[id] {
			continue
		}
		out = append(out, order.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CancelledOrders reports cancelled-set membership.
func (x *Exchange) CancelledOrders(id uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.cancelled[id]
}

// FilledOrders reports filled-set membership.
func (x *Exchange) FilledOrders(id uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.filled[id]
}

// FeeAccount returns the current fee skim recipient.
func (x *Exchange) FeeAccount() common.Address {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.feeAccount
}

// FeePercent returns the current withdrawal fee percentage.
func (x *Exchange) FeePercent() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.feePercent
}

// Admin returns the identity authorized to change fee settings.
func (x *Exchange) Admin() common.Address {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.admin
}

// Events reads back the journal: up to limit events with Seq > after.
func (x *Exchange) Events(after uint64, limit int) ([]events.Event, error) {
	return x.store.LoadEvents(after, limit)
}

// EventSeq returns the sequence number of the latest journaled event.
func (x *Exchange) EventSeq() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.eventSeq
}

// nextEvent allocates the next journal slot. Caller holds the lock and
// must commit the returned event in its batch.
func (x *Exchange) nextEvent(typ events.Type) events.Event {
	x.eventSeq++
	return events.Event{
		Seq:       x.eventSeq,
		Type:      typ,
		Timestamp: x.clock.Now().UnixMilli(),
	}
}

func (x *Exchange) emit(evt events.Event) {
	x.log.Infow("event", "seq", evt.Seq, "type", evt.Type)
	if x.OnEvent != nil {
		x.OnEvent(evt)
	}
}
