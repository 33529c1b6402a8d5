package session

import (
	"context"
	"sync"
	"time"

	"github.com/btccom/hwsigner/bip32util"
	"github.com/btccom/hwsigner/trezor"
	"github.com/btccom/hwsigner/wallet"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultDeviceName is the device name published with
// EventDeviceConnected when Config doesn't set one.
const DefaultDeviceName = "trezor-device"

// Config holds the settings of a Session.
type Config struct {
	// Network is the wallet network name, see wallet.NetMainnet.
	Network string

	// DeviceName is published with EventDeviceConnected.
	DeviceName string

	// ShowOnDevice asks the device to display requested xpubs
	// for the user to confirm.
	ShowOnDevice bool

	// Observer, if set, is notified of transitions and
	// device round-trips.
	Observer Observer
}

// XpubResult is an extended public key obtained from the device.
type XpubResult struct {
	XPub        string `json:"xpub"`
	Fingerprint string `json:"fingerprint"`
	Path        string `json:"path"`
}

// Session drives a single device. At most one device operation
// runs at a time: requests made while the device is busy are
// rejected, never queued.
type Session struct {
	mtx sync.Mutex

	id       uuid.UUID
	sdk      trezor.SDK
	cfg      Config
	network  *wallet.Network
	observer Observer

	state    State
	op       Operation
	epoch    uint64
	features *trezor.Features

	// keyed by canonical path string, cleared on disconnection only
	xpubCache map[string]*XpubResult

	handlers    map[int]EventHandler
	nextHandler int
}

// New returns a disconnected Session driving sdk.
func New(sdk trezor.SDK, cfg Config) *Session {
	if cfg.DeviceName == "" {
		cfg.DeviceName = DefaultDeviceName
	}

	var observer Observer = nopObserver{}
	if cfg.Observer != nil {
		observer = cfg.Observer
	}

	return &Session{
		id:        uuid.New(),
		sdk:       sdk,
		cfg:       cfg,
		network:   wallet.NetworkOrTestnet(cfg.Network),
		observer:  observer,
		state:     Disconnected,
		xpubCache: make(map[string]*XpubResult),
		handlers:  make(map[int]EventHandler),
	}
}

// ID returns the unique id of the session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Network returns the network the session signs for.
func (s *Session) Network() *wallet.Network {
	return s.network
}

// State returns the current state.
func (s *Session) State() State {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state
}

// Features returns the features reported by the device when it
// connected, or nil.
func (s *Session) Features() *trezor.Features {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.features
}

// IsConnected returns whether a device is attached, idle or not.
func (s *Session) IsConnected() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state == Connected || s.state == Busy
}

// IsAuthenticated returns whether the attached device is
// initialized and unlocked.
func (s *Session) IsAuthenticated() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.state != Connected && s.state != Busy {
		return false
	}
	return s.features.Initialized && s.features.IsUnlocked()
}

// IsSigning returns whether a signing request is waiting on the device.
func (s *Session) IsSigning() bool {
	return s.busyWith(OpSign)
}

// IsFetchingXpub returns whether an xpub request is waiting on the device.
func (s *Session) IsFetchingXpub() bool {
	return s.busyWith(OpXpub)
}

func (s *Session) busyWith(op Operation) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state == Busy && s.op == op
}

// Subscribe registers handler for the session events. The
// returned function removes it.
func (s *Session) Subscribe(handler EventHandler) func() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	id := s.nextHandler
	s.nextHandler++
	s.handlers[id] = handler

	return func() {
		s.mtx.Lock()
		defer s.mtx.Unlock()
		delete(s.handlers, id)
	}
}

// Connect queries the device features. It is only valid on a
// disconnected session; calling it on a connected one is a no-op.
// On failure the session is cleared back to Disconnected.
func (s *Session) Connect(ctx context.Context) error {
	s.mtx.Lock()
	switch s.state {
	case Connecting:
		s.mtx.Unlock()
		return &AlreadyConnectingError{}
	case Connected:
		s.mtx.Unlock()
		return nil
	case Busy:
		op := s.op
		s.mtx.Unlock()
		return &DeviceBusyError{Operation: op}
	}
	s.transition(Connecting)
	s.op = OpConnect
	epoch := s.epoch
	s.mtx.Unlock()

	log.Debugf("[%v] querying device features", s.id)

	start := time.Now()
	features, err := s.sdk.GetFeatures(ctx)
	if err == nil && features == nil {
		err = errors.New("device returned no features")
	}
	s.observer.DeviceCall(OpConnect, time.Since(start), err)

	s.mtx.Lock()
	if s.epoch != epoch {
		s.mtx.Unlock()
		return &ConnectionError{Err: ErrSessionClosed}
	}
	if err != nil {
		s.transition(Error)
		s.reset()
		s.mtx.Unlock()
		log.Warnf("[%v] device connection failed: %v", s.id, err)
		return &ConnectionError{Err: err}
	}
	s.op = OpNone
	s.features = features
	s.transition(Connected)
	s.mtx.Unlock()

	log.Infof("[%v] connected to %s %s (firmware %s)", s.id, features.Vendor, features.Model, features.Version())

	s.emit(Event{Kind: EventDeviceConnected, Device: s.cfg.DeviceName})
	return nil
}

// Xpub returns the extended public key at path. Keys are cached
// for the lifetime of the connection, a cache hit doesn't reach
// the device. A failure leaves the session connected.
func (s *Session) Xpub(ctx context.Context, path string) (*XpubResult, error) {
	p, err := bip32util.Encode(path)
	if err != nil {
		return nil, err
	}
	key := p.String()

	s.mtx.Lock()
	if err := s.ready(); err != nil {
		s.mtx.Unlock()
		return nil, err
	}
	if cached, ok := s.xpubCache[key]; ok {
		s.mtx.Unlock()
		log.Tracef("[%v] xpub cache hit for %s", s.id, key)
		return cached, nil
	}
	s.transition(Busy)
	s.op = OpXpub
	epoch := s.epoch
	s.mtx.Unlock()

	log.Debugf("[%v] requesting xpub at %s", s.id, key)

	req := &trezor.PublicKeyRequest{
		Path:         p.DeviceFormat(),
		Coin:         trezor.CoinForNetwork(s.cfg.Network),
		ShowOnTrezor: s.cfg.ShowOnDevice,
	}

	start := time.Now()
	resp, err := s.sdk.GetPublicKey(ctx, req)
	result, err := s.xpubResult(p, resp, err)
	s.observer.DeviceCall(OpXpub, time.Since(start), err)

	s.mtx.Lock()
	if s.epoch == epoch {
		s.op = OpNone
		s.transition(Connected)
		if err == nil {
			s.xpubCache[key] = result
		}
	}
	s.mtx.Unlock()

	if err != nil {
		log.Debugf("[%v] xpub request failed: %v", s.id, err)
		return nil, err
	}
	return result, nil
}

func (s *Session) xpubResult(path *bip32util.Path, resp *trezor.PublicKeyResponse, err error) (*XpubResult, error) {
	if isCancellation(err) {
		return nil, &CancelledError{Operation: OpXpub, Err: err}
	}
	if err != nil {
		return nil, &XpubRetrievalError{Path: path.String(), Err: err}
	}
	if resp == nil {
		return nil, &XpubRetrievalError{Path: path.String(), Reason: "empty response"}
	}
	if !resp.Success {
		return nil, &XpubRetrievalError{Path: path.String(), Reason: resp.Payload.Error}
	}

	key, err := bip32util.ParseXpub(resp.Payload.XPub, path, s.network.Params)
	if err != nil {
		return nil, &XpubRetrievalError{Path: path.String(), Reason: "invalid extended public key", Err: err}
	}
	if key.Fingerprint() != resp.Payload.Fingerprint {
		return nil, &XpubRetrievalError{Path: path.String(), Reason: "fingerprint does not match the extended public key"}
	}

	return &XpubResult{
		XPub:        key.String(),
		Fingerprint: bip32util.FormatFingerprint(resp.Payload.Fingerprint),
		Path:        path.String(),
	}, nil
}

// Sign has the device sign tx. The transaction is validated and
// translated before anything is sent to the device. Whatever the
// outcome, the session is connected again afterwards.
func (s *Session) Sign(ctx context.Context, tx *wallet.UnsignedTransaction) (*wallet.SignedTransaction, error) {
	s.mtx.Lock()
	if err := s.ready(); err != nil {
		s.mtx.Unlock()
		return nil, err
	}
	s.transition(Busy)
	s.op = OpSign
	epoch := s.epoch
	s.mtx.Unlock()

	signed, err := s.sign(ctx, tx)

	s.mtx.Lock()
	current := s.epoch == epoch
	if current {
		s.op = OpNone
		s.transition(Connected)
	}
	s.mtx.Unlock()

	if err != nil {
		log.Debugf("[%v] signing failed: %v", s.id, err)
		return nil, err
	}

	log.Infof("[%v] signed transaction %s", s.id, signed.TxID)

	if current {
		s.emit(Event{Kind: EventSignedTx, SignedTx: signed})
	}
	return signed, nil
}

func (s *Session) sign(ctx context.Context, tx *wallet.UnsignedTransaction) (*wallet.SignedTransaction, error) {
	req, err := trezor.BuildSigningRequest(tx, s.cfg.Network)
	if err != nil {
		var buildErr *trezor.TransactionBuildError
		if errors.As(err, &buildErr) {
			return nil, err
		}
		return nil, &trezor.TransactionBuildError{Err: err}
	}

	log.Debugf("[%v] sending signing request with %d inputs and %d outputs",
		s.id, len(req.Inputs), len(req.Outputs))

	start := time.Now()
	resp, err := s.sdk.SignTransaction(ctx, req)
	if isCancellation(err) {
		err = &CancelledError{Operation: OpSign, Err: err}
		s.observer.DeviceCall(OpSign, time.Since(start), err)
		return nil, err
	}
	if err != nil {
		err = &trezor.SigningRejectedError{Reason: "device call failed", Err: err}
		s.observer.DeviceCall(OpSign, time.Since(start), err)
		return nil, err
	}

	signed, err := trezor.ParseSigningResponse(resp, tx.FeeValue)
	s.observer.DeviceCall(OpSign, time.Since(start), err)
	return signed, err
}

// Disconnect clears the session back to Disconnected. Operations
// still waiting on the device complete without touching the
// cleared session.
func (s *Session) Disconnect() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == Disconnected {
		return
	}
	s.reset()
	log.Infof("[%v] disconnected", s.id)
}

// DeviceLost reports a device initiated disconnection, such as
// the device being unplugged.
func (s *Session) DeviceLost(cause error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == Disconnected {
		return
	}
	s.transition(Error)
	s.reset()
	log.Warnf("[%v] device lost: %v", s.id, cause)
}

func (s *Session) ready() error {
	switch s.state {
	case Connected:
		return nil
	case Busy:
		return &DeviceBusyError{Operation: s.op}
	default:
		return &NotConnectedError{State: s.state}
	}
}

// reset must be called with the lock held.
func (s *Session) reset() {
	s.epoch++
	s.op = OpNone
	s.features = nil
	s.xpubCache = make(map[string]*XpubResult)
	s.transition(Disconnected)
}

// transition must be called with the lock held.
func (s *Session) transition(to State) {
	from := s.state
	s.state = to
	log.Tracef("[%v] %s -> %s", s.id, from, to)
	s.observer.StateChanged(from, to)
}

func (s *Session) emit(event Event) {
	event.ID = uuid.New()
	event.SessionID = s.id

	s.mtx.Lock()
	handlers := make([]EventHandler, 0, len(s.handlers))
	for _, handler := range s.handlers {
		handlers = append(handlers, handler)
	}
	s.mtx.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}
