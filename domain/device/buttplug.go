package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const messageVersion = 3

// Buttplug v3 message bodies. Every frame is a JSON array of single-key
// objects: [{"MessageType": {...}}].
type (
	requestServerInfo struct {
		ID             uint32 `json:"Id"`
		ClientName     string `json:"ClientName"`
		MessageVersion int    `json:"MessageVersion"`
	}
	serverInfo struct {
		ID             uint32 `json:"Id"`
		ServerName     string `json:"ServerName"`
		MessageVersion int    `json:"MessageVersion"`
		MaxPingTime    int    `json:"MaxPingTime"`
	}
	idOnly struct {
		ID uint32 `json:"Id"`
	}
	scalarAttr struct {
		StepCount         int    `json:"StepCount"`
		FeatureDescriptor string `json:"FeatureDescriptor"`
		ActuatorType      string `json:"ActuatorType"`
	}
	deviceMessages struct {
		ScalarCmd []scalarAttr `json:"ScalarCmd,omitempty"`
	}
	deviceInfo struct {
		ID             uint32         `json:"Id,omitempty"`
		DeviceName     string         `json:"DeviceName"`
		DeviceIndex    uint32         `json:"DeviceIndex"`
		DeviceMessages deviceMessages `json:"DeviceMessages"`
	}
	deviceList struct {
		ID      uint32       `json:"Id"`
		Devices []deviceInfo `json:"Devices"`
	}
	deviceRemoved struct {
		ID          uint32 `json:"Id"`
		DeviceIndex uint32 `json:"DeviceIndex"`
	}
	scalar struct {
		Index        uint32  `json:"Index"`
		Scalar       float64 `json:"Scalar"`
		ActuatorType string  `json:"ActuatorType"`
	}
	scalarCmd struct {
		ID          uint32   `json:"Id"`
		DeviceIndex uint32   `json:"DeviceIndex"`
		Scalars     []scalar `json:"Scalars"`
	}
	stopDeviceCmd struct {
		ID          uint32 `json:"Id"`
		DeviceIndex uint32 `json:"DeviceIndex"`
	}
	errorMsg struct {
		ID           uint32 `json:"Id"`
		ErrorMessage string `json:"ErrorMessage"`
		ErrorCode    int    `json:"ErrorCode"`
	}
)

type reply struct {
	typ string
	raw json.RawMessage
}

// ButtplugOptions configures a client. Zero values use defaults.
type ButtplugOptions struct {
	ClientName     string
	RequestTimeout time.Duration
}

// Buttplug is a Controller speaking Buttplug protocol v3 over a websocket.
type Buttplug struct {
	logger  *slog.Logger
	conn    *websocket.Conn
	timeout time.Duration
	server  serverInfo

	writeMu sync.Mutex
	nextID  atomic.Uint32

	pendingMu sync.Mutex
	pending   map[uint32]chan reply

	devMu   sync.RWMutex
	devices map[uint32]Handle

	done      chan struct{}
	closeOnce sync.Once
}

// DialButtplug connects to url and performs the server handshake.
func DialButtplug(ctx context.Context, logger *slog.Logger, url string, opts ButtplugOptions) (*Buttplug, error) {
	if opts.ClientName == "" {
		opts.ClientName = "duck-haptics"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, opts.RequestTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrDeviceComm, url, err)
	}
	b := &Buttplug{
		logger:  logger,
		conn:    conn,
		timeout: opts.RequestTimeout,
		pending: make(map[uint32]chan reply),
		devices: make(map[uint32]Handle),
		done:    make(chan struct{}),
	}
	go b.readLoop()

	r, err := b.request(ctx, "RequestServerInfo", func(id uint32) any {
		return requestServerInfo{ID: id, ClientName: opts.ClientName, MessageVersion: messageVersion}
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	if r.typ != "ServerInfo" {
		b.Close()
		return nil, fmt.Errorf("%w: handshake: unexpected %s", ErrDeviceComm, r.typ)
	}
	if err := json.Unmarshal(r.raw, &b.server); err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: handshake: %v", ErrDeviceComm, err)
	}
	if b.server.MaxPingTime > 0 {
		go b.pingLoop(time.Duration(b.server.MaxPingTime) * time.Millisecond / 2)
	}
	if logger != nil {
		logger.Info("device server connected", "url", url, "server", b.server.ServerName, "version", b.server.MessageVersion)
	}
	return b, nil
}

// Scan runs device discovery for d and refreshes the device list.
func (b *Buttplug) Scan(ctx context.Context, d time.Duration) error {
	if _, err := b.request(ctx, "StartScanning", func(id uint32) any { return idOnly{ID: id} }); err != nil {
		return err
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	case <-b.done:
	}
	stopCtx := context.WithoutCancel(ctx)
	if _, err := b.request(stopCtx, "StopScanning", func(id uint32) any { return idOnly{ID: id} }); err != nil && b.logger != nil {
		b.logger.Warn("stop scanning failed", "error", err)
	}
	r, err := b.request(stopCtx, "RequestDeviceList", func(id uint32) any { return idOnly{ID: id} })
	if err != nil {
		return err
	}
	var list deviceList
	if err := json.Unmarshal(r.raw, &list); err != nil {
		return fmt.Errorf("%w: device list: %v", ErrDeviceComm, err)
	}
	b.devMu.Lock()
	for _, di := range list.Devices {
		b.devices[di.DeviceIndex] = handleFromInfo(di)
	}
	b.devMu.Unlock()
	if b.logger != nil {
		b.logger.Info("device scan finished", "devices", len(b.Devices()))
	}
	return nil
}

func handleFromInfo(di deviceInfo) Handle {
	h := Handle{Index: di.DeviceIndex, Name: di.DeviceName}
	for i, a := range di.DeviceMessages.ScalarCmd {
		if a.ActuatorType == "Vibrate" {
			h.Vibrators = append(h.Vibrators, uint32(i))
		}
	}
	return h
}

// Devices returns the known devices ordered by index.
func (b *Buttplug) Devices() []Handle {
	b.devMu.RLock()
	out := make([]Handle, 0, len(b.devices))
	for _, h := range b.devices {
		out = append(out, h)
	}
	b.devMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Vibrate sets every vibrate actuator of h to level.
func (b *Buttplug) Vibrate(ctx context.Context, h Handle, level float64) error {
	if len(h.Vibrators) == 0 {
		return fmt.Errorf("%w: %s has no vibrate actuator", ErrDeviceComm, h)
	}
	level = clampLevel(level)
	scalars := make([]scalar, len(h.Vibrators))
	for i, idx := range h.Vibrators {
		scalars[i] = scalar{Index: idx, Scalar: level, ActuatorType: "Vibrate"}
	}
	_, err := b.request(ctx, "ScalarCmd", func(id uint32) any {
		return scalarCmd{ID: id, DeviceIndex: h.Index, Scalars: scalars}
	})
	return err
}

// Stop halts every actuator of h.
func (b *Buttplug) Stop(ctx context.Context, h Handle) error {
	_, err := b.request(ctx, "StopDeviceCmd", func(id uint32) any {
		return stopDeviceCmd{ID: id, DeviceIndex: h.Index}
	})
	return err
}

// Close stops all devices when still connected and closes the socket.
func (b *Buttplug) Close() error {
	select {
	case <-b.done:
	default:
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		_, _ = b.request(ctx, "StopAllDevices", func(id uint32) any { return idOnly{ID: id} })
		cancel()
	}
	var err error
	b.closeOnce.Do(func() {
		b.writeMu.Lock()
		_ = b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		b.writeMu.Unlock()
		err = b.conn.Close()
	})
	<-b.done
	return err
}

func (b *Buttplug) request(ctx context.Context, typ string, body func(id uint32) any) (reply, error) {
	id := b.nextID.Add(1)
	ch := make(chan reply, 1)
	b.pendingMu.Lock()
	b.pending[id] = ch
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
	}()

	if err := b.send(typ, body(id)); err != nil {
		return reply{}, fmt.Errorf("%w: %s: %v", ErrDeviceComm, typ, err)
	}
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.typ == "Error" {
			var e errorMsg
			_ = json.Unmarshal(r.raw, &e)
			return r, fmt.Errorf("%w: %s: %s (code %d)", ErrDeviceComm, typ, e.ErrorMessage, e.ErrorCode)
		}
		return r, nil
	case <-timer.C:
		return reply{}, fmt.Errorf("%w: %s: timeout after %v", ErrDeviceComm, typ, b.timeout)
	case <-ctx.Done():
		return reply{}, fmt.Errorf("%w: %s: %v", ErrDeviceComm, typ, ctx.Err())
	case <-b.done:
		return reply{}, fmt.Errorf("%w: %s: connection closed", ErrDeviceComm, typ)
	}
}

func (b *Buttplug) send(typ string, body any) error {
	select {
	case <-b.done:
		return errors.New("connection closed")
	default:
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.SetWriteDeadline(time.Now().Add(b.timeout)); err != nil {
		return err
	}
	return b.conn.WriteJSON([]map[string]any{{typ: body}})
}

func (b *Buttplug) readLoop() {
	defer close(b.done)
	for {
		var msgs []map[string]json.RawMessage
		if err := b.conn.ReadJSON(&msgs); err != nil {
			if b.logger != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				b.logger.Debug("device server read ended", "error", err)
			}
			return
		}
		for _, m := range msgs {
			for typ, raw := range m {
				b.dispatch(typ, raw)
			}
		}
	}
}

func (b *Buttplug) dispatch(typ string, raw json.RawMessage) {
	var hdr idOnly
	_ = json.Unmarshal(raw, &hdr)
	if hdr.ID != 0 {
		b.pendingMu.Lock()
		ch := b.pending[hdr.ID]
		b.pendingMu.Unlock()
		if ch != nil {
			select {
			case ch <- reply{typ: typ, raw: raw}:
			default:
			}
		}
		return
	}
	switch typ {
	case "DeviceAdded":
		var di deviceInfo
		if err := json.Unmarshal(raw, &di); err != nil {
			return
		}
		h := handleFromInfo(di)
		b.devMu.Lock()
		b.devices[h.Index] = h
		b.devMu.Unlock()
		if b.logger != nil {
			b.logger.Info("device added", "device", h.String(), "vibrators", len(h.Vibrators))
		}
	case "DeviceRemoved":
		var dr deviceRemoved
		if err := json.Unmarshal(raw, &dr); err != nil {
			return
		}
		b.devMu.Lock()
		delete(b.devices, dr.DeviceIndex)
		b.devMu.Unlock()
		if b.logger != nil {
			b.logger.Warn("device removed", "index", dr.DeviceIndex)
		}
	case "Error":
		var e errorMsg
		_ = json.Unmarshal(raw, &e)
		if b.logger != nil {
			b.logger.Warn("device server error", "message", e.ErrorMessage, "code", e.ErrorCode)
		}
	}
}

func (b *Buttplug) pingLoop(every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			if _, err := b.request(ctx, "Ping", func(id uint32) any { return idOnly{ID: id} }); err != nil && b.logger != nil {
				b.logger.Warn("device server ping failed", "error", err)
			}
			cancel()
		}
	}
}
