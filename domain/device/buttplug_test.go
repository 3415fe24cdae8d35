package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// fakeIntiface answers the subset of Buttplug v3 the client uses.
type fakeIntiface struct {
	mu      sync.Mutex
	scalars []scalarCmd
	stops   []uint32
	seen    []string
}

func (f *fakeIntiface) record(typ string) {
	f.mu.Lock()
	f.seen = append(f.seen, typ)
	f.mu.Unlock()
}

func (f *fakeIntiface) serve(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		write := func(typ string, body any) {
			_ = conn.WriteJSON([]map[string]any{{typ: body}})
		}
		for {
			var msgs []map[string]json.RawMessage
			if err := conn.ReadJSON(&msgs); err != nil {
				return
			}
			for _, m := range msgs {
				for typ, raw := range m {
					f.record(typ)
					var hdr idOnly
					_ = json.Unmarshal(raw, &hdr)
					switch typ {
					case "RequestServerInfo":
						write("ServerInfo", serverInfo{ID: hdr.ID, ServerName: "fake", MessageVersion: 3})
					case "StartScanning":
						write("Ok", idOnly{ID: hdr.ID})
						write("DeviceAdded", deviceInfo{DeviceName: "Late Toy", DeviceIndex: 4,
							DeviceMessages: deviceMessages{ScalarCmd: []scalarAttr{{StepCount: 20, ActuatorType: "Vibrate"}}}})
					case "RequestDeviceList":
						write("DeviceList", deviceList{ID: hdr.ID, Devices: []deviceInfo{{
							DeviceName:  "Dual Toy",
							DeviceIndex: 1,
							DeviceMessages: deviceMessages{ScalarCmd: []scalarAttr{
								{StepCount: 20, ActuatorType: "Vibrate"},
								{StepCount: 10, ActuatorType: "Rotate"},
								{StepCount: 20, ActuatorType: "Vibrate"},
							}},
						}}})
					case "ScalarCmd":
						var cmd scalarCmd
						_ = json.Unmarshal(raw, &cmd)
						if cmd.DeviceIndex == 9 {
							write("Error", errorMsg{ID: hdr.ID, ErrorMessage: "device gone", ErrorCode: 3})
							continue
						}
						f.mu.Lock()
						f.scalars = append(f.scalars, cmd)
						f.mu.Unlock()
						write("Ok", idOnly{ID: hdr.ID})
					case "StopDeviceCmd":
						var cmd stopDeviceCmd
						_ = json.Unmarshal(raw, &cmd)
						f.mu.Lock()
						f.stops = append(f.stops, cmd.DeviceIndex)
						f.mu.Unlock()
						write("Ok", idOnly{ID: hdr.ID})
					default:
						write("Ok", idOnly{ID: hdr.ID})
					}
				}
			}
		}
	}))
}

func wsURL(s *httptest.Server) string { return "ws" + strings.TrimPrefix(s.URL, "http") }

func dialFake(t *testing.T) (*Buttplug, *fakeIntiface) {
	t.Helper()
	f := &fakeIntiface{}
	srv := f.serve(t)
	t.Cleanup(srv.Close)
	b, err := DialButtplug(context.Background(), nil, wsURL(srv), ButtplugOptions{RequestTimeout: time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b, f
}

func TestButtplug_ScanListsDevices(t *testing.T) {
	b, _ := dialFake(t)
	if err := b.Scan(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("scan: %v", err)
	}
	devs := b.Devices()
	if len(devs) != 2 || devs[0].Index != 1 || devs[1].Index != 4 {
		t.Fatalf("unexpected devices %+v", devs)
	}
	if got := devs[0].Vibrators; len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("vibrate actuators want [0 2], got %v", got)
	}
}

func TestButtplug_VibrateAndStop(t *testing.T) {
	b, f := dialFake(t)
	if err := b.Scan(context.Background(), time.Millisecond); err != nil {
		t.Fatal(err)
	}
	dual := b.Devices()[0]
	act := Bind(b, dual)
	if err := act.Vibrate(context.Background(), 1.7); err != nil {
		t.Fatalf("vibrate: %v", err)
	}
	if err := act.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scalars) != 1 || len(f.scalars[0].Scalars) != 2 {
		t.Fatalf("unexpected scalar commands %+v", f.scalars)
	}
	for _, s := range f.scalars[0].Scalars {
		if s.Scalar != 1 || s.ActuatorType != "Vibrate" {
			t.Fatalf("level must be clamped to 1 on vibrate actuators, got %+v", s)
		}
	}
	if len(f.stops) != 1 || f.stops[0] != 1 {
		t.Fatalf("expected stop for device 1, got %v", f.stops)
	}
}

func TestButtplug_ServerErrorIsDeviceComm(t *testing.T) {
	b, _ := dialFake(t)
	err := b.Vibrate(context.Background(), Handle{Index: 9, Name: "ghost", Vibrators: []uint32{0}}, 0.5)
	if !errors.Is(err, ErrDeviceComm) || !strings.Contains(err.Error(), "device gone") {
		t.Fatalf("expected wrapped server error, got %v", err)
	}
	if err := b.Vibrate(context.Background(), Handle{Index: 2, Name: "rotor"}, 0.5); !errors.Is(err, ErrDeviceComm) {
		t.Fatalf("device without vibrators should fail, got %v", err)
	}
}

func TestButtplug_ClosedConnection(t *testing.T) {
	b, _ := dialFake(t)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Stop(context.Background(), Handle{Index: 1}); !errors.Is(err, ErrDeviceComm) {
		t.Fatalf("expected ErrDeviceComm after close, got %v", err)
	}
}

func TestDialButtplug_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()
	if _, err := DialButtplug(context.Background(), nil, url, ButtplugOptions{RequestTimeout: 200 * time.Millisecond}); !errors.Is(err, ErrDeviceComm) {
		t.Fatalf("expected ErrDeviceComm, got %v", err)
	}
}

func TestDryRunAndStopAll(t *testing.T) {
	d := NewDryRun(nil, 2)
	act := Bind(d, d.Devices()[1])
	_ = act.Vibrate(context.Background(), 0.4)
	if d.Level(1) != 0.4 {
		t.Fatalf("level not recorded: %v", d.Level(1))
	}
	if err := StopAll(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if d.Level(1) != 0 {
		t.Fatal("StopAll should zero every device")
	}
}
