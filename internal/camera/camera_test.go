package camera

import (
	"errors"
	"testing"
	"time"

	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/pkg/frame"
	"github.com/AlverezYari/skyframe/pkg/imager"
	"go.uber.org/zap"
)

type fakeDevice struct {
	width, height int

	propertiesErr error
	propertyReads int
	startErr      error
	starts        []imager.ExposureParams
	ready         bool
	downloadErr   error
	temperatures  []float64
	closed        bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{width: 4, height: 4}
}

func (d *fakeDevice) ReadProperties() (imager.Properties, error) {
	d.propertyReads++
	if d.propertiesErr != nil {
		return imager.Properties{}, d.propertiesErr
	}
	return imager.Properties{Basic: imager.BasicProperties{Width: d.width, Height: d.height}}, nil
}

func (d *fakeDevice) Close() { d.closed = true }

func (d *fakeDevice) StartExposure(params imager.ExposureParams) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.starts = append(d.starts, params)
	return nil
}

func (d *fakeDevice) ImageReady() (bool, error) { return d.ready, nil }

func (d *fakeDevice) DownloadImage(params imager.ExposureParams) ([]uint16, error) {
	if d.downloadErr != nil {
		return nil, d.downloadErr
	}
	d.ready = false
	return make([]uint16, params.Area.PixelCount()), nil
}

func (d *fakeDevice) SetTemperature(celsius float64) error {
	d.temperatures = append(d.temperatures, celsius)
	return nil
}

type fakeDriver struct {
	devices    []*fakeDevice
	listErr    error
	connectErr error
	connects   int
}

func (d *fakeDriver) ListDevices() ([]imager.DeviceDescriptor, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	var out []imager.DeviceDescriptor
	for i := range d.devices {
		out = append(out, imager.DeviceDescriptor{ID: i, Name: "fake"})
	}
	return out, nil
}

func (d *fakeDriver) ConnectDevice(descriptor imager.DeviceDescriptor) (imager.Device, error) {
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	d.connects++
	return d.devices[descriptor.ID], nil
}

type recordingSink struct {
	frames  []*frame.RawFrame
	active  []bool
	heating []float64
}

func (s *recordingSink) FrameCaptured(raw *frame.RawFrame) { s.frames = append(s.frames, raw) }
func (s *recordingSink) ExposureActive(active bool)        { s.active = append(s.active, active) }
func (s *recordingSink) HeatingChanged(duty float64)       { s.heating = append(s.heating, duty) }

func testParams() messages.CameraParams {
	return messages.DefaultCameraParams(frame.NewSize(4, 4))
}

func newSequencer(params messages.CameraParams, sink Sink) *Sequencer {
	return NewSequencer(imager.BasicProperties{Width: 4, Height: 4}, params, sink, zap.NewNop(), nil)
}

func TestSequencerRejectsSecondStart(t *testing.T) {
	device := newFakeDevice()
	seq := newSequencer(testParams(), &recordingSink{})

	if err := seq.Start(device); err != nil {
		t.Fatalf("first start: %v", err)
	}
	before := *seq.inFlight

	other := imager.ExposureParams{Gain: 99, Time: 5, Area: imager.ExposureArea{Width: 2, Height: 2}}
	for i := 0; i < 3; i++ {
		if err := seq.StartWith(device, other); !errors.Is(err, ErrAlreadyInProgress) {
			t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
		}
	}
	if *seq.inFlight != before {
		t.Fatalf("in-flight params changed: %+v", *seq.inFlight)
	}
	if len(device.starts) != 1 {
		t.Fatalf("device saw %d starts", len(device.starts))
	}
}

func TestSequencerRecordsOnlyAcceptedStart(t *testing.T) {
	device := newFakeDevice()
	device.startErr = errors.New("busy")
	seq := newSequencer(testParams(), &recordingSink{})

	if err := seq.Start(device); err == nil {
		t.Fatalf("expected start error")
	}
	if seq.InProgress() {
		t.Fatalf("refused start recorded as in flight")
	}
}

func TestSequencerCompletesExposure(t *testing.T) {
	device := newFakeDevice()
	sink := &recordingSink{}
	seq := newSequencer(testParams(), sink)

	if err := seq.Start(device); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := seq.Periodic(device); err != nil {
		t.Fatalf("periodic: %v", err)
	}
	if len(sink.frames) != 0 {
		t.Fatalf("frame delivered before ready")
	}

	device.ready = true
	if err := seq.Periodic(device); err != nil {
		t.Fatalf("periodic: %v", err)
	}
	if len(sink.frames) != 1 || seq.InProgress() {
		t.Fatalf("frames=%d inProgress=%v", len(sink.frames), seq.InProgress())
	}
	if got := sink.frames[0].Params.Area; got.Width != 4 || got.Height != 4 {
		t.Fatalf("frame area %+v, want full chip", got)
	}
	if len(sink.active) != 2 || !sink.active[0] || sink.active[1] {
		t.Fatalf("exposure active events %v", sink.active)
	}
}

func TestSequencerDownloadFailureClearsState(t *testing.T) {
	device := newFakeDevice()
	seq := newSequencer(testParams(), &recordingSink{})

	_ = seq.Start(device)
	device.ready = true
	device.downloadErr = errors.New("usb reset")
	if err := seq.Periodic(device); err == nil {
		t.Fatalf("expected download error")
	}
	if seq.InProgress() {
		t.Fatalf("failed download left exposure in flight")
	}
}

func TestSequencerLoopAndTriggerGating(t *testing.T) {
	device := newFakeDevice()
	params := testParams()
	params.LoopEnabled = true
	params.TriggerRequired = true
	seq := newSequencer(params, &recordingSink{})

	_ = seq.Periodic(device)
	if len(device.starts) != 0 {
		t.Fatalf("looped start without trigger")
	}
	if !seq.WaitingForTrigger() {
		t.Fatalf("expected sequencer to wait for trigger")
	}

	seq.Trigger(false)
	_ = seq.Periodic(device)
	if len(device.starts) != 0 {
		t.Fatalf("false trigger armed a start")
	}

	seq.Trigger(true)
	_ = seq.Periodic(device)
	if len(device.starts) != 1 {
		t.Fatalf("expected 1 start after trigger, got %d", len(device.starts))
	}

	// complete, then the next loop start needs another edge
	device.ready = true
	_ = seq.Periodic(device)
	_ = seq.Periodic(device)
	if len(device.starts) != 1 {
		t.Fatalf("trigger armed more than one start")
	}

	params.TriggerRequired = false
	seq.UpdateParams(params)
	_ = seq.Periodic(device)
	if len(device.starts) != 2 {
		t.Fatalf("ungated loop did not start, starts=%d", len(device.starts))
	}
}

func TestSequencerIgnoresEdgesBeforeGating(t *testing.T) {
	tests := []struct {
		name  string
		setup func(params *messages.CameraParams)
	}{
		{"loop off", func(p *messages.CameraParams) { p.TriggerRequired = true }},
		{"trigger not required", func(p *messages.CameraParams) { p.LoopEnabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := newFakeDevice()
			params := testParams()
			tt.setup(&params)
			seq := newSequencer(params, &recordingSink{})

			seq.Trigger(true)
			params.LoopEnabled = true
			params.TriggerRequired = true
			seq.UpdateParams(params)
			_ = seq.Periodic(device)
			if len(device.starts) != 0 {
				t.Fatalf("edge seen before gating started an exposure")
			}
			if !seq.WaitingForTrigger() {
				t.Fatalf("expected sequencer to wait for a fresh edge")
			}

			seq.Trigger(true)
			_ = seq.Periodic(device)
			if len(device.starts) != 1 {
				t.Fatalf("fresh edge did not start, starts=%d", len(device.starts))
			}
		})
	}
}

func TestSequencerRegatingDropsOldArm(t *testing.T) {
	device := newFakeDevice()
	params := testParams()
	params.LoopEnabled = true
	params.TriggerRequired = true
	seq := newSequencer(params, &recordingSink{})

	// armed, then the loop is stopped before the start happens
	seq.Trigger(true)
	params.LoopEnabled = false
	seq.UpdateParams(params)
	_ = seq.Periodic(device)

	params.LoopEnabled = true
	seq.UpdateParams(params)
	_ = seq.Periodic(device)
	if len(device.starts) != 0 {
		t.Fatalf("arm survived gating being switched off and on")
	}
}

func TestSequencerSetpointsAreEdgeTriggered(t *testing.T) {
	device := newFakeDevice()
	sink := &recordingSink{}
	params := testParams()
	seq := newSequencer(params, sink)

	for i := 0; i < 5; i++ {
		_ = seq.Periodic(device)
	}
	if len(device.temperatures) != 1 || len(sink.heating) != 1 {
		t.Fatalf("temperature pushes %v heating pushes %v", device.temperatures, sink.heating)
	}

	params.Temperature = -10
	params.HeatingPwm = 0.25
	seq.UpdateParams(params)
	_ = seq.Periodic(device)
	_ = seq.Periodic(device)
	if len(device.temperatures) != 2 || device.temperatures[1] != -10 {
		t.Fatalf("temperature pushes %v", device.temperatures)
	}
	if len(sink.heating) != 2 || sink.heating[1] != 0.25 {
		t.Fatalf("heating pushes %v", sink.heating)
	}
}

func TestPropertiesReaderRateLimits(t *testing.T) {
	device := newFakeDevice()
	now := time.Unix(1000, 0)
	reader, err := NewPropertiesReader(device, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewPropertiesReader: %v", err)
	}

	now = now.Add(time.Second)
	if err := reader.Read(device); err != nil || device.propertyReads != 1 {
		t.Fatalf("read before interval: reads=%d err=%v", device.propertyReads, err)
	}

	now = now.Add(time.Second)
	if err := reader.Read(device); err != nil || device.propertyReads != 2 {
		t.Fatalf("read after interval: reads=%d err=%v", device.propertyReads, err)
	}

	device.propertiesErr = errors.New("gone")
	now = now.Add(PropertiesReadInterval)
	if err := reader.Read(device); !errors.Is(err, ErrPropertiesRead) {
		t.Fatalf("expected ErrPropertiesRead, got %v", err)
	}
	if reader.Properties().Basic.Width != 4 {
		t.Fatalf("failed read replaced cached properties")
	}
}

func TestControllerConnectsAndReconnectsOnFault(t *testing.T) {
	device := newFakeDevice()
	driver := &fakeDriver{devices: []*fakeDevice{device}}
	now := time.Unix(0, 0)
	c := NewController(driver, testParams(), &recordingSink{}, zap.NewNop(), nil)
	c.SetClock(func() time.Time { return now })

	if c.ConnectionState() != messages.Connecting || c.Properties() != nil {
		t.Fatalf("controller should start unconnected")
	}

	c.Periodic()
	if c.ConnectionState() != messages.Established {
		t.Fatalf("expected established, detail %q", c.Detail())
	}
	if c.Detail() != "Camera initialized" || c.Properties() == nil {
		t.Fatalf("unexpected detail %q", c.Detail())
	}

	device.propertiesErr = errors.New("cable pulled")
	now = now.Add(3 * time.Second)
	c.Periodic()
	if c.ConnectionState() != messages.Connecting {
		t.Fatalf("property failure did not fault the camera")
	}

	device.propertiesErr = nil
	c.Periodic()
	if !device.closed {
		t.Fatalf("old device not closed before reconnect")
	}
	if c.ConnectionState() != messages.Established || driver.connects != 2 {
		t.Fatalf("expected reconnect, state=%v connects=%d", c.ConnectionState(), driver.connects)
	}
}

func TestControllerErrorDetails(t *testing.T) {
	tests := []struct {
		name   string
		driver *fakeDriver
		want   string
	}{
		{"list fails", &fakeDriver{listErr: errors.New("usb")}, "Could not list devices"},
		{"no devices", &fakeDriver{}, "No devices present in list"},
		{"connect fails", &fakeDriver{devices: []*fakeDevice{newFakeDevice()}, connectErr: errors.New("busy")}, "Connect device failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(tt.driver, testParams(), &recordingSink{}, zap.NewNop(), nil)
			c.Periodic()
			if c.Detail() != tt.want {
				t.Fatalf("detail %q, want %q", c.Detail(), tt.want)
			}
			if c.ConnectionState() != messages.Connecting {
				t.Fatalf("expected connecting state")
			}
		})
	}
}

func TestControllerStartExposure(t *testing.T) {
	device := newFakeDevice()
	c := NewController(&fakeDriver{devices: []*fakeDevice{device}}, testParams(), &recordingSink{}, zap.NewNop(), nil)

	if err := c.StartExposure(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	c.Periodic()
	if err := c.StartExposure(); err != nil {
		t.Fatalf("StartExposure: %v", err)
	}
	if c.ExposureState() != messages.Established {
		t.Fatalf("exposure state %v", c.ExposureState())
	}
	if err := c.StartExposure(); !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
	}
	if c.ConnectionState() != messages.Established {
		t.Fatalf("second start must not fault the camera")
	}
}

func TestControllerIgnoresTriggerWhileDisconnected(t *testing.T) {
	device := newFakeDevice()
	driver := &fakeDriver{devices: []*fakeDevice{device}}
	params := testParams()
	params.LoopEnabled = true
	params.TriggerRequired = true
	c := NewController(driver, params, &recordingSink{}, zap.NewNop(), nil)

	c.Trigger(true)
	c.Periodic()
	c.Periodic()
	if len(device.starts) != 0 {
		t.Fatalf("edge seen before connecting started an exposure")
	}

	c.Trigger(true)
	c.Periodic()
	if len(device.starts) != 1 {
		t.Fatalf("edge while connected did not start, starts=%d", len(device.starts))
	}

	c.Reconnect()
	c.Trigger(true)
	c.Periodic()
	c.Periodic()
	if driver.connects != 2 || len(device.starts) != 1 {
		t.Fatalf("edge during reconnect started an exposure: connects=%d starts=%d", driver.connects, len(device.starts))
	}
}

func TestControllerReconnect(t *testing.T) {
	device := newFakeDevice()
	sink := &recordingSink{}
	driver := &fakeDriver{devices: []*fakeDevice{device}}
	c := NewController(driver, testParams(), sink, zap.NewNop(), nil)
	c.Periodic()
	_ = c.StartExposure()

	c.Reconnect()
	if c.ConnectionState() != messages.Connecting {
		t.Fatalf("reconnect did not drop the camera")
	}
	c.Periodic()
	if !device.closed || driver.connects != 2 {
		t.Fatalf("closed=%v connects=%d", device.closed, driver.connects)
	}
	if last := sink.active[len(sink.active)-1]; last {
		t.Fatalf("aborted exposure still reported active")
	}
}
