//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/leandrodaf/improv/internal/midi/midimsg"
	"github.com/leandrodaf/improv/sdk/contracts"
	"golang.org/x/sys/windows"
)

type HMIDIIN windows.Handle

const (
	CALLBACK_FUNCTION = 0x00030000
	MIDI_IO_STATUS    = 0x00000020
)

const (
	MIM_OPEN      = 0x3C1
	MIM_CLOSE     = 0x3C2
	MIM_DATA      = 0x3C3
	MIM_ERROR     = 0x3C5
	MIM_LONGERROR = 0x3C6
	MIM_MOREDATA  = 0x3CC
)

var (
	ErrNoMIDIDevices     = errors.New("no MIDI devices found")
	ErrInvalidMIDIHandle = errors.New("invalid MIDI device handle")
	ErrNoDeviceSelected  = errors.New("no MIDI device selected")
)

type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Client captures live notes through the winmm MIDI input API.
type Client struct {
	logger   contracts.Logger
	events   atomic.Pointer[chan contracts.MIDI]
	handle   HMIDIIN
	portConn bool
	mu       sync.Mutex
	callback uintptr
	filter   *contracts.MIDIEventFilter
}

var (
	winmm                = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen       = winmm.NewProc("midiInOpen")
	procMidiInStart      = winmm.NewProc("midiInStart")
	procMidiInStop       = winmm.NewProc("midiInStop")
	procMidiInClose      = winmm.NewProc("midiInClose")
)

// NewMIDIClient creates a winmm input client.
func NewMIDIClient(options *contracts.Options) (contracts.ClientMIDI, error) {
	options.Logger.Info("MIDI input client created",
		options.Logger.Field().String("client", midimsg.ClientName(options.CoreMIDIConfig)))
	return &Client{
		logger: options.Logger,
		filter: options.MIDIEventFilter,
	}, nil
}

// ListDevices returns the available winmm input devices.
func (m *Client) ListDevices() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	n := uint32(r0)
	if n == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, n)
	for i := uint32(0); i < n; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			m.logger.Warn("Failed to read MIDI device capabilities", m.logger.Field().Int("deviceID", int(i)))
			continue
		}
		name := windows.UTF16ToString(caps.szPname[:])
		devices[i] = contracts.DeviceInfo{
			Name:         name,
			EntityName:   name,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		}
	}
	return devices, nil
}

// SelectDevice opens the device at deviceID, closing any previous one.
func (m *Client) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.portConn {
		if err := m.close(); err != nil {
			return fmt.Errorf("failed to close previous MIDI device: %w", err)
		}
	}

	m.callback = windows.NewCallback(midiInCallback)
	r1, _, err := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&m.handle)),
		uintptr(deviceID),
		m.callback,
		uintptr(unsafe.Pointer(m)),
		uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
	)
	if r1 != 0 {
		return fmt.Errorf("failed to open MIDI device %d: %v", deviceID, err)
	}

	m.portConn = true
	m.logger.Info("MIDI device connected", m.logger.Field().Int("deviceID", deviceID))
	return nil
}

// StartCapture starts the device and routes decoded events to eventChannel.
func (m *Client) StartCapture(eventChannel chan contracts.MIDI) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.portConn || m.handle == 0 {
		m.logger.Error(ErrNoDeviceSelected.Error())
		return
	}
	if eventChannel == nil {
		m.logger.Error("StartCapture called with nil eventChannel")
		return
	}
	if !m.events.CompareAndSwap(nil, &eventChannel) {
		m.logger.Warn("Capture already started")
		return
	}

	if r1, _, err := procMidiInStart.Call(uintptr(m.handle)); r1 != 0 {
		m.events.Store(nil)
		m.logger.Error("Failed to start MIDI capture", m.logger.Field().Error("error", err))
		return
	}
	m.logger.Info("MIDI capture started")
}

func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	m := (*Client)(unsafe.Pointer(dwInstance))

	switch wMsg {
	case MIM_DATA:
		ch := m.events.Load()
		if ch == nil {
			return 0
		}
		raw := []byte{byte(dwParam1), byte(dwParam1 >> 8), byte(dwParam1 >> 16)}
		ev, err := midimsg.Decode(raw, time.Now())
		if err != nil || !midimsg.Allowed(ev, m.filter) {
			return 0
		}
		midimsg.Deliver(*ch, ev, m.logger)
	case MIM_OPEN, MIM_CLOSE, MIM_MOREDATA:
	case MIM_ERROR, MIM_LONGERROR:
		m.logger.Error("MIDI input error", m.logger.Field().Uint64("message", uint64(wMsg)))
	default:
		m.logger.Warn("Unknown MIDI input message", m.logger.Field().Uint64("message", uint64(wMsg)))
	}
	return 0
}

// Stop stops capture and closes the device.
func (m *Client) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.portConn {
		return nil
	}
	if err := m.close(); err != nil {
		return fmt.Errorf("failed to stop MIDI capture: %w", err)
	}
	m.logger.Info("MIDI capture stopped")
	return nil
}

func (m *Client) close() error {
	if m.handle == 0 {
		return ErrInvalidMIDIHandle
	}
	m.events.Store(nil)

	if r1, _, err := procMidiInStop.Call(uintptr(m.handle)); r1 != 0 {
		return err
	}
	if r1, _, err := procMidiInClose.Call(uintptr(m.handle)); r1 != 0 {
		return err
	}
	m.portConn = false
	m.handle = 0
	return nil
}
