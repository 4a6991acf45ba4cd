//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/improv/internal/midi/midimsg"
	"github.com/leandrodaf/improv/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

var (
	ErrNoMIDIDevices       = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice   = errors.New("invalid MIDI device")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
)

type portConnection interface {
	Disconnect()
}

// Client captures live notes from a CoreMIDI source and forwards them as
// contracts.MIDI events. The engine turns note-ons into influences.
type Client struct {
	logger    contracts.Logger
	events    atomic.Pointer[chan contracts.MIDI]
	client    coremidi.Client
	inputPort coremidi.InputPort
	portConn  portConnection
	filter    *contracts.MIDIEventFilter
	mu        sync.Mutex
	wg        sync.WaitGroup
}

// NewMIDIClient creates the CoreMIDI client named by options.CoreMIDIConfig.
func NewMIDIClient(options *contracts.Options) (contracts.ClientMIDI, error) {
	name := midimsg.ClientName(options.CoreMIDIConfig)
	client, err := coremidi.NewClient(name)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("MIDI input client created", options.Logger.Field().String("client", name))

	return &Client{
		logger: options.Logger,
		client: client,
		filter: options.MIDIEventFilter,
	}, nil
}

// ListDevices returns the available CoreMIDI sources.
func (m *Client) ListDevices() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		entity := source.Entity()
		devices[i] = contracts.DeviceInfo{
			Name:         source.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
		}
	}
	return devices, nil
}

// SelectDevice connects to the source at deviceID, replacing any previous connection.
func (m *Client) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources, err := coremidi.AllSources()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	if deviceID < 0 || deviceID >= len(sources) {
		return fmt.Errorf("%w: %d", ErrInvalidMIDIDevice, deviceID)
	}

	m.disconnect()

	source := sources[deviceID]
	m.inputPort, err = coremidi.NewInputPort(m.client, "improv input", m.handlePacket)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}
	m.portConn, err = m.inputPort.Connect(source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}

	m.logger.Info("MIDI device connected",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", source.Name()))
	return nil
}

func (m *Client) handlePacket(_ coremidi.Source, packet coremidi.Packet) {
	m.wg.Add(1)
	defer m.wg.Done()

	ch := m.events.Load()
	if ch == nil {
		return
	}

	ev, err := midimsg.Decode(packet.Data, time.Now())
	if err != nil {
		m.logger.Warn("Dropping MIDI packet", m.logger.Field().Error("error", err))
		return
	}
	if !midimsg.Allowed(ev, m.filter) {
		return
	}
	midimsg.Deliver(*ch, ev, m.logger)
}

// StartCapture routes decoded events to eventChannel until Stop.
func (m *Client) StartCapture(eventChannel chan contracts.MIDI) {
	if eventChannel == nil {
		m.logger.Error("StartCapture called with nil eventChannel")
		return
	}
	if !m.events.CompareAndSwap(nil, &eventChannel) {
		m.logger.Warn("Capture already started")
		return
	}
	m.logger.Info("Starting MIDI event capture")
}

// Stop disconnects the source and waits for in-flight packets. It is safe to call more than once.
func (m *Client) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnect()
	if m.events.Swap(nil) != nil {
		m.wg.Wait()
		m.logger.Info("MIDI capture stopped")
	}
	return nil
}

func (m *Client) disconnect() {
	if m.portConn != nil {
		m.portConn.Disconnect()
		m.portConn = nil
	}
}
