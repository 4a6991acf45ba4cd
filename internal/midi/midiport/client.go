// Package midiport captures live input through any gomidi driver registered
// by the application, for platforms without a native client.
package midiport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/improv/internal/midi/midimsg"
	"github.com/leandrodaf/improv/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var (
	ErrNoMIDIDevices     = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
	ErrNoDeviceSelected  = errors.New("no MIDI device selected")
)

// PortLister returns the input ports currently available.
type PortLister func() ([]drivers.In, error)

// Client listens on one gomidi input port.
type Client struct {
	logger contracts.Logger
	filter *contracts.MIDIEventFilter
	ports  PortLister
	now    func() time.Time

	mu   sync.Mutex
	in   drivers.In
	stop func()
}

// NewMIDIClient creates a client over the ports registered with gomidi.
func NewMIDIClient(options *contracts.Options) (contracts.ClientMIDI, error) {
	return New(options, drivers.Ins), nil
}

// New creates a client listing its ports through ports.
func New(options *contracts.Options, ports PortLister) *Client {
	now := time.Now
	if options.Clock != nil {
		now = options.Clock
	}
	return &Client{
		logger: options.Logger,
		filter: options.MIDIEventFilter,
		ports:  ports,
		now:    now,
	}
}

// ListDevices returns the names of the available input ports.
func (c *Client) ListDevices() ([]contracts.DeviceInfo, error) {
	ins, err := c.ports()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI ports: %w", err)
	}
	if len(ins) == 0 {
		return nil, ErrNoMIDIDevices
	}
	devices := make([]contracts.DeviceInfo, len(ins))
	for i, in := range ins {
		devices[i] = contracts.DeviceInfo{Name: in.String(), EntityName: in.String()}
	}
	return devices, nil
}

// SelectDevice picks the input port at deviceID. A running capture is stopped first.
func (c *Client) SelectDevice(deviceID int) error {
	ins, err := c.ports()
	if err != nil {
		return fmt.Errorf("error listing MIDI ports: %w", err)
	}
	if deviceID < 0 || deviceID >= len(ins) {
		return fmt.Errorf("%w: %d", ErrInvalidMIDIDevice, deviceID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.halt()
	c.in = ins[deviceID]
	c.logger.Info("MIDI device selected",
		c.logger.Field().Int("deviceID", deviceID),
		c.logger.Field().String("deviceName", c.in.String()))
	return nil
}

// StartCapture listens on the selected port and routes decoded events to eventChannel.
func (c *Client) StartCapture(eventChannel chan contracts.MIDI) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.in == nil {
		c.logger.Error(ErrNoDeviceSelected.Error())
		return
	}
	if c.stop != nil {
		c.logger.Warn("Capture already started")
		return
	}

	stop, err := midi.ListenTo(c.in, func(msg midi.Message, _ int32) {
		ev, err := midimsg.Decode(msg, c.now())
		if err != nil || !midimsg.Allowed(ev, c.filter) {
			return
		}
		midimsg.Deliver(eventChannel, ev, c.logger)
	})
	if err != nil {
		c.logger.Error("Failed to start MIDI capture", c.logger.Field().Error("error", err))
		return
	}
	c.stop = stop
	c.logger.Info("MIDI capture started", c.logger.Field().String("deviceName", c.in.String()))
}

// Stop ends the capture and closes the port.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.halt()
	if c.in != nil && c.in.IsOpen() {
		return c.in.Close()
	}
	return nil
}

func (c *Client) halt() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}
