//go:build !darwin
// +build !darwin

package mididarwin

import (
	"github.com/leandrodaf/improv/internal/midi/midimsg"
	"github.com/leandrodaf/improv/sdk/contracts"
)

type dummyClient struct {
	logger contracts.Logger
}

// NewMIDIClient returns a placeholder on systems without CoreMIDI.
func NewMIDIClient(options *contracts.Options) (contracts.ClientMIDI, error) {
	options.Logger.Debug("CoreMIDI unavailable; using placeholder client")
	return &dummyClient{logger: options.Logger}, nil
}

func (m *dummyClient) ListDevices() ([]contracts.DeviceInfo, error) {
	return nil, midimsg.ErrUnavailable
}

func (m *dummyClient) SelectDevice(int) error {
	return midimsg.ErrUnavailable
}

func (m *dummyClient) StartCapture(chan contracts.MIDI) {
	m.logger.Warn("StartCapture called on placeholder MIDI client")
}

func (m *dummyClient) Stop() error { return nil }
