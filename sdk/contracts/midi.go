package contracts

// MIDI represents a live MIDI event captured from an input device.
type MIDI struct {
	Timestamp uint64 // Timestamp indicates the time the event occurred.
	Command   byte   // Command specifies the type of MIDI event (e.g., Note On, Note Off).
	Channel   byte   // Channel is the zero-based MIDI channel taken from the status byte.
	Note      byte   // Note represents the MIDI note number (0-127).
	Velocity  byte   // Velocity indicates the strength of the note being played (0-127).
}

// IsNoteOn reports whether the event starts a note. A Note On with velocity 0 is a note-off.
func (m MIDI) IsNoteOn() bool {
	return MIDICommand(m.Command&0xF0) == NoteOn && m.Velocity > 0
}

// ClientMIDI defines an interface for live MIDI input operations.
type ClientMIDI interface {
	Stop() error                         // Stops the MIDI client and releases resources.
	ListDevices() ([]DeviceInfo, error)  // Lists all available MIDI devices.
	SelectDevice(deviceID int) error     // Selects a MIDI device by its ID for communication.
	StartCapture(eventChannel chan MIDI) // Starts capturing MIDI events and sends them to the specified channel.
}
