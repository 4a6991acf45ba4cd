package improv

import (
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned by Dispatch for command types it does not route.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a typed engine instruction, e.g. decoded from a control surface.
type Command interface {
	CommandName() string
}

// CreatePlayer creates a player whose output is logged.
type CreatePlayer struct {
	Player string
	Mode   TriggerMode
}

type CreateStreamView struct {
	Player       string
	Path         string
	Weight       float64
	MergeActions []string
}

type CreateAtom struct {
	Player string
	Path   string
	Config AtomConfig
}

type DeleteAtom struct {
	Player string
	Path   string
}

// Influence feeds a label of the given kind.
type Influence struct {
	Player string
	Path   string
	Kind   string
	Value  int
}

type InfluencePitch struct {
	Player string
	Path   string
	Pitch  int
}

type InfluenceChroma struct {
	Player string
	Path   string
	Chroma []float64
}

type ReadCorpus struct {
	Player string
	Path   string
}

type SetWeight struct {
	Player string
	Path   string
	Weight float64
}

type SetEnabled struct {
	Player  string
	Path    string
	Enabled bool
}

type AddTransforms struct {
	Player     string
	Path       string
	Transforms []string
}

type SetTriggerMode struct {
	Player string
	Mode   TriggerMode
}

type SetTempo struct {
	BPM float64
}

type SetTempoMaster struct {
	Player string
}

type NewEvent struct {
	Player string
}

// Goto plays the corpus state at State next.
type Goto struct {
	Player string
	State  int
}

type Jump struct {
	Player string
}

type Reset struct {
	Player string
}

type Start struct{}

type Pause struct{}

type Stop struct{}

func (CreatePlayer) CommandName() string     { return "create_player" }
func (CreateStreamView) CommandName() string { return "create_streamview" }
func (CreateAtom) CommandName() string       { return "create_atom" }
func (DeleteAtom) CommandName() string       { return "delete_atom" }
func (Influence) CommandName() string        { return "influence" }
func (InfluencePitch) CommandName() string   { return "influence_pitch" }
func (InfluenceChroma) CommandName() string  { return "influence_chroma" }
func (ReadCorpus) CommandName() string       { return "read_corpus" }
func (SetWeight) CommandName() string        { return "set_weight" }
func (SetEnabled) CommandName() string       { return "set_enabled" }
func (AddTransforms) CommandName() string    { return "add_transforms" }
func (SetTriggerMode) CommandName() string   { return "set_trigger_mode" }
func (SetTempo) CommandName() string         { return "set_tempo" }
func (SetTempoMaster) CommandName() string   { return "set_tempo_master" }
func (NewEvent) CommandName() string         { return "new_event" }
func (Goto) CommandName() string             { return "goto" }
func (Jump) CommandName() string             { return "jump" }
func (Reset) CommandName() string            { return "reset" }
func (Start) CommandName() string            { return "start" }
func (Pause) CommandName() string            { return "pause" }
func (Stop) CommandName() string             { return "stop" }

// Dispatch routes cmd to the matching Engine method. Players created through
// CreatePlayer log their output.
func (e *Engine) Dispatch(cmd Command) error {
	var err error
	switch c := cmd.(type) {
	case CreatePlayer:
		err = e.NewPlayer(c.Player, e.logTarget(), c.Mode)
	case CreateStreamView:
		err = e.CreateStreamView(c.Player, c.Path, c.Weight, c.MergeActions...)
	case CreateAtom:
		err = e.CreateAtom(c.Player, c.Path, c.Config)
	case DeleteAtom:
		err = e.DeleteAtom(c.Player, c.Path)
	case Influence:
		err = e.Influence(c.Player, c.Path, c.Kind, c.Value)
	case InfluencePitch:
		err = e.InfluencePitch(c.Player, c.Path, c.Pitch)
	case InfluenceChroma:
		err = e.InfluenceChroma(c.Player, c.Path, c.Chroma)
	case ReadCorpus:
		err = e.ReadCorpus(c.Player, c.Path)
	case SetWeight:
		err = e.SetWeight(c.Player, c.Path, c.Weight)
	case SetEnabled:
		err = e.SetEnabled(c.Player, c.Path, c.Enabled)
	case AddTransforms:
		err = e.AddTransforms(c.Player, c.Path, c.Transforms...)
	case SetTriggerMode:
		err = e.SetTriggerMode(c.Player, c.Mode)
	case SetTempo:
		err = e.SetTempo(c.BPM)
	case SetTempoMaster:
		err = e.SetTempoMaster(c.Player)
	case NewEvent:
		err = e.NewEvent(c.Player)
	case Goto:
		err = e.Goto(c.Player, c.State)
	case Jump:
		err = e.Jump(c.Player)
	case Reset:
		err = e.Reset(c.Player)
	case Start:
		err = e.Start()
	case Pause:
		e.Pause()
	case Stop:
		err = e.Stop()
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	if err != nil {
		e.logger.Warn("Command failed",
			e.logger.Field().String("command", cmd.CommandName()),
			e.logger.Field().Error("error", err))
	}
	return err
}
