// Package config describes a crashvm machine in TOML: the size of working
// memory, the run budget, and the devices mapped after memory.
//
//	memory = 240
//	step_limit = 100000
//
//	[[device]]
//	name = "ARGS"
//	kind = "argument"
//	values = [5]
//
//	[[device]]
//	name = "OUT"
//	kind = "output"
//	size = 4
package config

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ezrec/crashvm/bus"
	"github.com/ezrec/crashvm/emulator"
	vmio "github.com/ezrec/crashvm/io"
	"github.com/ezrec/crashvm/translate"
)

var f = translate.From

const (
	DEFAULT_MEMORY = 256 // Working memory when none is configured.

	KIND_ARGUMENT = "argument"
	KIND_OUTPUT   = "output"
	KIND_CONSOLE  = "console"
	KIND_QUEUE    = "queue"
	KIND_DRUM     = "drum"
)

var (
	ErrDeviceKind = errors.New(f("device kind unknown"))
	ErrDeviceName = errors.New(f("device name missing or duplicated"))
	ErrDevicePath = errors.New(f("device path only valid for drums"))
)

// ErrUnknownKey is reported for keys the machine description does not use.
type ErrUnknownKey string

func (err ErrUnknownKey) Error() string {
	return f("unknown key %q", string(err))
}

// ErrDevice locates a device configuration error.
type ErrDevice struct {
	Name string
	Err  error
}

func (err *ErrDevice) Error() string {
	return f("device %q: %v", err.Name, err.Err)
}

func (err *ErrDevice) Unwrap() error {
	return err.Err
}

// Device is a peripheral mapped into the address space.
type Device struct {
	Name     string  `toml:"name"`     // Window name, published as an equate.
	Kind     string  `toml:"kind"`     // One of the KIND_* values.
	Size     int     `toml:"size"`     // Window size, defaults per kind.
	Values   []int64 `toml:"values"`   // Argument values.
	Capacity int     `toml:"capacity"` // Queue capacity.
	Length   int     `toml:"length"`   // Drum track length.
	Path     string  `toml:"path"`     // Drum track directory.
}

// Machine is the configuration of an emulator.
type Machine struct {
	Memory    int      `toml:"memory"`
	StepLimit int      `toml:"step_limit"`
	Verbose   bool     `toml:"verbose"`
	Device    []Device `toml:"device"`
}

// Default returns a machine with an ARGS argument window holding args,
// followed by an OUT output window of out cells.
func Default(memory int, out int, args ...int64) *Machine {
	return &Machine{
		Memory: memory,
		Device: []Device{
			{Name: "ARGS", Kind: KIND_ARGUMENT, Values: args},
			{Name: "OUT", Kind: KIND_OUTPUT, Size: out},
		},
	}
}

// Load reads a machine description.
func Load(input io.Reader) (mach *Machine, err error) {
	mach = &Machine{}
	md, err := toml.NewDecoder(input).Decode(mach)
	if err != nil {
		mach = nil
		return
	}

	for _, key := range md.Undecoded() {
		err = errors.Join(err, ErrUnknownKey(key.String()))
	}
	if err != nil {
		mach = nil
	}

	return
}

// Decode parses a machine description from text.
func Decode(text string) (mach *Machine, err error) {
	return Load(strings.NewReader(text))
}

// Arguments replaces the values of the named argument device.
func (mach *Machine) Arguments(name string, values ...int64) (err error) {
	for n := range mach.Device {
		dev := &mach.Device[n]
		if dev.Name == name && dev.Kind == KIND_ARGUMENT {
			dev.Values = values
			return
		}
	}

	return &ErrDevice{Name: name, Err: ErrDeviceName}
}

// Devices gives access to the devices built for a machine, by name.
type Devices struct {
	Arguments map[string]*vmio.Argument
	Outputs   map[string]*vmio.Output
	Consoles  map[string]*vmio.Console
	Queues    map[string]*vmio.Queue
	Drums     map[string]*vmio.Drum

	paths map[string]string // Drum track directories.
}

// Save writes every drum with a path back to its directory.
func (devs *Devices) Save() (err error) {
	for name, path := range devs.paths {
		err = devs.Drums[name].Marshal(vmio.DirFS(path))
		if err != nil {
			return &ErrDevice{Name: name, Err: err}
		}
	}

	return
}

// window builds the peripheral of a single device.
func (devs *Devices) window(dev Device, stdin io.Reader, stdout io.Writer) (win bus.Window, err error) {
	win = bus.Window{Name: dev.Name, Size: dev.Size}

	if dev.Path != "" && dev.Kind != KIND_DRUM {
		err = ErrDevicePath
		return
	}

	switch dev.Kind {
	case KIND_ARGUMENT:
		arg := vmio.NewArgument(dev.Values...)
		if win.Size == 0 {
			win.Size = max(len(dev.Values), 1)
		}
		devs.Arguments[dev.Name] = arg
		win.Device = arg
	case KIND_OUTPUT:
		out := &vmio.Output{}
		if win.Size == 0 {
			win.Size = 1
		}
		devs.Outputs[dev.Name] = out
		win.Device = out
	case KIND_CONSOLE:
		con := &vmio.Console{Input: stdin, Output: stdout}
		if win.Size == 0 {
			win.Size = vmio.CONSOLE_SIZE
		}
		devs.Consoles[dev.Name] = con
		win.Device = con
	case KIND_QUEUE:
		q := &vmio.Queue{Capacity: dev.Capacity}
		q.Reset()
		if win.Size == 0 {
			win.Size = vmio.QUEUE_SIZE
		}
		devs.Queues[dev.Name] = q
		win.Device = q
	case KIND_DRUM:
		dr := &vmio.Drum{TrackLength: dev.Length}
		if dev.Path != "" {
			err = dr.Unmarshal(vmio.DirFS(dev.Path))
			if errors.Is(err, fs.ErrNotExist) {
				err = nil
			}
			if err != nil {
				return
			}
			devs.paths[dev.Name] = dev.Path
		}
		if win.Size == 0 {
			win.Size = vmio.DRUM_SIZE
		}
		devs.Drums[dev.Name] = dr
		win.Device = dr
	default:
		err = ErrDeviceKind
	}

	return
}

// Build creates the emulator and its devices. Consoles use stdin and stdout.
func (mach *Machine) Build(stdin io.Reader, stdout io.Writer) (emu *emulator.Emulator, devs *Devices, err error) {
	devs = &Devices{
		Arguments: map[string]*vmio.Argument{},
		Outputs:   map[string]*vmio.Output{},
		Consoles:  map[string]*vmio.Console{},
		Queues:    map[string]*vmio.Queue{},
		Drums:     map[string]*vmio.Drum{},
		paths:     map[string]string{},
	}

	names := map[string]bool{}
	windows := make([]bus.Window, 0, len(mach.Device))
	for _, dev := range mach.Device {
		if dev.Name == "" || names[dev.Name] {
			err = &ErrDevice{Name: dev.Name, Err: ErrDeviceName}
			return nil, nil, err
		}
		names[dev.Name] = true

		var win bus.Window
		win, err = devs.window(dev, stdin, stdout)
		if err != nil {
			err = &ErrDevice{Name: dev.Name, Err: err}
			return nil, nil, err
		}
		windows = append(windows, win)
	}

	memory := mach.Memory
	if memory == 0 {
		memory = DEFAULT_MEMORY
	}

	emu, err = emulator.NewEmulator(memory, windows...)
	if err != nil {
		return nil, nil, err
	}
	emu.StepLimit = mach.StepLimit
	emu.Verbose = mach.Verbose

	if mach.Verbose {
		for _, region := range emu.Bus.Regions() {
			log.Printf("config: %v at %04x, %d cells", region.Name, region.Base, region.Size)
		}
	}

	return
}
