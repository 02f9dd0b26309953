package settings

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type number interface {
	int | int8 | int16 | int32 | int64 | uint | uint8 | uint16 | uint32 | uint64
}

type Setting[T number] struct {
	Default T `yaml:"default"` // soft limit
	Maximal T `yaml:"maximal"` // hard limit
}

type (
	// Parser is responsible for the per-connection request parser.
	Parser struct {
		// BufferSize bounds the receive buffer a request is accumulated in.
		// Default value is an initial size of the buffer.
		// Maximal value is the hard cap; exceeding it fails the request with
		//         413 Request Entity Too Large.
		BufferSize Setting[uint32] `yaml:"buffer-size"`
	}

	// TCP is responsible for the listener and its worker pool.
	TCP struct {
		// Workers is a number of event-loop workers, each owning its own
		// readiness poller and a disjoint subset of connections.
		Workers int `yaml:"workers"`
		// Backlog is passed to listen(2).
		Backlog int `yaml:"backlog"`
		// ReadBufferSize is how many bytes are read from a socket at most
		// per read(2) call.
		ReadBufferSize int `yaml:"read-buffer-size"`
		// Flags are transport-specific socket options.
		Flags SocketFlags `yaml:"flags"`
	}

	// Poller is responsible for the readiness notifier.
	Poller struct {
		// MaxEvents is how many events are collected per poll call at most.
		MaxEvents int `yaml:"max-events"`
		// Timeout bounds a single blocking poll call.
		Timeout Duration `yaml:"timeout"`
	}
)

// Duration is a time.Duration unmarshalling from YAML strings such as "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}

	*d = Duration(parsed)
	return nil
}

// SocketFlags is a bitset of socket options applied to the listening socket.
type SocketFlags uint8

const (
	ReuseAddr SocketFlags = 1 << iota
	ReusePort
	NoDelay
)

func (f SocketFlags) Has(flag SocketFlags) bool {
	return f&flag == flag
}

type Settings struct {
	Parser Parser `yaml:"parser"`
	TCP    TCP    `yaml:"tcp"`
	Poller Poller `yaml:"poller"`
}

func Default() Settings {
	return Settings{
		Parser: Parser{
			BufferSize: Setting[uint32]{
				Default: 4096,
				Maximal: 65536,
			},
		},
		TCP: TCP{
			Workers:        1,
			Backlog:        128,
			ReadBufferSize: 2048,
			Flags:          ReuseAddr,
		},
		Poller: Poller{
			MaxEvents: 256,
			Timeout:   Duration(500 * time.Millisecond),
		},
	}
}

// Fill takes some settings and fills it with default values everywhere where it
// is not filled.
func Fill(original Settings) (modified Settings) {
	defaults := Default()

	original.Parser.BufferSize.Default = customOrDefault(
		original.Parser.BufferSize.Default, defaults.Parser.BufferSize.Default,
	)
	original.Parser.BufferSize.Maximal = customOrDefault(
		original.Parser.BufferSize.Maximal, defaults.Parser.BufferSize.Maximal,
	)
	original.TCP.Workers = customOrDefault(
		original.TCP.Workers, defaults.TCP.Workers,
	)
	original.TCP.Backlog = customOrDefault(
		original.TCP.Backlog, defaults.TCP.Backlog,
	)
	original.TCP.ReadBufferSize = customOrDefault(
		original.TCP.ReadBufferSize, defaults.TCP.ReadBufferSize,
	)
	if original.TCP.Flags == 0 {
		original.TCP.Flags = defaults.TCP.Flags
	}
	original.Poller.MaxEvents = customOrDefault(
		original.Poller.MaxEvents, defaults.Poller.MaxEvents,
	)
	if original.Poller.Timeout == 0 {
		original.Poller.Timeout = defaults.Poller.Timeout
	}

	return original
}

// FromFile loads settings from a YAML file. Omitted fields are filled with
// default values.
func FromFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err = yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}

	return Fill(s), nil
}

func customOrDefault[T number](custom, defaultVal T) T {
	if custom == 0 {
		return defaultVal
	}

	return custom
}
