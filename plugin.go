package plughost

// Plugin is the uniform contract a loaded plugin satisfies, regardless of
// its binary format. The engine owns the plugin exclusively; plugins never
// reference each other. All methods except Process, BufferSizeChanged and
// SampleRateChanged are called from the control or housekeeping thread;
// Process is called from the RT thread and must not allocate.
type Plugin interface {
	// ID is the plugin's slot index in the engine table. It changes when
	// the table compacts; SetID is called only under the post-action
	// barrier.
	ID() uint32
	SetID(id uint32)

	Name() string
	Type() PluginType

	Enabled() bool
	SetEnabled(enabled bool)

	AudioInCount() uint32
	AudioOutCount() uint32
	MidiInCount() uint32
	MidiOutCount() uint32

	ParameterCount() uint32
	ParameterValue(index uint32) float32
	SetParameterValue(index uint32, value float32)

	BufferSizeChanged(newSize uint32)
	SampleRateChanged(newRate float64)

	// Process renders one block. in and out hold AudioInCount and
	// AudioOutCount channels of frames samples each; for rack processing
	// both are the fixed stereo bus.
	Process(in, out [][]float32, frames uint32)

	// IdleGUI runs periodic non-RT housekeeping (UI event pumps, bridge
	// polls). Driven by the engine's housekeeping thread.
	IdleGUI()

	SaveState() SaveState
}

// ParameterState is one parameter entry of a saved plugin state.
type ParameterState struct {
	Index uint32  `xml:"index,attr"`
	Name  string  `xml:"name,attr"`
	Value float32 `xml:"value,attr"`
}

// CustomData carries loader-specific opaque state (chunk data, file paths).
type CustomData struct {
	Type  string `xml:"type,attr"`
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// SaveState is everything needed to recreate a plugin in a project file.
type SaveState struct {
	Type     string `xml:"Info>Type"`
	Name     string `xml:"Info>Name"`
	Label    string `xml:"Info>Label,omitempty"`
	Binary   string `xml:"Info>Binary,omitempty"`
	Filename string `xml:"Info>Filename,omitempty"`

	Active     bool             `xml:"Data>Active"`
	Parameters []ParameterState `xml:"Data>Parameter"`
	CustomData []CustomData     `xml:"Data>CustomData"`
}
