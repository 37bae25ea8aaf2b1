package protocol

// HelloMsg is the observer's opening message.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ObserverName    string `json:"observer_name,omitempty"`
}

// WelcomeMsg describes the run the observer attached to.
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RunID           string   `json:"run_id"`
	Scenario        string   `json:"scenario,omitempty"`
	Mode            string   `json:"mode"`
	Seed            int64    `json:"seed"`
	Agents          []string `json:"agents"`
	Layers          []string `json:"layers"`
}

// AgentTick is one agent's post-step snapshot plus step diagnostics.
// Energies and inertias are keyed by layer name.
type AgentTick struct {
	AgentID string             `json:"agent_id"`
	Energy  map[string]float64 `json:"energy"`
	Direct  float64            `json:"direct"`
	Inertia map[string]float64 `json:"inertia"`
	Power   map[string]float64 `json:"power,omitempty"`

	Critical  []string `json:"critical,omitempty"`
	Dominant  string   `json:"dominant"`
	Leap      string   `json:"leap"`
	LeapLayer string   `json:"leap_layer,omitempty"`
}

type TickMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	Agents          []AgentTick `json:"agents"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
