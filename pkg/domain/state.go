package domain

// State is the conversational flow snapshot a bot handler keeps between
// incoming events: where the user is in a flow, plus free-form context.
// It is the typical payload stored in the light backend; durable business
// records live behind the durable factory instead.
type State struct {
	// Step is the identifier of the flow position (e.g. "onboarding:ask_name").
	Step string `json:"step"`

	// Context holds per-conversation variables (user space).
	Context map[string]any `json:"context,omitempty"`
}

// NewState creates a clean state positioned at the given step.
func NewState(step string) *State {
	return &State{
		Step:    step,
		Context: make(map[string]any),
	}
}

// Clone returns a copy whose Context does not alias the receiver's.
// Nested maps are copied one level deep, which matches how flow handlers
// structure context in practice.
func (s *State) Clone() *State {
	out := *s
	out.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		if sub, ok := v.(map[string]any); ok {
			cp := make(map[string]any, len(sub))
			for sk, sv := range sub {
				cp[sk] = sv
			}
			out.Context[k] = cp
			continue
		}
		out.Context[k] = v
	}
	return &out
}
