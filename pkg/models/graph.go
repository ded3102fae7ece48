package models

// DefaultGraphID is used when a runtime reports events without a graph id.
// Workflows currently carry a single canonical graph.
const DefaultGraphID = "main"

// Graph is the node/connection payload of a workflow version. The hub treats
// it as a value to diff and relay, never to execute.
type Graph struct {
	ID          string            `json:"id"`
	Nodes       []*GraphNode      `json:"nodes"`
	Connections []*GraphConnection `json:"connections"`
}

// GraphNode is a node instance as drawn in the editor.
type GraphNode struct {
	ID        string         `json:"id"   validate:"required"`
	Type      string         `json:"type" validate:"required"`
	Name      string         `json:"name"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
	Config    map[string]any `json:"config,omitempty"`
}

// GraphConnection links two node ports: "{node_id}:{port_name}".
type GraphConnection struct {
	ID         string `json:"id"          validate:"required"`
	SourcePort string `json:"source_port" validate:"required"`
	TargetPort string `json:"target_port" validate:"required"`
}
