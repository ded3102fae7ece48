package models

// VisualElementType discriminates which kind of editor element a visual
// state entry refers to.
type VisualElementType string

const (
	VisualElementNode       VisualElementType = "node"
	VisualElementConnection VisualElementType = "connection"
)

// VisualState is the render state of one element. Transient UI feedback,
// never persisted.
type VisualState string

const (
	VisualStateIdle    VisualState = "idle"
	VisualStatePending VisualState = "pending"
	VisualStateRunning VisualState = "running"
	VisualStateSuccess VisualState = "success"
	VisualStateError   VisualState = "error"
	VisualStateWarning VisualState = "warning"
)

// VisualElementState is one entry of a visual.state.update batch.
type VisualElementState struct {
	ID          string            `json:"id"           validate:"required"`
	ElementType VisualElementType `json:"element_type" validate:"required,oneof=node connection"`
	State       VisualState       `json:"state"        validate:"required,oneof=idle pending running success error warning"`
	Progress    *float64          `json:"progress,omitempty"`
	Message     string            `json:"message,omitempty"`
}
