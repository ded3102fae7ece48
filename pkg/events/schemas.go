package events

// Raw message schemas, keyed by event type. Normalization validates every
// inbound runtime payload against these before constructing an Event.

func stringArraySchema() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

var rawSchemas = map[EventType]map[string]any{
	NodeExecutingEvent: {
		"type":     "object",
		"required": []string{"node_id"},
		"properties": map[string]any{
			"node_id":              map[string]any{"type": "string", "minLength": 1},
			"incoming_connections": stringArraySchema(),
		},
	},
	NodeCompletedEvent: {
		"type":     "object",
		"required": []string{"node_id"},
		"properties": map[string]any{
			"node_id":              map[string]any{"type": "string", "minLength": 1},
			"outgoing_connections": stringArraySchema(),
			"duration_ms":          map[string]any{"type": "integer", "minimum": 0},
			"output_size_bytes":    map[string]any{"type": "integer", "minimum": 0},
		},
	},
	NodeFailedEvent: {
		"type":     "object",
		"required": []string{"node_id", "error"},
		"properties": map[string]any{
			"node_id":              map[string]any{"type": "string", "minLength": 1},
			"outgoing_connections": stringArraySchema(),
			"error":                map[string]any{"type": "string"},
			"duration_ms":          map[string]any{"type": "integer", "minimum": 0},
		},
	},
	NodeWarningEvent: {
		"type":     "object",
		"required": []string{"node_id", "warning"},
		"properties": map[string]any{
			"node_id":              map[string]any{"type": "string", "minLength": 1},
			"outgoing_connections": stringArraySchema(),
			"warning":              map[string]any{"type": "string"},
			"duration_ms":          map[string]any{"type": "integer", "minimum": 0},
		},
	},
	ExecutionStartedEvent: {
		"type":     "object",
		"required": []string{"session_id", "workflow_name"},
		"properties": map[string]any{
			"session_id":    map[string]any{"type": "string", "minLength": 1},
			"workflow_name": map[string]any{"type": "string"},
		},
	},
	ExecutionCompletedEvent: {
		"type":     "object",
		"required": []string{"session_id", "duration_ms", "nodes_executed"},
		"properties": map[string]any{
			"session_id":     map[string]any{"type": "string", "minLength": 1},
			"duration_ms":    map[string]any{"type": "integer", "minimum": 0},
			"nodes_executed": map[string]any{"type": "integer", "minimum": 0},
			"summary":        map[string]any{"type": "object"},
		},
	},
	ExecutionFailedEvent: {
		"type":     "object",
		"required": []string{"session_id", "error"},
		"properties": map[string]any{
			"session_id":  map[string]any{"type": "string", "minLength": 1},
			"error":       map[string]any{"type": "string"},
			"duration_ms": map[string]any{"type": "integer", "minimum": 0},
		},
	},
	ConnectionStateEvent: {
		"type":     "object",
		"required": []string{"connection_id", "state"},
		"properties": map[string]any{
			"connection_id": map[string]any{"type": "string", "minLength": 1},
			"state": map[string]any{
				"type": "string",
				"enum": []string{"idle", "pending", "running", "success", "error", "warning"},
			},
		},
	},
	WorkflowUpdatedEvent: {
		"type":     "object",
		"required": []string{"version", "graph"},
		"properties": map[string]any{
			"version": map[string]any{"type": "integer", "minimum": 0},
			"graph":   map[string]any{"type": "object"},
		},
	},
	VisualStateUpdateEvent: {
		"type":     "object",
		"required": []string{"elements"},
		"properties": map[string]any{
			"elements": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"id", "element_type", "state"},
					"properties": map[string]any{
						"id":           map[string]any{"type": "string", "minLength": 1},
						"element_type": map[string]any{"type": "string", "enum": []string{"node", "connection"}},
						"state": map[string]any{
							"type": "string",
							"enum": []string{"idle", "pending", "running", "success", "error", "warning"},
						},
						"progress": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
						"message":  map[string]any{"type": "string"},
					},
				},
			},
		},
	},
}
