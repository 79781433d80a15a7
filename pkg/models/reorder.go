package models

// Gesture is a completed drag as reported by the drag layer. NewVisualIndex
// is 0-based.
type Gesture struct {
	Kind              ItemKind
	ItemID            string
	SourceContainerID string
	TargetContainerID string
	NewVisualIndex    int
}

// CrossContainer reports whether the item changed containers.
func (g Gesture) CrossContainer() bool {
	return g.SourceContainerID != g.TargetContainerID
}

// ReorderCommand is the absolute position update sent to the server.
// Position is 1-based.
type ReorderCommand struct {
	ID          string // correlation id
	Kind        ItemKind
	ItemID      string
	Position    int
	ContainerID string
}

// Path returns the partial-update endpoint for the command.
func (c ReorderCommand) Path() string {
	return "/" + string(c.Kind) + "s/" + c.ItemID + "/position"
}

// ScopeField returns the form field naming the scope container.
func (c ReorderCommand) ScopeField() string {
	if c.Kind == KindLane {
		return "project_id"
	}
	return "target_lane_id"
}
