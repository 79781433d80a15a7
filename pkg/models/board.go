package models

// ItemKind distinguishes the two orderable things on a board.
type ItemKind string

const (
	KindTask ItemKind = "task"
	KindLane ItemKind = "lane"
)

// Item is a task or lane as projected from the server-rendered page.
// ContainerID is the lane id for tasks and the project id for lanes.
type Item struct {
	ID          string   `yaml:"id" json:"id"`
	Kind        ItemKind `yaml:"kind" json:"kind"`
	Name        string   `yaml:"name,omitempty" json:"name,omitempty"`
	ContainerID string   `yaml:"container_id" json:"container_id"`
}

// OrderedContainer is a lane's tasks or a project's lanes in visual order.
type OrderedContainer struct {
	ID    string   `yaml:"id" json:"id"`
	Kind  ItemKind `yaml:"kind" json:"kind"` // kind of the items it holds
	Name  string   `yaml:"name,omitempty" json:"name,omitempty"`
	Items []Item   `yaml:"items" json:"items"`
}

// Lane is a lane together with its task container, used for snapshots.
type Lane struct {
	Item  `yaml:",inline"`
	Tasks []Item `yaml:"tasks" json:"tasks"`
}

// Board is the projection of one project page.
type Board struct {
	ProjectID string `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	Lanes     []Lane `yaml:"lanes" json:"lanes"`
}
