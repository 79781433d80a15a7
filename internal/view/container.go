package view

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

const (
	taskListClass = ".task-list"
	laneListClass = ".lane-list"
	taskItemClass = ".task-item"
	laneItemClass = ".lane-item"

	laneIDAttr    = "data-lane-id"
	projectIDAttr = "data-project-id"
)

// Container is an ordered list element of the page: a lane's task list or a
// project's lane list.
type Container struct {
	Kind models.ItemKind // kind of the items it holds
	ID   string
	sel  *goquery.Selection
}

func containerShape(kind models.ItemKind) (class, idAttr, itemClass string) {
	if kind == models.KindLane {
		return laneListClass, projectIDAttr, laneItemClass
	}
	return taskListClass, laneIDAttr, taskItemClass
}

// Containers returns every container holding items of kind, in document order.
func (d *Document) Containers(kind models.ItemKind) []*Container {
	class, idAttr, _ := containerShape(kind)
	var out []*Container
	d.doc.Find(class).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Container{Kind: kind, ID: attr(s, idAttr), sel: s})
	})
	return out
}

// Container finds the container of kind with the given id.
func (d *Document) Container(kind models.ItemKind, id string) (*Container, error) {
	for _, c := range d.Containers(kind) {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("finding %s container %q: %w", kind, id, ErrContainerNotFound)
}

// ContainerOf returns the container currently holding the item.
func (d *Document) ContainerOf(kind models.ItemKind, itemID string) (*Container, error) {
	for _, c := range d.Containers(kind) {
		if c.itemSel(itemID).Length() > 0 {
			return c, nil
		}
	}
	return nil, fmt.Errorf("locating %s %q: %w", kind, itemID, ErrItemNotFound)
}

func (c *Container) items() *goquery.Selection {
	_, _, itemClass := containerShape(c.Kind)
	return c.sel.ChildrenFiltered(itemClass)
}

func (c *Container) itemSel(itemID string) *goquery.Selection {
	return c.items().FilterFunction(func(_ int, s *goquery.Selection) bool {
		return attr(s, "data-id") == itemID
	})
}

// Len returns the number of items in the container.
func (c *Container) Len() int {
	return c.items().Length()
}

// Items returns the items in visual order.
func (c *Container) Items() []models.Item {
	var out []models.Item
	c.items().Each(func(_ int, s *goquery.Selection) {
		out = append(out, itemFrom(s, c.Kind, c.ID))
	})
	return out
}

// IndexOf returns the visual index of the item, or -1.
func (c *Container) IndexOf(itemID string) int {
	idx := -1
	c.items().EachWithBreak(func(i int, s *goquery.Selection) bool {
		if attr(s, "data-id") == itemID {
			idx = i
			return false
		}
		return true
	})
	return idx
}

func itemFrom(s *goquery.Selection, kind models.ItemKind, containerID string) models.Item {
	name := attr(s, "data-name")
	if name == "" && kind == models.KindTask {
		name = strings.TrimSpace(s.Text())
	}
	return models.Item{
		ID:          attr(s, "data-id"),
		Kind:        kind,
		Name:        name,
		ContainerID: containerID,
	}
}

// MoveItem performs the DOM side of a drop: the item is detached from its
// current container and inserted into the target at index (clamped to the
// target's bounds). The returned gesture carries the effective index.
// Placeholders are left untouched; see EnsurePlaceholder.
func (d *Document) MoveItem(kind models.ItemKind, itemID, targetID string, index int) (models.Gesture, error) {
	src, err := d.ContainerOf(kind, itemID)
	if err != nil {
		return models.Gesture{}, err
	}
	dst, err := d.Container(kind, targetID)
	if err != nil {
		return models.Gesture{}, err
	}

	node := src.itemSel(itemID).First()
	node.Remove()

	siblings := dst.items()
	n := siblings.Length()
	if index < 0 {
		index = 0
	}
	if index > n {
		index = n
	}
	switch {
	case index < n:
		siblings.Eq(index).BeforeSelection(node)
	case n > 0:
		siblings.Last().AfterSelection(node)
	default:
		dst.sel.PrependSelection(node)
	}

	return models.Gesture{
		Kind:              kind,
		ItemID:            itemID,
		SourceContainerID: src.ID,
		TargetContainerID: dst.ID,
		NewVisualIndex:    index,
	}, nil
}

// AddItem appends a new item element to the container. Used by tests and the
// snapshot tooling to build projections.
func (c *Container) AddItem(id, name string) {
	_, _, itemClass := containerShape(c.Kind)
	el := newElement(strings.TrimPrefix(itemClass, "."), name,
		html.Attribute{Key: "data-id", Val: id},
		html.Attribute{Key: "data-name", Val: name})
	items := c.items()
	if items.Length() > 0 {
		items.Last().AfterNodes(el)
		return
	}
	c.sel.PrependNodes(el)
}

// RemoveItem detaches the item and reports whether it was present.
func (c *Container) RemoveItem(id string) bool {
	s := c.itemSel(id)
	if s.Length() == 0 {
		return false
	}
	s.Remove()
	return true
}

// newElement builds a detached div carrying class, attrs and a text child.
func newElement(class, text string, attrs ...html.Attribute) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     append([]html.Attribute{{Key: "class", Val: class}}, attrs...),
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}
