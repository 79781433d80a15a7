package view

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

const (
	placeholderSelector = ".empty-placeholder"
	placeholderClass    = "min-h-8 empty-placeholder text-gray-500 text-sm italic"
)

// PlaceholderLabel returns the "no items" text for a container of kind.
func PlaceholderLabel(kind models.ItemKind) string {
	if kind == models.KindLane {
		return "尚無泳道"
	}
	return "尚無任務"
}

// HasPlaceholder reports whether the container currently shows a placeholder.
func (c *Container) HasPlaceholder() bool {
	return c.placeholders().Length() > 0
}

// Placeholders returns how many placeholder nodes the container holds.
func (c *Container) Placeholders() int {
	return c.placeholders().Length()
}

func (c *Container) placeholders() *goquery.Selection {
	return c.sel.ChildrenFiltered(placeholderSelector)
}

// EnsurePlaceholder keeps the emptiness invariant of a container: with zero
// items exactly one placeholder exists as its last child, with one or more
// items none exists. It reports whether the document changed.
func EnsurePlaceholder(c *Container) bool {
	if c == nil {
		return false
	}
	ph := c.placeholders()

	if c.Len() > 0 {
		if ph.Length() == 0 {
			return false
		}
		ph.Remove()
		return true
	}

	if ph.Length() == 1 && c.sel.Children().Last().Is(placeholderSelector) {
		return false
	}
	ph.Remove()
	c.sel.AppendNodes(newElement(placeholderClass, PlaceholderLabel(c.Kind)))
	return true
}

// EnsurePlaceholders runs EnsurePlaceholder over every container of kind.
func (d *Document) EnsurePlaceholders(kind models.ItemKind) {
	for _, c := range d.Containers(kind) {
		EnsurePlaceholder(c)
	}
}
