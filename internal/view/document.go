// Package view holds the client-side projection of the server-rendered page.
//
// A Document is not safe for concurrent use. Callers serialize access per
// event-handler turn (see page.Page.Turn).
package view

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jeterchen1226/fastapi-trello/pkg/models"
)

var (
	// ErrContainerNotFound is returned when no container matches a kind and id.
	ErrContainerNotFound = errors.New("container not found")
	// ErrItemNotFound is returned when no item matches a kind and id.
	ErrItemNotFound = errors.New("item not found")
	// ErrTargetNotFound is returned when a swap target id is absent.
	ErrTargetNotFound = errors.New("swap target not found")
)

// Document is the in-memory DOM of the current page.
type Document struct {
	doc *goquery.Document
}

// Parse reads an HTML document or fragment.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// HTML renders the document back to markup.
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// ByID returns the first element with the given id (possibly empty).
func (d *Document) ByID(id string) *goquery.Selection {
	return d.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
}

// MetaContent returns the content attribute of <meta name=name>.
func (d *Document) MetaContent(name string) (string, bool) {
	meta := d.doc.Find("meta").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("name")
		return v == name
	}).First()
	if meta.Length() == 0 {
		return "", false
	}
	return meta.Attr("content")
}

// SwapInner replaces the children of the element with targetID by the
// parsed fragment.
func (d *Document) SwapInner(targetID, fragment string) error {
	target := d.ByID(targetID)
	if target.Length() == 0 {
		return fmt.Errorf("swapping into #%s: %w", targetID, ErrTargetNotFound)
	}
	target.SetHtml(fragment)
	return nil
}

// Contains reports whether an element with id exists.
func (d *Document) Contains(id string) bool {
	return d.ByID(id).Length() > 0
}

// Marker is the embedded feedback element injected by the server.
type Marker struct {
	Message string
	Type    string
}

// TakeMarker reads the marker element with the given id and removes it from
// the document. The element is removed even when its attributes are empty.
func (d *Document) TakeMarker(id string) (Marker, bool) {
	el := d.ByID(id)
	if el.Length() == 0 {
		return Marker{}, false
	}
	m := markerFrom(el)
	el.Remove()
	return m, true
}

// TakeText reads the trimmed text of the element with the given id and
// removes the element.
func (d *Document) TakeText(id string) (string, bool) {
	el := d.ByID(id)
	if el.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(el.Text())
	el.Remove()
	return text, true
}

// FindMarker looks for a marker element inside a raw HTML body without
// attaching it to any document.
func FindMarker(body, id string) (Marker, bool) {
	if !strings.Contains(body, `id="`+id+`"`) && !strings.Contains(body, `id='`+id+`'`) {
		return Marker{}, false
	}
	frag, err := ParseString(body)
	if err != nil {
		return Marker{}, false
	}
	el := frag.ByID(id)
	if el.Length() == 0 {
		return Marker{}, false
	}
	return markerFrom(el), true
}

func markerFrom(el *goquery.Selection) Marker {
	msg, _ := el.Attr("data-message")
	typ, _ := el.Attr("data-type")
	return Marker{Message: msg, Type: typ}
}

// Board projects the first lane list of the document into a models.Board.
func (d *Document) Board() models.Board {
	var b models.Board
	lanes := d.Containers(models.KindLane)
	if len(lanes) == 0 {
		// Task-only pages still get one pseudo lane per task list.
		for _, tc := range d.Containers(models.KindTask) {
			b.Lanes = append(b.Lanes, models.Lane{
				Item:  models.Item{ID: tc.ID, Kind: models.KindLane},
				Tasks: tc.Items(),
			})
		}
		return b
	}
	lc := lanes[0]
	b.ProjectID = lc.ID
	lc.sel.ChildrenFiltered(laneItemClass).Each(func(_ int, s *goquery.Selection) {
		lane := models.Lane{Item: itemFrom(s, models.KindLane, lc.ID)}
		if tl := s.Find(taskListClass).First(); tl.Length() > 0 {
			tc := &Container{Kind: models.KindTask, ID: attr(tl, laneIDAttr), sel: tl}
			lane.Tasks = tc.Items()
		}
		b.Lanes = append(b.Lanes, lane)
	})
	return b
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return v
}
