// Package layer holds the in-memory map project: an ordered collection of
// vector and raster layers addressed by typed handles.
package layer

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ID is the handle returned when a layer is added to a Project.
type ID int64

// Kind distinguishes vector from raster layers.
type Kind string

const (
	KindVector Kind = "vector"
	KindRaster Kind = "raster"
)

var (
	ErrLayerNotFound = errors.New("layer not found")
	ErrWrongKind     = errors.New("layer has the wrong kind")
)

// Meta is the part every layer shares.
type Meta struct {
	ID      ID
	Name    string
	CRS     string
	Source  string
	Visible bool
}

// Info returns the layer's metadata.
func (m *Meta) Info() *Meta { return m }

// Layer is a *Vector or a *Raster.
type Layer interface {
	Info() *Meta
	Kind() Kind
}

// Raster is an XYZ tile layer.
type Raster struct {
	Meta
	URL string // tile template with {z}/{x}/{y}
}

func (r *Raster) Kind() Kind { return KindRaster }

// Project is an ordered set of layers plus the current view extent.
// Layers are drawn bottom (first added) to top.
type Project struct {
	nextID ID
	layers map[ID]Layer
	order  []ID

	View    orb.Bound
	ViewCRS string
}

// NewProject returns an empty project.
func NewProject() *Project {
	return &Project{layers: make(map[ID]Layer)}
}

// Add registers l, assigns its handle and returns it.
func (p *Project) Add(l Layer) ID {
	p.nextID++
	id := p.nextID

	meta := l.Info()
	meta.ID = id
	meta.Visible = true

	p.layers[id] = l
	p.order = append(p.order, id)
	return id
}

// Get returns the layer behind id.
func (p *Project) Get(id ID) (Layer, error) {
	l, ok := p.layers[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrLayerNotFound, id)
	}
	return l, nil
}

// Vector returns the vector layer behind id.
func (p *Project) Vector(id ID) (*Vector, error) {
	l, err := p.Get(id)
	if err != nil {
		return nil, err
	}
	v, ok := l.(*Vector)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrWrongKind, l.Info().Name, l.Kind())
	}
	return v, nil
}

// Raster returns the raster layer behind id.
func (p *Project) Raster(id ID) (*Raster, error) {
	l, err := p.Get(id)
	if err != nil {
		return nil, err
	}
	r, ok := l.(*Raster)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrWrongKind, l.Info().Name, l.Kind())
	}
	return r, nil
}

// Remove drops the layer behind id.
func (p *Project) Remove(id ID) error {
	if _, ok := p.layers[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrLayerNotFound, id)
	}
	delete(p.layers, id)
	for i, oid := range p.order {
		if oid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// Layers returns the layers in drawing order.
func (p *Project) Layers() []Layer {
	out := make([]Layer, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.layers[id])
	}
	return out
}

// Len returns the number of layers.
func (p *Project) Len() int {
	return len(p.order)
}

// SetView sets the view extent.
func (p *Project) SetView(b orb.Bound, crs string) {
	p.View = b
	p.ViewCRS = crs
}

// SetVisible toggles a layer's visibility.
func (p *Project) SetVisible(id ID, visible bool) error {
	l, err := p.Get(id)
	if err != nil {
		return err
	}
	l.Info().Visible = visible
	return nil
}
