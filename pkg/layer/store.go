package layer

import (
	"image"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/transform"
)

// Store holds layers ordered by z-index.
type Store struct {
	layers []*Layer // sorted by Z, Z == index
	byID   map[string]*Layer
	seq    uint64
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the default UUID generator. Generated IDs must be
// unique within the store.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		byID:  make(map[string]*Layer),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of layers.
func (s *Store) Len() int {
	return len(s.layers)
}

// Add copies pixels into a new visible layer at (0, 0), scale 1, on top of
// the stack, and returns its ID. Nil or zero-area buffers are rejected with
// INVALID_LAYER.
func (s *Store) Add(pixels *image.NRGBA, name string) (string, error) {
	return s.Insert(pixels, State{Name: name, Scale: DefaultScale, Visible: true, Z: len(s.layers)})
}

// Insert adds a layer with a previously saved state, as when loading a
// project. An empty state ID gets a generated one. The layer is placed on top;
// st.Z is ignored, use [Store.Restore] to apply saved ordering.
func (s *Store) Insert(pixels *image.NRGBA, st State) (string, error) {
	if pixels == nil || pixels.Bounds().Empty() {
		return "", errors.New(errors.ErrCodeInvalidLayer, "layer %q has no pixels", st.Name)
	}
	if err := errors.ValidateLayerName(st.Name); err != nil {
		return "", err
	}
	if err := transform.ValidateScale(st.Scale); err != nil {
		return "", err
	}
	if err := transform.ValidatePosition(st.Position); err != nil {
		return "", err
	}
	id := st.ID
	if id == "" {
		id = s.newID()
	}
	if _, exists := s.byID[id]; exists {
		return "", errors.New(errors.ErrCodeInvalidLayer, "duplicate layer id %q", id)
	}

	s.seq++
	l := &Layer{
		ID:       id,
		Name:     st.Name,
		Pixels:   clonePixels(pixels),
		Position: st.Position,
		Scale:    st.Scale,
		Z:        len(s.layers),
		Visible:  st.Visible,
		seq:      s.seq,
	}
	s.layers = append(s.layers, l)
	s.byID[id] = l
	return id, nil
}

// Remove deletes a layer and closes the gap in the z order.
func (s *Store) Remove(id string) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	s.layers = slices.Delete(s.layers, l.Z, l.Z+1)
	delete(s.byID, id)
	s.renumber()
	return nil
}

// Clear removes every layer.
func (s *Store) Clear() {
	s.layers = nil
	s.byID = make(map[string]*Layer)
}

// Get returns a view of one layer.
func (s *Store) Get(id string) (View, bool) {
	l, ok := s.byID[id]
	if !ok {
		return View{}, false
	}
	return l.view(), true
}

// Snapshot returns views of all layers in ascending z order.
func (s *Store) Snapshot() []View {
	out := make([]View, len(s.layers))
	for i, l := range s.layers {
		out[i] = l.view()
	}
	return out
}

// Visible returns views of the visible layers in ascending z order.
func (s *Store) Visible() []View {
	out := make([]View, 0, len(s.layers))
	for _, l := range s.layers {
		if l.Visible {
			out = append(out, l.view())
		}
	}
	return out
}

// States returns the pixel-free state of every layer in z order.
func (s *Store) States() []State {
	out := make([]State, len(s.layers))
	for i, l := range s.layers {
		out[i] = l.view().State()
	}
	return out
}

// Reorder moves a layer to z, clamped to the valid range. Other layers keep
// their relative order; z-indices stay dense.
func (s *Store) Reorder(id string, z int) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	z = max(0, min(z, len(s.layers)-1))
	if z == l.Z {
		return nil
	}
	s.layers = slices.Delete(s.layers, l.Z, l.Z+1)
	s.layers = slices.Insert(s.layers, z, l)
	s.renumber()
	return nil
}

// Swap exchanges the z-indices of two layers. No other layer moves.
func (s *Store) Swap(a, b string) error {
	la, err := s.lookup(a)
	if err != nil {
		return err
	}
	lb, err := s.lookup(b)
	if err != nil {
		return err
	}
	s.layers[la.Z], s.layers[lb.Z] = lb, la
	la.Z, lb.Z = lb.Z, la.Z
	return nil
}

// Raise moves a layer one step towards the front. The top layer stays put.
func (s *Store) Raise(id string) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.Reorder(id, l.Z+1)
}

// Lower moves a layer one step towards the back. The bottom layer stays put.
func (s *Store) Lower(id string) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.Reorder(id, l.Z-1)
}

// SetTransform updates position and/or scale; nil leaves a field unchanged.
// The position is snapped to the canvas grid. On error nothing changes.
func (s *Store) SetTransform(id string, position *transform.Vec, scale *float64) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	pos := l.Position
	if position != nil {
		if pos, err = transform.SnapPoint(*position); err != nil {
			return err
		}
	}
	sc := l.Scale
	if scale != nil {
		if err := transform.ValidateScale(*scale); err != nil {
			return err
		}
		sc = *scale
	}
	l.Position, l.Scale = pos, sc
	return nil
}

// Translate moves a layer by a canvas-space delta, as a drag does, and snaps
// the result.
func (s *Store) Translate(id string, delta transform.Vec) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	p := transform.FromPoint(l.Position).Add(delta)
	return s.SetTransform(id, &p, nil)
}

// ResetTransform puts a layer back at the origin with scale 1.
func (s *Store) ResetTransform(id string) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	l.Position, l.Scale = image.Point{}, DefaultScale
	return nil
}

// SetVisibility shows or hides a layer.
func (s *Store) SetVisibility(id string, visible bool) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	l.Visible = visible
	return nil
}

// Rename changes a layer's display name.
func (s *Store) Rename(id, name string) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := errors.ValidateLayerName(name); err != nil {
		return err
	}
	l.Name = name
	return nil
}

// Restore applies saved states to existing layers, matched by ID. Every state
// is validated before anything changes. Layers without a state keep their
// transform; afterwards the stack is sorted by the restored z-indices (ties
// by insertion order) and renumbered densely.
func (s *Store) Restore(states []State) error {
	seen := make(map[string]bool, len(states))
	for _, st := range states {
		if _, err := s.lookup(st.ID); err != nil {
			return err
		}
		if seen[st.ID] {
			return errors.New(errors.ErrCodeInvalidInput, "duplicate state for layer %q", st.ID)
		}
		seen[st.ID] = true
		if err := errors.ValidateLayerName(st.Name); err != nil {
			return err
		}
		if err := transform.ValidateScale(st.Scale); err != nil {
			return err
		}
		if err := transform.ValidatePosition(st.Position); err != nil {
			return err
		}
	}

	for _, st := range states {
		l := s.byID[st.ID]
		l.Name = st.Name
		l.Position = st.Position
		l.Scale = st.Scale
		l.Z = st.Z
		l.Visible = st.Visible
	}
	sort.SliceStable(s.layers, func(i, j int) bool {
		a, b := s.layers[i], s.layers[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.seq < b.seq
	})
	s.renumber()
	return nil
}

func (s *Store) lookup(id string) (*Layer, error) {
	l, ok := s.byID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeLayerNotFound, "layer %q not found", id)
	}
	return l, nil
}

func (s *Store) renumber() {
	for i, l := range s.layers {
		l.Z = i
	}
}
