// Package display models the display surfaces the player renders into.
// A Surface is an opaque handle in a tree under a root canvas: it carries
// geometry, stacking and opacity but produces no pixels itself — whatever
// compositor the platform provides draws from this tree.
package display

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Rect is a rectangle in canvas units.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Surface is one node of the display tree. The component that created a
// surface owns it; everyone else only borrows the handle.
type Surface struct {
	mu sync.Mutex

	id       string
	parent   *Surface
	children []*Surface

	visible  bool
	opacity  float64
	zIndex   int
	rotation float64

	scaleX, scaleY   float64
	offsetX, offsetY float64
	clip             *Rect

	// content is whatever the attached widget last rendered; opaque to
	// the player.
	content interface{}
}

// NewSurface creates a detached surface.
func NewSurface() *Surface {
	return &Surface{
		id:      uuid.NewString(),
		visible: true,
		opacity: 1,
		scaleX:  1,
		scaleY:  1,
	}
}

// ID returns the surface identity.
func (s *Surface) ID() string { return s.id }

// Attach adds child on top of the existing children. Attaching a surface
// that already has a parent moves it.
func (s *Surface) Attach(child *Surface) {
	if child == nil || child == s {
		return
	}
	child.Detach()

	s.mu.Lock()
	s.children = append(s.children, child)
	s.mu.Unlock()

	child.mu.Lock()
	child.parent = s
	child.mu.Unlock()
}

// Detach removes the surface from its parent, if any.
func (s *Surface) Detach() {
	s.mu.Lock()
	parent := s.parent
	s.parent = nil
	s.mu.Unlock()

	if parent == nil {
		return
	}

	parent.mu.Lock()
	for i, c := range parent.children {
		if c == s {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	parent.mu.Unlock()
}

// Release detaches the surface and drops all its children.
func (s *Surface) Release() {
	s.Detach()
	s.mu.Lock()
	children := s.children
	s.children = nil
	s.content = nil
	s.mu.Unlock()
	for _, c := range children {
		c.mu.Lock()
		c.parent = nil
		c.mu.Unlock()
		c.Release()
	}
}

// Parent returns the current parent, or nil when detached.
func (s *Surface) Parent() *Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parent
}

// Children returns the children sorted by stacking order, bottom first.
func (s *Surface) Children() []*Surface {
	s.mu.Lock()
	out := make([]*Surface, len(s.children))
	copy(out, s.children)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex() < out[j].ZIndex() })
	return out
}

// SetVisible shows or hides the surface.
func (s *Surface) SetVisible(v bool) {
	s.mu.Lock()
	s.visible = v
	s.mu.Unlock()
}

// Visible reports whether the surface is shown.
func (s *Surface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// SetOpacity sets the opacity, clamped to [0,1].
func (s *Surface) SetOpacity(o float64) {
	if o < 0 {
		o = 0
	} else if o > 1 {
		o = 1
	}
	s.mu.Lock()
	s.opacity = o
	s.mu.Unlock()
}

// Opacity returns the current opacity.
func (s *Surface) Opacity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opacity
}

// SetZIndex sets the stacking order relative to siblings.
func (s *Surface) SetZIndex(z int) {
	s.mu.Lock()
	s.zIndex = z
	s.mu.Unlock()
}

// ZIndex returns the stacking order.
func (s *Surface) ZIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zIndex
}

// SetRotation sets the rotation in degrees.
func (s *Surface) SetRotation(deg float64) {
	s.mu.Lock()
	s.rotation = deg
	s.mu.Unlock()
}

// Rotation returns the rotation in degrees.
func (s *Surface) Rotation() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

// SetScale sets the horizontal and vertical scale factors.
func (s *Surface) SetScale(sx, sy float64) {
	s.mu.Lock()
	s.scaleX, s.scaleY = sx, sy
	s.mu.Unlock()
}

// Scale returns the scale factors.
func (s *Surface) Scale() (sx, sy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scaleX, s.scaleY
}

// SetOffset positions the surface relative to its parent.
func (s *Surface) SetOffset(x, y float64) {
	s.mu.Lock()
	s.offsetX, s.offsetY = x, y
	s.mu.Unlock()
}

// Offset returns the position relative to the parent.
func (s *Surface) Offset() (x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsetX, s.offsetY
}

// SetClip limits the visible region of the surface.
func (s *Surface) SetClip(r Rect) {
	s.mu.Lock()
	clip := r
	s.clip = &clip
	s.mu.Unlock()
}

// ClearClip removes the clip region.
func (s *Surface) ClearClip() {
	s.mu.Lock()
	s.clip = nil
	s.mu.Unlock()
}

// Clip returns the clip region, or nil when unclipped.
func (s *Surface) Clip() *Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return nil
	}
	clip := *s.clip
	return &clip
}

// SetContent records what the attached widget currently renders.
func (s *Surface) SetContent(v interface{}) {
	s.mu.Lock()
	s.content = v
	s.mu.Unlock()
}

// Content returns the widget's last rendered content.
func (s *Surface) Content() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}
