package layer_test

import (
	"fmt"
	"image"

	"github.com/matzehuels/kitbash/pkg/layer"
	"github.com/matzehuels/kitbash/pkg/transform"
)

func ExampleStore_Reorder() {
	s := layer.NewStore()
	px := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	body, _ := s.Add(px, "body")
	_, _ = s.Add(px, "legs")
	_, _ = s.Add(px, "head")

	// Move the body to the top; the others keep their relative order.
	_ = s.Reorder(body, 2)
	for _, v := range s.Snapshot() {
		fmt.Println(v.Z, v.Name)
	}
	// Output:
	// 0 legs
	// 1 head
	// 2 body
}

func ExampleStore_SetTransform() {
	s := layer.NewStore()
	id, _ := s.Add(image.NewNRGBA(image.Rect(0, 0, 8, 8)), "hat")

	// Positions are snapped onto the pixel grid.
	pos := transform.Vec{X: 3.6, Y: -1.2}
	scale := 2.0
	_ = s.SetTransform(id, &pos, &scale)

	v, _ := s.Get(id)
	fmt.Println(v.Position, v.Scale)

	// Invalid scales are rejected and the prior state is kept.
	bad := -1.0
	fmt.Println(s.SetTransform(id, nil, &bad) != nil)
	v, _ = s.Get(id)
	fmt.Println(v.Scale)
	// Output:
	// (4,-1) 2
	// true
	// 2
}
