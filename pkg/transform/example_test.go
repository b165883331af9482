package transform_test

import (
	"fmt"

	"github.com/matzehuels/kitbash/pkg/transform"
)

func ExampleSnap() {
	fmt.Println(transform.Snap(3.4), transform.Snap(2.5), transform.Snap(-2.5))
	fmt.Println(transform.Snap(transform.Snap(7.6)))
	// Output:
	// 3 3 -3
	// 8
}

func ExampleExportSize() {
	// A 64×64 canvas exported at ×2.
	fmt.Println(transform.ExportSize(64, 64, 2))
	// Out-of-range export scales are clamped.
	fmt.Println(transform.ClampExportScale(600), transform.ClampExportScale(0.5))
	// Output:
	// (128,128)
	// 10 1
}

func ExampleSourceIndex() {
	// A 2-pixel span stretched over 3 pixels samples 0, 0, 1.
	for d := 0; d < 3; d++ {
		fmt.Print(transform.SourceIndex(d, 2, 3), " ")
	}
	fmt.Println()
	// Output:
	// 0 0 1
}

func ExampleView_CanvasToScreen() {
	v := transform.NewView(4)
	v.Pan = transform.Vec{X: 2, Y: 1}

	s := v.CanvasToScreen(transform.Vec{X: 10, Y: 5})
	fmt.Println(s)
	fmt.Println(v.ScreenToCanvas(s))
	// Output:
	// {32 16}
	// {10 5}
}
