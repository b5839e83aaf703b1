package mask

import "image"

// Component is one 4-connected region of a binary mask.
type Component struct {
	// Count is the number of pixels in the component.
	Count int
	// Bounds encloses the component's pixels; Max is exclusive.
	Bounds image.Rectangle
	// Pixels holds the flat indices (y*width+x) in the source mask.
	Pixels []int

	width int
}

// Mask returns the component cropped to its bounds and padded by pad pixels
// on every side, together with the source coordinate of the crop's origin.
// Only this component's pixels are set; other regions sharing the bounds
// are left out.
func (c *Component) Mask(pad int) (*Binary, image.Point) {
	w := c.Bounds.Dx() + 2*pad
	h := c.Bounds.Dy() + 2*pad
	out := NewBinary(w, h)
	origin := c.Bounds.Min.Sub(image.Pt(pad, pad))
	for _, idx := range c.Pixels {
		x, y := idx%c.width, idx/c.width
		out.Pix[(y-origin.Y)*w+(x-origin.X)] = 1
	}
	return out, origin
}

// Components labels the 4-connected regions of b with a breadth-first
// flood fill. Components are returned in the row-major order of their first
// pixel.
func Components(b *Binary) []Component {
	w, h := b.Width, b.Height
	visited := make([]bool, w*h)
	queue := make([]int, 0, 64)
	var comps []Component

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			start := y*w + x
			if b.Pix[start] == 0 || visited[start] {
				continue
			}

			c := Component{Bounds: image.Rect(x, y, x+1, y+1), width: w}
			visited[start] = true
			queue = append(queue[:0], start)
			for len(queue) > 0 {
				ci := queue[0]
				queue = queue[1:]
				cx, cy := ci%w, ci/w
				c.Pixels = append(c.Pixels, ci)
				c.Bounds = c.Bounds.Union(image.Rect(cx, cy, cx+1, cy+1))

				for _, n := range [4][2]int{{cx + 1, cy}, {cx - 1, cy}, {cx, cy + 1}, {cx, cy - 1}} {
					nx, ny := n[0], n[1]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if b.Pix[ni] != 0 && !visited[ni] {
						visited[ni] = true
						queue = append(queue, ni)
					}
				}
			}
			c.Count = len(c.Pixels)
			comps = append(comps, c)
		}
	}
	return comps
}
