package skeleton

// Fragments bridges loose ends of a broken centerline network. Every pair
// of endpoints closer than maxGap, but farther than a tenth of a unit so
// coincident tips are left alone, is joined by a straight two-point edge.
// The input graph is not modified.
func Fragments(g *Graph, maxGap float64) *Graph {
	out := g.Clone()
	tips := out.Endpoints()
	for i := 0; i < len(tips); i++ {
		for j := i + 1; j < len(tips); j++ {
			d := out.Points[tips[i]].Dist(out.Points[tips[j]])
			if d > 0.1 && d <= maxGap {
				out.Edges = append(out.Edges, []int{tips[i], tips[j]})
			}
		}
	}
	return out
}
