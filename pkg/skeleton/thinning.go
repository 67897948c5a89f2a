package skeleton

import (
	"tubetrace/pkg/voxel"
)

// Thin reduces the foreground of a binary volume to a centerline one voxel
// wide and walks it into a graph. Foreground connectivity is 26, background
// 6. Each iteration peels one border layer per face direction: a subpass
// collects the voxels exposed toward that direction, then deletes those
// whose removal preserves local topology. Curve endpoints (voxels with
// exactly one foreground neighbor) always survive, and the six-way peel
// keeps the surviving curve centered in the tube. The voxel set left after
// convergence is decomposed into polyline edges between junctions and
// endpoints; isolated voxels are dropped; the NodeLayer marks the vertices.
func Thin(binary *voxel.Grid) *Graph {
	dims := binary.Dims
	fg := make([]bool, dims.N())
	for i, v := range binary.Data {
		fg[i] = v > 0
	}

	var border []int
	for changed := true; changed; {
		changed = false
		for _, dir := range voxel.N6 {
			border = border[:0]
			for z := 0; z < dims.Z; z++ {
				for y := 0; y < dims.Y; y++ {
					for x := 0; x < dims.X; x++ {
						id := dims.Index(x, y, z)
						if !fg[id] {
							continue
						}
						bx, by, bz := x+dir.X, y+dir.Y, z+dir.Z
						if dims.Inside(bx, by, bz) && fg[dims.Index(bx, by, bz)] {
							continue
						}
						border = append(border, id)
					}
				}
			}
			for _, id := range border {
				x, y, z := dims.Coords(id)
				m := localMask(fg, dims, x, y, z)
				if neighborCount(m) == 1 {
					continue
				}
				if foregroundParts(m) == 1 && backgroundParts(m) == 1 {
					fg[id] = false
					changed = true
				}
			}
		}
	}

	return walk(binary, fg)
}

// localMask snapshots the 3x3x3 foreground pattern around a voxel into a
// flat cube indexed k = (dz+1)*9 + (dy+1)*3 + (dx+1); cells outside the
// volume read as background. The center is cell 13.
func localMask(fg []bool, dims voxel.Dims, x, y, z int) (m [27]bool) {
	k := 0
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny, nz := x+dx, y+dy, z+dz
				if dims.Inside(nx, ny, nz) && fg[dims.Index(nx, ny, nz)] {
					m[k] = true
				}
				k++
			}
		}
	}
	return
}

// cell returns the cube offsets of flat index k, each in {-1,0,1}.
func cell(k int) (x, y, z int) {
	return k%3 - 1, k/3%3 - 1, k/9 - 1
}

// neighborCount returns the number of foreground cells around the center.
func neighborCount(m [27]bool) int {
	n := 0
	for k, v := range m {
		if v && k != 13 {
			n++
		}
	}
	return n
}

// foregroundParts counts the 26-connected components of the foreground
// cells around the center. Deleting the center keeps the local foreground
// connected exactly when this is 1.
func foregroundParts(m [27]bool) int {
	var visited [27]bool
	count := 0
	var stack []int
	for s := 0; s < 27; s++ {
		if s == 13 || !m[s] || visited[s] {
			continue
		}
		count++
		visited[s] = true
		stack = append(stack[:0], s)
		for len(stack) > 0 {
			k := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			kx, ky, kz := cell(k)
			for q := 0; q < 27; q++ {
				if q == 13 || !m[q] || visited[q] {
					continue
				}
				qx, qy, qz := cell(q)
				if abs(qx-kx) <= 1 && abs(qy-ky) <= 1 && abs(qz-kz) <= 1 {
					visited[q] = true
					stack = append(stack, q)
				}
			}
		}
	}
	return count
}

// backgroundParts counts the 6-connected components of the background cells
// in the 18-neighborhood that touch the center through a face. Deleting the
// center merges no background regions exactly when this is 1.
func backgroundParts(m [27]bool) int {
	var visited [27]bool
	count := 0
	var stack []int
	for s := 0; s < 27; s++ {
		sx, sy, sz := cell(s)
		if m[s] || visited[s] || abs(sx)+abs(sy)+abs(sz) != 1 {
			continue
		}
		count++
		visited[s] = true
		stack = append(stack[:0], s)
		for len(stack) > 0 {
			k := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			kx, ky, kz := cell(k)
			for q := 0; q < 27; q++ {
				qx, qy, qz := cell(q)
				if q == 13 || m[q] || visited[q] || abs(qx)+abs(qy)+abs(qz) > 2 {
					continue
				}
				if abs(qx-kx)+abs(qy-ky)+abs(qz-kz) == 1 {
					visited[q] = true
					stack = append(stack, q)
				}
			}
		}
	}
	return count
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// walk decomposes the thinned voxel set into a graph. Voxels with one or
// more than two remaining neighbors become vertices; chains of two-neighbor
// voxels between them become edges; closed chains with no vertex at all
// become loop edges anchored at their lowest-id voxel.
func walk(binary *voxel.Grid, fg []bool) *Graph {
	dims := binary.Dims
	n := dims.N()

	deg := make([]int8, n)
	for id := 0; id < n; id++ {
		if !fg[id] {
			continue
		}
		x, y, z := dims.Coords(id)
		for _, off := range voxel.N26 {
			nx, ny, nz := x+off.X, y+off.Y, z+off.Z
			if dims.Inside(nx, ny, nz) && fg[dims.Index(nx, ny, nz)] {
				deg[id]++
			}
		}
	}
	isVertex := func(id int) bool { return deg[id] != 2 }

	g := NewGraph()
	pointOf := make(map[int]int)
	vertexPoint := make(map[int]bool)
	ensure := func(id int) int {
		if idx, ok := pointOf[id]; ok {
			return idx
		}
		x, y, z := dims.Coords(id)
		idx := g.AddPoint(Point{X: float64(x), Y: float64(y), Z: float64(z)})
		pointOf[id] = idx
		if isVertex(id) {
			vertexPoint[idx] = true
		}
		return idx
	}

	neighborsOf := func(id int) []int {
		x, y, z := dims.Coords(id)
		var nbs []int
		for _, off := range voxel.N26 {
			nx, ny, nz := x+off.X, y+off.Y, z+off.Z
			if dims.Inside(nx, ny, nz) && fg[dims.Index(nx, ny, nz)] {
				nbs = append(nbs, dims.Index(nx, ny, nz))
			}
		}
		return nbs
	}

	visited := make([]bool, n)
	directSeen := make(map[[2]int]bool)
	emit := func(path []int) {
		idxs := make([]int, len(path))
		for i, id := range path {
			idxs[i] = ensure(id)
		}
		g.Edges = append(g.Edges, idxs)
	}

	// Chains anchored at a vertex.
	for id := 0; id < n; id++ {
		if !fg[id] || !isVertex(id) || deg[id] == 0 {
			continue
		}
		for _, nb := range neighborsOf(id) {
			if isVertex(nb) {
				pair := [2]int{id, nb}
				if nb < id {
					pair = [2]int{nb, id}
				}
				if directSeen[pair] {
					continue
				}
				directSeen[pair] = true
				emit([]int{id, nb})
				continue
			}
			if visited[nb] {
				continue
			}
			path := []int{id}
			prev, cur := id, nb
			for {
				path = append(path, cur)
				if isVertex(cur) {
					break
				}
				visited[cur] = true
				next := -1
				for _, c := range neighborsOf(cur) {
					if c != prev {
						next = c
						break
					}
				}
				if next < 0 {
					break
				}
				prev, cur = cur, next
			}
			emit(path)
		}
	}

	// Closed chains never reached from a vertex.
	for id := 0; id < n; id++ {
		if !fg[id] || deg[id] != 2 || visited[id] {
			continue
		}
		path := []int{id}
		visited[id] = true
		prev, cur := id, neighborsOf(id)[0]
		for cur != id {
			path = append(path, cur)
			visited[cur] = true
			next := -1
			for _, c := range neighborsOf(cur) {
				if c != prev {
					next = c
					break
				}
			}
			prev, cur = cur, next
		}
		path = append(path, id)
		emit(path)
	}

	nodes := g.Layer(NodeLayer)
	next := 0
	for i := range g.Points {
		if vertexPoint[i] {
			nodes[i] = float64(next)
			next++
		} else {
			nodes[i] = -1
		}
	}
	return g
}
