package voxel

// Offset is a relative voxel displacement.
type Offset struct {
	X int
	Y int
	Z int
}

// N26 lists the 26-connected neighborhood offsets. The ordering matters:
// the first six entries are exactly the 6-connected face neighbors, so
// N26[:6] serves face-connectivity scans.
var N26 = [26]Offset{
	{0, 0, -1}, {-1, 0, 0}, {0, -1, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1},
	{-1, 0, -1}, {0, -1, -1}, {1, 0, -1}, {0, 1, -1},
	{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0},
	{-1, 0, 1}, {0, -1, 1}, {1, 0, 1}, {0, 1, 1},
	{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
}

// N6 is the face-connected neighborhood.
var N6 = N26[:6]

// Neighborhood selects between face and full connectivity.
type Neighborhood int

const (
	// Conn6 visits the six face neighbors.
	Conn6 Neighborhood = 6
	// Conn26 visits all twenty-six neighbors.
	Conn26 Neighborhood = 26
)

// Offsets returns the offset table for the connectivity.
func (n Neighborhood) Offsets() []Offset {
	if n == Conn6 {
		return N6
	}
	return N26[:]
}
