package vesselness

import (
	"math"

	"tubetrace/pkg/voxel"
)

// applyGlobalFloor zeroes every eigen triple whose Frobenius norm falls
// below the volume-wide floor, the square root of the largest recorded
// norm.
func applyGlobalFloor(eig []EigenTriple, frob []float64) {
	maxNorm := 0.0
	for _, f := range frob {
		if f > maxNorm {
			maxNorm = f
		}
	}
	floor := math.Sqrt(maxNorm)
	for id, f := range frob {
		if f < floor {
			eig[id] = EigenTriple{}
		}
	}
}

// applyBlockFloor is the block-adaptive variant: the XY extent is split
// into nblks x nblks blocks and the maximum norm per (block, z-plane)
// becomes a local floor. A voxel survives only when the mean norm of its
// six face neighbors reaches the floor of its own block and plane; boundary
// voxels have no full neighborhood and always fall below a positive floor.
func applyBlockFloor(eig []EigenTriple, frob []float64, dims voxel.Dims, nblks int) {
	if nblks < 1 {
		nblks = 1
	}

	floors := make([]float64, nblks*nblks*dims.Z)
	floorAt := func(x, y, z int) *float64 {
		bx := voxel.BlockIndex(nblks, x, dims.X)
		by := voxel.BlockIndex(nblks, y, dims.Y)
		return &floors[(bx*nblks+by)*dims.Z+z]
	}

	for id, f := range frob {
		x, y, z := dims.Coords(id)
		if slot := floorAt(x, y, z); f > *slot {
			*slot = f
		}
	}
	for i, f := range floors {
		floors[i] = math.Sqrt(f)
	}

	for id := range eig {
		x, y, z := dims.Coords(id)
		neigh := 0.0
		if dims.Interior(x, y, z) {
			for _, o := range voxel.N6 {
				neigh += frob[dims.Index(x+o.X, y+o.Y, z+o.Z)]
			}
			neigh /= 6.0
		}
		if neigh < *floorAt(x, y, z) {
			eig[id] = EigenTriple{}
		}
	}
}
