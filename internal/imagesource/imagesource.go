// Package imagesource implements the deterministic early-reflection stage
// of the hybrid simulator: the image-source method (ISM).
//
// The source is mirrored across wall planes up to a maximum reflection
// order. Expansion is an explicit breadth-first pass over a depth-indexed
// arena of image records rather than recursion, which bounds stack depth
// and lets each level be pruned by energy threshold before the next one is
// generated. Image counts grow combinatorially with order and wall count;
// callers are expected to keep the order small (0-10).
package imagesource

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/tphakala/go-room-acoustics/internal/geom"
	"github.com/tphakala/go-room-acoustics/internal/material"
)

// DefaultEnergyThreshold drops images whose best-band accumulated
// reflection attenuation can no longer contribute audible energy.
const DefaultEnergyThreshold = 1e-7

// Path is one visible propagation path from the source to the microphone,
// either direct (Order 0) or via a sequence of specular wall reflections.
// Paths are value types produced for a single simulation run and hold no
// references into the room.
type Path struct {
	// Image is the mirrored source position. The path length equals the
	// straight-line distance from Image to the microphone.
	Image r3.Vec

	// Order is the number of reflections along the path.
	Order int

	// Distance is the total path length in meters.
	Distance float64

	// Attenuation is the accumulated per-band amplitude factor: the
	// product of each reflecting wall's reflection coefficient
	// (1 - absorption), evaluated per frequency band.
	Attenuation [material.NumBands]float64

	// Walls lists the reflecting wall indices in reflection order.
	Walls []int
}

// node is one arena record in the breadth-first expansion.
type node struct {
	image  r3.Vec
	parent int // arena index of the previous reflection, -1 for the source
	wall   int // wall reflected across to create this image, -1 for the source
	atten  [material.NumBands]float64
}

// Generate computes all visible image-source paths between source and mic
// up to maxOrder reflections.
//
// materials must hold one entry per room wall, indexed like room.Walls.
// Images whose strongest band attenuation falls below threshold are pruned
// together with their entire subtree (attenuation only shrinks with
// depth). maxOrder 0 yields only the direct path. A threshold <= 0 uses
// DefaultEnergyThreshold.
//
// Visibility of the direct path is checked by occlusion against every wall
// face. Reflected paths are verified by backtracking the specular crossing
// point through the reflection sequence; for convex rooms this test is
// exact, for non-convex rooms it does not detect occlusion of reflected
// legs by unrelated walls and is therefore conservative (it may keep a
// path a stricter test would drop).
func Generate(room *geom.Room, materials []material.Material, source, mic r3.Vec, maxOrder int, threshold float64) []Path {
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}

	var unit [material.NumBands]float64
	for band := range unit {
		unit[band] = 1
	}

	arena := []node{{image: source, parent: -1, wall: -1, atten: unit}}

	var paths []Path
	paths = appendIfVisible(paths, arena, 0, room, mic)

	// levelStart/levelEnd delimit the previous order's records in the arena.
	levelStart, levelEnd := 0, 1

	for order := 1; order <= maxOrder; order++ {
		for parentIdx := levelStart; parentIdx < levelEnd; parentIdx++ {
			parent := arena[parentIdx]

			for wallIdx := range room.Walls {
				// Reflecting across the same plane twice in a row undoes
				// itself and only duplicates the parent image.
				if wallIdx == parent.wall {
					continue
				}

				wall := &room.Walls[wallIdx]
				image := wall.Reflect(parent.image)

				atten := parent.atten
				refl := materials[wallIdx].Reflection()
				maxBand := 0.0
				for band := range atten {
					atten[band] *= refl[band]
					if atten[band] > maxBand {
						maxBand = atten[band]
					}
				}

				// The subtree below a negligible image is negligible too.
				if maxBand < threshold {
					continue
				}

				arena = append(arena, node{
					image:  image,
					parent: parentIdx,
					wall:   wallIdx,
					atten:  atten,
				})
				paths = appendIfVisible(paths, arena, len(arena)-1, room, mic)
			}
		}

		levelStart, levelEnd = levelEnd, len(arena)
		if levelStart == levelEnd {
			break // every image on the previous level was pruned
		}
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i].Distance < paths[j].Distance })

	return paths
}

// appendIfVisible runs the visibility test for the arena record at idx and
// appends the resulting Path when the specular crossing sequence is valid.
func appendIfVisible(paths []Path, arena []node, idx int, room *geom.Room, mic r3.Vec) []Path {
	rec := arena[idx]

	walls, ok := visibleWallSequence(arena, idx, room, mic)
	if !ok {
		return paths
	}

	dist := r3.Norm(r3.Sub(mic, rec.image))
	if dist <= 0 {
		return paths
	}

	return append(paths, Path{
		Image:       rec.image,
		Order:       len(walls),
		Distance:    dist,
		Attenuation: rec.atten,
		Walls:       walls,
	})
}

// visibleWallSequence backtracks the path from the microphone through each
// reflecting wall. At every step the segment from the current image to the
// current target must cross the bounded face of the wall that created the
// image; the crossing point becomes the target for the next step. On
// success it returns the wall indices in reflection order.
func visibleWallSequence(arena []node, idx int, room *geom.Room, mic r3.Vec) ([]int, bool) {
	rec := arena[idx]
	if rec.wall < 0 {
		// Direct path: both endpoints are inside the room, so the sight
		// line can only be blocked in a non-convex room, where it crosses
		// a wall face on the way.
		for i := range room.Walls {
			if _, hit := room.Walls[i].IntersectSegment(rec.image, mic); hit {
				return nil, false
			}
		}
		return nil, true
	}

	target := mic
	reversed := make([]int, 0, 4)

	for cur := idx; arena[cur].wall >= 0; cur = arena[cur].parent {
		wall := &room.Walls[arena[cur].wall]

		hit, ok := wall.IntersectSegment(arena[cur].image, target)
		if !ok {
			return nil, false
		}

		reversed = append(reversed, arena[cur].wall)
		target = hit
	}

	// reversed holds the last reflection first; flip into travel order.
	walls := make([]int, len(reversed))
	for i, w := range reversed {
		walls[len(reversed)-1-i] = w
	}

	return walls, true
}

// MaxDistance returns the longest path distance, or 0 for an empty set.
func MaxDistance(paths []Path) float64 {
	var maxDist float64
	for i := range paths {
		if paths[i].Distance > maxDist {
			maxDist = paths[i].Distance
		}
	}
	return maxDist
}

// PeakAttenuation returns the strongest single-band attenuation in the
// set, useful for diagnostics and pruning decisions.
func PeakAttenuation(paths []Path) float64 {
	var peak float64
	for i := range paths {
		for _, a := range paths[i].Attenuation {
			peak = math.Max(peak, a)
		}
	}
	return peak
}
