package model

import "image"

// LandmarkCount is the number of joints in a full body pose.
const LandmarkCount = 33

// SkeletonConnections lists the joint pairs drawn as bones.
var SkeletonConnections = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 7}, {0, 4}, {4, 5}, {5, 6}, {6, 8}, {9, 10},
	{11, 12}, {11, 13}, {13, 15}, {15, 17}, {15, 19}, {15, 21}, {17, 19}, {19, 21},
	{12, 14}, {14, 16}, {16, 18}, {16, 20}, {16, 22}, {18, 20}, {20, 22},
	{11, 23}, {12, 24}, {23, 24},
	{23, 25}, {25, 27}, {27, 29}, {29, 31},
	{24, 26}, {26, 28}, {28, 30}, {30, 32},
}

// Point maps a landmark onto a width x height image.
func (l Landmark) Point(width, height int) image.Point {
	return image.Pt(int(l.X*float32(width)), int(l.Y*float32(height)))
}

// Bones returns the skeleton segments of p in pixel coordinates. A bone is
// left out when either end is missing or less visible than minVisibility.
func (p PoseDetection) Bones(width, height int, minVisibility float32) [][2]image.Point {
	var out [][2]image.Point
	for _, c := range SkeletonConnections {
		if c[0] >= len(p.Landmarks) || c[1] >= len(p.Landmarks) {
			continue
		}
		a, b := p.Landmarks[c[0]], p.Landmarks[c[1]]
		if a.Availability.Visibility < minVisibility || b.Availability.Visibility < minVisibility {
			continue
		}
		out = append(out, [2]image.Point{a.Point(width, height), b.Point(width, height)})
	}
	return out
}
