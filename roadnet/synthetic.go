package roadnet

import (
	"fmt"
	"math"

	"github.com/fleetmaint/navigation/geo"
)

// 网格节点id
func GridNodeID(row, col int) string {
	return fmt.Sprintf("n%d_%d", row, col)
}

// 连接(row,col)与(row,col+1)的横向路段id
func GridHorizontalID(row, col int) string {
	return fmt.Sprintf("h%d_%d", row, col)
}

// 连接(row,col)与(row+1,col)的纵向路段id
func GridVerticalID(row, col int) string {
	return fmt.Sprintf("v%d_%d", row, col)
}

// 生成rows×cols的规则网格路网，相邻节点间距为spacing米，origin为左下角
// 用于压测与本地调试
func Grid(rows, cols int, spacing float64, origin geo.GeoPoint) (*Graph, error) {
	latStep := spacing / (geo.EarthRadius * math.Pi / 180)
	lngStep := latStep / math.Cos(origin.Lat*math.Pi/180)
	nodes := make([]*Node, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			nodes = append(nodes, &Node{
				ID: GridNodeID(r, c),
				Position: geo.GeoPoint{
					Lat: origin.Lat + float64(r)*latStep,
					Lng: origin.Lng + float64(c)*lngStep,
				},
			})
		}
	}
	segments := make([]*RoadSegment, 0, 2*rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c+1 < cols {
				segments = append(segments, &RoadSegment{
					ID:          GridHorizontalID(r, c),
					StartNodeID: GridNodeID(r, c),
					EndNodeID:   GridNodeID(r, c+1),
					RoadType:    RoadTypeResidential,
					Metadata:    SegmentMetadata{Name: fmt.Sprintf("가로%d", r)},
				})
			}
			if r+1 < rows {
				segments = append(segments, &RoadSegment{
					ID:          GridVerticalID(r, c),
					StartNodeID: GridNodeID(r, c),
					EndNodeID:   GridNodeID(r+1, c),
					RoadType:    RoadTypeResidential,
					Metadata:    SegmentMetadata{Name: fmt.Sprintf("세로%d", c)},
				})
			}
		}
	}
	return New(nodes, segments)
}
