// Package geo 球面上的距离与方位计算，所有下游距离都以这里的实现为准
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// 地球平均半径（单位：米）
	EarthRadius = 6_371_000.0

	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// 经纬度坐标（单位：度）
type GeoPoint struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", p.Lat, p.Lng)
}

// 经纬度是否在合法范围内
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// 转换为orb坐标（X=经度，Y=纬度）
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

func FromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lng: p.Lon()}
}

// Haversine球面距离（单位：米）
func Distance(a, b GeoPoint) float64 {
	lat1, lat2 := a.Lat*degToRad, b.Lat*degToRad
	dLat := lat2 - lat1
	dLng := b.Lng*degToRad - a.Lng*degToRad
	sLat, sLng := math.Sin(dLat/2), math.Sin(dLng/2)
	h := sLat*sLat + math.Cos(lat1)*math.Cos(lat2)*sLng*sLng
	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// 从a到b的初始方位角，正北为0，顺时针，范围[0,360)
func Bearing(a, b GeoPoint) float64 {
	lat1, lat2 := a.Lat*degToRad, b.Lat*degToRad
	dLng := (b.Lng - a.Lng) * degToRad
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	return math.Mod(math.Atan2(y, x)*radToDeg+360, 360)
}

// 折线长度，相邻点距离之和
func PolylineLength(line []GeoPoint) float64 {
	length := .0
	for i := 1; i < len(line); i++ {
		length += Distance(line[i-1], line[i])
	}
	return length
}

// 按比例在a、b间线性插值
func Interpolate(a, b GeoPoint, frac float64) GeoPoint {
	return GeoPoint{
		Lat: a.Lat + (b.Lat-a.Lat)*frac,
		Lng: a.Lng + (b.Lng-a.Lng)*frac,
	}
}

// 点到线段ab的最短距离（单位：米）
// 以p为原点做等距圆柱投影，道路尺度下误差可忽略
func DistanceToSegment(p, a, b GeoPoint) float64 {
	kx := math.Cos(p.Lat*degToRad) * EarthRadius * degToRad
	ky := EarthRadius * degToRad
	ax, ay := (a.Lng-p.Lng)*kx, (a.Lat-p.Lat)*ky
	bx, by := (b.Lng-p.Lng)*kx, (b.Lat-p.Lat)*ky
	dx, dy := bx-ax, by-ay
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return Distance(p, a)
	}
	t := -(ax*dx + ay*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return Distance(p, Interpolate(a, b, t))
}

// 点到折线的最短距离（单位：米），空折线返回+Inf
func DistanceToPolyline(p GeoPoint, line []GeoPoint) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return Distance(p, line[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(line); i++ {
		best = math.Min(best, DistanceToSegment(p, line[i-1], line[i]))
	}
	return best
}

// 沿折线按固定步长采样，始终包含首点与末点
func Sample(line []GeoPoint, stride float64) []GeoPoint {
	if len(line) == 0 {
		return nil
	}
	samples := []GeoPoint{line[0]}
	if stride <= 0 {
		return append(samples, line[1:]...)
	}
	// 距上一个采样点已经走过的距离
	walked := .0
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		segLen := Distance(a, b)
		offset := .0
		for walked+segLen-offset >= stride {
			offset += stride - walked
			samples = append(samples, Interpolate(a, b, offset/segLen))
			walked = 0
		}
		walked += segLen - offset
	}
	last := line[len(line)-1]
	if samples[len(samples)-1] != last {
		samples = append(samples, last)
	}
	return samples
}
