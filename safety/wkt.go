package safety

import (
	"strings"

	"github.com/fleetmaint/navigation/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// 解析WKT几何，支持POINT、LINESTRING、POLYGON（保留全部环）
// 格式错误或类型不支持时返回nil
func ParseWKT(s string) orb.Geometry {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		log.Warnf("drop malformed wkt %q: %v", s, err)
		return nil
	}
	switch v := g.(type) {
	case orb.Point:
		return v
	case orb.LineString:
		if len(v) == 0 {
			return nil
		}
		return v
	case orb.Polygon:
		if len(v) == 0 || len(v[0]) == 0 {
			return nil
		}
		return v
	default:
		log.Warnf("drop unsupported wkt geometry %s", g.GeoJSONType())
		return nil
	}
}

// 几何的锚点：点本身、折线或多边形外环的第一个坐标
func anchorOf(g orb.Geometry) (geo.GeoPoint, bool) {
	var p orb.Point
	switch v := g.(type) {
	case orb.Point:
		p = v
	case orb.LineString:
		p = v[0]
	case orb.Polygon:
		p = v[0][0]
	default:
		return geo.GeoPoint{}, false
	}
	gp := geo.FromOrb(p)
	return gp, gp.Valid()
}

// 解析记录坐标，无法得到有效坐标时ok为false
func resolve(d *SafetyDataPoint) (anchor geo.GeoPoint, shape orb.Geometry, ok bool) {
	if d.X != nil && d.Y != nil {
		anchor = geo.GeoPoint{Lat: *d.Y, Lng: *d.X}
		if anchor.Valid() {
			return anchor, anchor.Orb(), true
		}
	}
	if shape = ParseWKT(d.Geometry); shape == nil {
		return geo.GeoPoint{}, nil, false
	}
	anchor, ok = anchorOf(shape)
	return anchor, shape, ok
}
