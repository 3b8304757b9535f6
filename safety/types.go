// Package safety 安全事件目录与路线安全评分
package safety

import (
	"time"

	"github.com/fleetmaint/navigation/geo"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "safety")

// 事故多发区域的大类编码
const CategoryAccidentProneArea = "ACCIDENT_PRONE_AREA"

// 安全事件默认有效期
const DefaultExpiration = 3 * 30 * 24 * time.Hour

// 数据源中的一条原始记录
// 坐标优先取X/Y（X为经度），缺失时解析Geometry中的WKT
type SafetyDataPoint struct {
	ID             string     `json:"id" bson:"id"`
	MajorCategory  string     `json:"majorCategory" bson:"major_category"`
	MiddleCategory string     `json:"middleCategory,omitempty" bson:"middle_category,omitempty"`
	MinorCategory  string     `json:"minorCategory,omitempty" bson:"minor_category,omitempty"`
	X              *float64   `json:"x,omitempty" bson:"x,omitempty"`
	Y              *float64   `json:"y,omitempty" bson:"y,omitempty"`
	Geometry       string     `json:"geometry,omitempty" bson:"geometry,omitempty"`
	Title          string     `json:"title,omitempty" bson:"title,omitempty"`
	Description    string     `json:"description,omitempty" bson:"description,omitempty"`
	Address        string     `json:"address,omitempty" bson:"address,omitempty"`
	AccidentCount  int        `json:"accidentCount,omitempty" bson:"accident_count,omitempty"`
	CasualtyCount  int        `json:"casualtyCount,omitempty" bson:"casualty_count,omitempty"`
	Severity       int        `json:"severity,omitempty" bson:"severity,omitempty"` // 1~3，0表示由事故数推算
	RegisteredAt   *time.Time `json:"registeredAt,omitempty" bson:"registered_at,omitempty"`
}

func (d *SafetyDataPoint) AccidentProne() bool {
	return d.MajorCategory == CategoryAccidentProneArea
}

// 由事故多发区域记录生成的时效性事件
type SafetyEvent struct {
	ID             string           `json:"id"`
	Source         *SafetyDataPoint `json:"sourceData"`
	Location       geo.GeoPoint     `json:"location"`
	Severity       int              `json:"severity"`
	CreatedAt      time.Time        `json:"createdAt"`
	ExpirationDate time.Time        `json:"expirationDate"`

	shape orb.Geometry
}

func (e *SafetyEvent) Expired(now time.Time) bool {
	return !e.ExpirationDate.After(now)
}

// 目录中保留的非事故多发区域记录，计为风险因素
type Hazard struct {
	Source   *SafetyDataPoint `json:"sourceData"`
	Location geo.GeoPoint     `json:"location"`

	shape orb.Geometry
}

// 路线附近的危险点
type DangerousPoint struct {
	Event    *SafetyEvent `json:"event"`
	Location geo.GeoPoint `json:"location"`
	Severity int          `json:"severity"`
	// 到路线的距离（单位：米）
	Distance float64 `json:"distance"`
}
