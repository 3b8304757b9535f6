package roadnet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// 地图数据的文件格式
type Dataset struct {
	Nodes    []*Node        `json:"nodes" bson:"nodes"`
	Segments []*RoadSegment `json:"segments" bson:"segments"`
}

// 从JSON文件加载道路图
func LoadFromFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read road graph file %s: %w", path, err)
	}
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decode road graph file %s: %w", path, err)
	}
	log.Infof("loaded %d nodes and %d segments from %s", len(ds.Nodes), len(ds.Segments), path)
	return New(ds.Nodes, ds.Segments)
}

// 地图集合中的文档：{class: "node"|"segment", data: {...}}
type nodeDoc struct {
	Data *Node `bson:"data"`
}

type segmentDoc struct {
	Data *RoadSegment `bson:"data"`
}

// 从MongoDB集合加载道路图
func LoadFromMongo(ctx context.Context, coll *mongo.Collection) (*Graph, error) {
	var nodeDocs []nodeDoc
	cur, err := coll.Find(ctx, bson.M{"class": "node"})
	if err != nil {
		return nil, fmt.Errorf("find nodes in %s: %w", coll.Name(), err)
	}
	if err := cur.All(ctx, &nodeDocs); err != nil {
		return nil, fmt.Errorf("decode nodes in %s: %w", coll.Name(), err)
	}
	var segmentDocs []segmentDoc
	cur, err = coll.Find(ctx, bson.M{"class": "segment"})
	if err != nil {
		return nil, fmt.Errorf("find segments in %s: %w", coll.Name(), err)
	}
	if err := cur.All(ctx, &segmentDocs); err != nil {
		return nil, fmt.Errorf("decode segments in %s: %w", coll.Name(), err)
	}
	ds := Dataset{
		Nodes:    make([]*Node, 0, len(nodeDocs)),
		Segments: make([]*RoadSegment, 0, len(segmentDocs)),
	}
	for _, d := range nodeDocs {
		if d.Data != nil {
			ds.Nodes = append(ds.Nodes, d.Data)
		}
	}
	for _, d := range segmentDocs {
		if d.Data != nil {
			ds.Segments = append(ds.Segments, d.Data)
		}
	}
	log.Infof("loaded %d nodes and %d segments from %s", len(ds.Nodes), len(ds.Segments), coll.Name())
	return New(ds.Nodes, ds.Segments)
}
