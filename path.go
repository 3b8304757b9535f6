package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fleetmaint/navigation/roadnet"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 文件路径或{db}.{col}
type Path struct {
	File string
	DB   string
	Coll string
}

func NewPath(filePathOrColl string) (*Path, error) {
	// 检查filePathOrColl是否作为文件存在
	if _, err := os.Stat(filePathOrColl); err == nil {
		return &Path{
			File: filePathOrColl,
		}, nil
	}
	dbDotColl := strings.TrimSpace(filePathOrColl)
	if dbDotColl == "" {
		return nil, nil
	}
	splitted := strings.Split(dbDotColl, ".")
	if len(splitted) != 2 || splitted[0] == "" || splitted[1] == "" {
		return nil, fmt.Errorf("dbDotColl is invalid: %s", dbDotColl)
	}
	return &Path{
		DB:   splitted[0],
		Coll: splitted[1],
	}, nil
}

func (p *Path) String() string {
	if p.File != "" {
		return p.File
	}
	return p.DB + "." + p.Coll
}

// 加载道路图，数据库路径需要mongoURI
func (p *Path) LoadGraph(ctx context.Context, mongoURI string) (*roadnet.Graph, error) {
	if p.File != "" {
		return roadnet.LoadFromFile(p.File)
	}
	if mongoURI == "" {
		return nil, fmt.Errorf("mongo uri is required to load %s", p)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	defer client.Disconnect(context.Background())
	return roadnet.LoadFromMongo(ctx, client.Database(p.DB).Collection(p.Coll))
}
