package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.fiblab.net/general/common/v2/mongoutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mapDocument mongo中存放的地图数据，一个集合中取_id最大（最新）的文档
type mapDocument struct {
	Data      []byte    `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
}

// MapSource 读取原始地图数据（osm xml或pbf）
type MapSource struct {
	path     *Path
	mongoURI string
	cacheDir string
}

func NewMapSource(path *Path, mongoURI string, cacheDir string) *MapSource {
	return &MapSource{path: path, mongoURI: mongoURI, cacheDir: cacheDir}
}

func (s *MapSource) Path() *Path {
	return s.path
}

func cacheFile(cacheDir string, p *Path) string {
	return filepath.Join(cacheDir, p.GetCachePath())
}

// Load 文件直接读取；mongo来源优先读缓存，下载后写入缓存
func (s *MapSource) Load(ctx context.Context) ([]byte, error) {
	if s.path == nil {
		return nil, errors.New("no map source")
	}
	if s.path.IsFile() {
		log.Infof("Loading map from file %s", s.path.File)
		return os.ReadFile(s.path.File)
	}
	if s.cacheDir != "" {
		if data, err := os.ReadFile(cacheFile(s.cacheDir, s.path)); err == nil {
			log.Infof("Loading map %s from cache %s", s.path, s.cacheDir)
			return data, nil
		}
	}
	data, err := s.download(ctx)
	if err != nil {
		return nil, err
	}
	if s.cacheDir != "" {
		if err := s.writeCache(data); err != nil {
			// 缓存失败不影响服务
			log.Warnf("failed to cache map %s: %v", s.path, err)
		}
	}
	return data, nil
}

func (s *MapSource) writeCache(data []byte) error {
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(cacheFile(s.cacheDir, s.path), data, 0o644)
}

func (s *MapSource) collection() (*mongo.Client, *mongo.Collection) {
	client := mongoutil.NewClient(s.mongoURI)
	return client, client.Database(s.path.DB).Collection(s.path.Coll)
}

func (s *MapSource) download(ctx context.Context) ([]byte, error) {
	log.Infof("Downloading map from mongo %s", s.path)
	client, coll := s.collection()
	defer client.Disconnect(context.Background())

	var doc mapDocument
	err := coll.FindOne(ctx, bson.D{}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("no map document in %s", s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download map from %s: %w", s.path, err)
	}
	return doc.Data, nil
}

// Upload 将本地地图文件写入mongo集合，之后的Load会读到这一份
func (s *MapSource) Upload(ctx context.Context, data []byte) error {
	if s.path == nil || s.path.IsFile() {
		return errors.New("upload target must be {db}.{col}")
	}
	client, coll := s.collection()
	defer client.Disconnect(context.Background())
	if _, err := coll.InsertOne(ctx, mapDocument{Data: data, CreatedAt: time.Now()}); err != nil {
		return fmt.Errorf("failed to upload map to %s: %w", s.path, err)
	}
	log.Infof("Uploaded %d bytes to %s", len(data), s.path)
	return nil
}
