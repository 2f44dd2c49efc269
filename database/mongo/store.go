// Package mongo MongoDB 元数据 + GridFS 二进制存储
package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/database/models"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	// CollectionName 元数据集合
	CollectionName = "image_metadata"
	// BucketName GridFS bucket
	BucketName = "fs"
)

// imageDocument 元数据文档
type imageDocument struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Query       string        `bson:"query"`
	Filename    string        `bson:"filename"`
	GridFSID    bson.ObjectID `bson:"gridfs_id"`
	URL         string        `bson:"url"`
	Checksum    string        `bson:"checksum"`
	ContentType string        `bson:"content_type,omitempty"`
	FileSize    int64         `bson:"file_size"`
	CreatedAt   time.Time     `bson:"created_at"`
}

func (d *imageDocument) toModel() *models.Image {
	return &models.Image{
		Query:         d.Query,
		Filename:      d.Filename,
		StorageHandle: d.GridFSID.Hex(),
		URL:           d.URL,
		Checksum:      d.Checksum,
		ContentType:   d.ContentType,
		FileSize:      d.FileSize,
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

// Store database.ImageStore 的 MongoDB 实现
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	bucket *mongo.GridFSBucket
	now    func() time.Time
}

var _ database.ImageStore = (*Store)(nil)

// Open 连接 MongoDB 并确保索引存在
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client: client,
		coll:   db.Collection(CollectionName),
		bucket: db.GridFSBucket(options.GridFSBucket().SetName(BucketName)),
		now:    time.Now,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info().Str("database", dbName).Msg("Connected to MongoDB")
	return s, nil
}

// ErrLegacyDuplicates 旧集合中存在重复 checksum，无法建立唯一索引
var ErrLegacyDuplicates = errors.New("image_metadata contains duplicate checksums")

const checksumIndexName = "uniq_checksum"

// indexAction 对 checksum 索引的处理方式
type indexAction int

const (
	indexCreate  indexAction = iota // 不存在，直接创建
	indexKeep                       // 已有唯一索引
	indexReplace                    // 已有非唯一索引（旧版本创建的 checksum_1），需要替换
)

// planChecksumIndex 根据现有索引决定如何建立 checksum 唯一索引
// 返回值 name 为需要替换的旧索引名
func planChecksumIndex(specs []mongo.IndexSpecification) (action indexAction, name string) {
	for _, spec := range specs {
		if !isChecksumKey(spec.KeysDocument) {
			continue
		}
		if spec.Unique != nil && *spec.Unique {
			return indexKeep, spec.Name
		}
		return indexReplace, spec.Name
	}
	return indexCreate, ""
}

// isChecksumKey 判断索引键是否恰好为 {checksum: 1}
func isChecksumKey(keys bson.Raw) bool {
	elems, err := keys.Elements()
	if err != nil || len(elems) != 1 {
		return false
	}
	if elems[0].Key() != "checksum" {
		return false
	}
	dir, ok := elems[0].Value().AsInt64OK()
	return ok && dir == 1
}

// ensureIndexes checksum 唯一索引与 (query, created_at) 复合索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	if err := s.ensureChecksumIndex(ctx); err != nil {
		return err
	}

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "query", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("query_created_at"),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// ensureChecksumIndex 建立 checksum 唯一索引，旧的非唯一索引在确认无重复数据后替换
func (s *Store) ensureChecksumIndex(ctx context.Context) error {
	specs, err := s.coll.Indexes().ListSpecifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}

	action, name := planChecksumIndex(specs)
	switch action {
	case indexKeep:
		return nil
	case indexReplace:
		dup, err := s.firstDuplicateChecksum(ctx)
		if err != nil {
			return err
		}
		if dup != "" {
			return fmt.Errorf("%w (e.g. %s): remove duplicate documents, then restart", ErrLegacyDuplicates, dup)
		}
		log.Warn().Str("index", name).Msg("Replacing non-unique checksum index with a unique one")
		if err := s.coll.Indexes().DropOne(ctx, name); err != nil {
			return fmt.Errorf("failed to drop index %s: %w", name, err)
		}
	}

	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "checksum", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(checksumIndexName),
	})
	if err != nil {
		return fmt.Errorf("failed to create checksum index: %w", err)
	}
	return nil
}

// firstDuplicateChecksum 返回任意一个出现多次的 checksum，没有时返回空串
func (s *Store) firstDuplicateChecksum(ctx context.Context) (string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$checksum"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$match", Value: bson.D{{Key: "n", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
		{{Key: "$limit", Value: 1}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return "", fmt.Errorf("failed to scan for duplicate checksums: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var row struct {
		Checksum string `bson:"_id"`
	}
	if !cursor.Next(ctx) {
		return "", cursor.Err()
	}
	if err := cursor.Decode(&row); err != nil {
		return "", fmt.Errorf("failed to decode duplicate checksum: %w", err)
	}
	return row.Checksum, nil
}

// Count 统计查询词下的记录数
func (s *Store) Count(ctx context.Context, query string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "query", Value: query}})
	if err != nil {
		return 0, fmt.Errorf("failed to count images for %q: %w", query, err)
	}
	return n, nil
}

// ListRecent 按 created_at 倒序列出记录，同一时间戳按 _id 倒序
func (s *Store) ListRecent(ctx context.Context, query string, limit int) ([]*models.Image, error) {
	if limit <= 0 {
		return []*models.Image{}, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, bson.D{{Key: "query", Value: query}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list images for %q: %w", query, err)
	}

	var docs []imageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode images for %q: %w", query, err)
	}

	out := make([]*models.Image, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

// Exists 检查 checksum 是否已存在
func (s *Store) Exists(ctx context.Context, checksum string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "checksum", Value: checksum}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check checksum: %w", err)
	}
	return n > 0, nil
}

// FindByChecksum 通过 checksum 获取记录
func (s *Store) FindByChecksum(ctx context.Context, checksum string) (*models.Image, error) {
	var doc imageDocument
	err := s.coll.FindOne(ctx, bson.D{{Key: "checksum", Value: checksum}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find image by checksum: %w", err)
	}
	return doc.toModel(), nil
}

// Save 先上传 GridFS 文件再插入元数据
// 唯一索引冲突时删除刚上传的文件并返回 database.ErrDuplicate
func (s *Store) Save(ctx context.Context, rec *models.Image, data []byte) error {
	fileID, err := s.bucket.UploadFromStream(ctx, rec.Filename, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to upload to gridfs: %w", err)
	}

	doc := imageDocument{
		Query:       rec.Query,
		Filename:    rec.Filename,
		GridFSID:    fileID,
		URL:         rec.URL,
		Checksum:    rec.Checksum,
		ContentType: rec.ContentType,
		FileSize:    int64(len(data)),
		// BSON 日期精度为毫秒
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		s.discardFile(fileID)
		if mongo.IsDuplicateKeyError(err) {
			return database.ErrDuplicate
		}
		return fmt.Errorf("failed to insert image metadata: %w", err)
	}

	rec.StorageHandle = fileID.Hex()
	rec.FileSize = doc.FileSize
	rec.CreatedAt = doc.CreatedAt
	return nil
}

// discardFile 删除未被引用的 GridFS 文件，失败只记录日志
func (s *Store) discardFile(id bson.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.bucket.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Str("gridfs_id", id.Hex()).Msg("Failed to remove unreferenced GridFS file")
	}
}

// OpenBlob 打开 GridFS 文件
func (s *Store) OpenBlob(ctx context.Context, rec *models.Image) (io.ReadCloser, error) {
	id, err := bson.ObjectIDFromHex(rec.StorageHandle)
	if err != nil {
		return nil, fmt.Errorf("invalid gridfs id %q: %w", rec.StorageHandle, err)
	}

	stream, err := s.bucket.OpenDownloadStream(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: gridfs file %s", database.ErrNotFound, rec.StorageHandle)
		}
		return nil, fmt.Errorf("failed to open gridfs file: %w", err)
	}
	return stream, nil
}

// Ping 检查连接
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close 断开连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("Closing MongoDB connection...")
	return s.client.Disconnect(ctx)
}

// Name 返回存储名称
func (s *Store) Name() string {
	return "mongodb+gridfs"
}
