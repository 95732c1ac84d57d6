package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/BaSui01/intelflow/types"
)

// =============================================================================
// 🍃 MongoDB 报告文档库
// =============================================================================

// Config MongoDB 文档库配置
type Config struct {
	// 连接 URI
	URI string `yaml:"uri" json:"uri"`

	// 数据库名
	Database string `yaml:"database" json:"database"`

	// 集合名
	Collection string `yaml:"collection" json:"collection"`

	// 单次操作超时
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig 返回默认文档库配置
func DefaultConfig() Config {
	return Config{
		Database:   "intelflow",
		Collection: "reports",
		Timeout:    10 * time.Second,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.Collection == "" {
		c.Collection = def.Collection
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// MongoStore 基于 MongoDB 的报告文档库
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
	logger  *zap.Logger
}

var _ Store = (*MongoStore)(nil)

// reportDoc 报告在集合中的持久化形态。
// Response 以输出契约的 JSON 键名展开存储，下游可以直接按字段查询。
type reportDoc struct {
	RunID          string    `bson:"_id"`
	Organization   string    `bson:"organization"`
	Question       string    `bson:"question"`
	Status         string    `bson:"status"`
	ReadinessScore *int      `bson:"readiness_score,omitempty"`
	Response       bson.M    `bson:"response"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// NewMongoStore 连接 MongoDB 并准备索引。
// 连接不可达时返回错误；调用方据此决定回退到内存实现还是直接失败。
func NewMongoStore(cfg Config, logger *zap.Logger) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.normalized()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	s := &MongoStore{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
		logger:  logger.With(zap.String("component", "docstore")),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s.logger.Info("report docstore initialized",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))

	return s, nil
}

// ensureIndexes 建立列表查询所需的索引
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "organization", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create docstore indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Save 以运行 ID 为键 upsert 报告文档
func (s *MongoStore) Save(ctx context.Context, report *Report) error {
	if err := report.Validate(); err != nil {
		return err
	}

	doc, err := encodeReport(report)
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err = s.coll.ReplaceOne(ctx,
		bson.M{"_id": report.RunID},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.RunID, err)
	}
	return nil
}

// Get 按运行 ID 读取报告
func (s *MongoStore) Get(ctx context.Context, runID string) (*Report, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc reportDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": runID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report %s: %w", runID, err)
	}

	return decodeReport(&doc)
}

// List 按组织名筛选并按创建时间倒序返回报告
func (s *MongoStore) List(ctx context.Context, organization string, limit int64) ([]*Report, error) {
	filter := bson.M{}
	if organization != "" {
		filter["organization"] = organization
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cursor, err := s.coll.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(clampListLimit(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reportDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}

	reports := make([]*Report, 0, len(docs))
	for i := range docs {
		report, err := decodeReport(&docs[i])
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Delete 按运行 ID 删除报告
func (s *MongoStore) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": runID})
	if err != nil {
		return fmt.Errorf("failed to delete report %s: %w", runID, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping 健康检查
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

// Close 断开客户端连接
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// =============================================================================
// 🔄 文档编解码
// =============================================================================

// encodeReport 把报告转成持久化文档；响应契约经 JSON 展开，
// 文档字段名与输出契约的 JSON 键名一致。
func encodeReport(report *Report) (*reportDoc, error) {
	data, err := json.Marshal(report.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	var respDoc bson.M
	if err := json.Unmarshal(data, &respDoc); err != nil {
		return nil, fmt.Errorf("failed to convert response: %w", err)
	}

	updatedAt := report.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	return &reportDoc{
		RunID:          report.RunID,
		Organization:   report.Organization,
		Question:       report.Question,
		Status:         string(report.Status),
		ReadinessScore: report.ReadinessScore,
		Response:       respDoc,
		CreatedAt:      report.CreatedAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// decodeReport 从持久化文档还原报告
func decodeReport(doc *reportDoc) (*Report, error) {
	data, err := json.Marshal(doc.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stored response: %w", err)
	}
	var resp types.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode stored response: %w", err)
	}

	return &Report{
		RunID:          doc.RunID,
		Organization:   doc.Organization,
		Question:       doc.Question,
		Status:         types.RunStatus(doc.Status),
		ReadinessScore: doc.ReadinessScore,
		Response:       &resp,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}
