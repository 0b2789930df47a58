package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ishankgp/indegenge-persona-sub003/internal/core/model"
)

// SQLiteStore persists the graph in two tables via gorm. The composite
// index on (brand_id, node_type) serves the dedup similarity scan; the
// endpoint indexes serve cascades and traversal.
type SQLiteStore struct {
	db *gorm.DB
}

type nodeRecord struct {
	ID           string `gorm:"primaryKey"`
	BrandID      string `gorm:"index:idx_nodes_brand_type"`
	NodeType     string `gorm:"index:idx_nodes_brand_type"`
	Text         string
	Summary      string
	Segment      string
	JourneyStage string
	Sources      datatypes.JSON
	Confidence   float64
	Verified     bool
	Embedding    datatypes.JSON
	CreatedAt    int64 `gorm:"index"` // unix nanos, preserves creation order
}

func (nodeRecord) TableName() string { return "nodes" }

type relationRecord struct {
	ID           string `gorm:"primaryKey"`
	BrandID      string `gorm:"index"`
	FromNodeID   string `gorm:"index"`
	ToNodeID     string `gorm:"index"`
	RelationType string
	Strength     float64
	Context      string
	InferredBy   string
	CreatedAt    int64
}

func (relationRecord) TableName() string { return "relations" }

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store at %s: %w", path, err)
	}
	if err := db.AutoMigrate(&nodeRecord{}, &relationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate graph schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func toNodeRecord(n *model.KnowledgeNode) (*nodeRecord, error) {
	sources, err := json.Marshal(n.Sources)
	if err != nil {
		return nil, err
	}
	embedding, err := json.Marshal(n.Embedding)
	if err != nil {
		return nil, err
	}
	return &nodeRecord{
		ID:           n.ID,
		BrandID:      n.BrandID,
		NodeType:     string(n.Type),
		Text:         n.Text,
		Summary:      n.Summary,
		Segment:      n.Segment,
		JourneyStage: n.JourneyStage,
		Sources:      sources,
		Confidence:   n.Confidence,
		Verified:     n.Verified,
		Embedding:    embedding,
		CreatedAt:    n.CreatedAt.UnixNano(),
	}, nil
}

func (rec *nodeRecord) toModel() (*model.KnowledgeNode, error) {
	n := &model.KnowledgeNode{
		ID:           rec.ID,
		BrandID:      rec.BrandID,
		Type:         model.NodeType(rec.NodeType),
		Text:         rec.Text,
		Summary:      rec.Summary,
		Segment:      rec.Segment,
		JourneyStage: rec.JourneyStage,
		Confidence:   rec.Confidence,
		Verified:     rec.Verified,
		CreatedAt:    unixNanoTime(rec.CreatedAt),
	}
	if len(rec.Sources) > 0 {
		if err := json.Unmarshal(rec.Sources, &n.Sources); err != nil {
			return nil, err
		}
	}
	if len(rec.Embedding) > 0 {
		if err := json.Unmarshal(rec.Embedding, &n.Embedding); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func toRelationRecord(r *model.KnowledgeRelation) *relationRecord {
	return &relationRecord{
		ID:           r.ID,
		BrandID:      r.BrandID,
		FromNodeID:   r.FromNodeID,
		ToNodeID:     r.ToNodeID,
		RelationType: string(r.Type),
		Strength:     r.Strength,
		Context:      r.Context,
		InferredBy:   string(r.InferredBy),
		CreatedAt:    r.CreatedAt.UnixNano(),
	}
}

func (rec *relationRecord) toModel() *model.KnowledgeRelation {
	return &model.KnowledgeRelation{
		ID:         rec.ID,
		BrandID:    rec.BrandID,
		FromNodeID: rec.FromNodeID,
		ToNodeID:   rec.ToNodeID,
		Type:       model.RelationType(rec.RelationType),
		Strength:   rec.Strength,
		Context:    rec.Context,
		InferredBy: model.Provenance(rec.InferredBy),
		CreatedAt:  unixNanoTime(rec.CreatedAt),
	}
}

func (s *SQLiteStore) CreateNode(ctx context.Context, n *model.KnowledgeNode) error {
	if err := n.Validate(); err != nil {
		return err
	}
	rec, err := toNodeRecord(n)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*model.KnowledgeNode, error) {
	var rec nodeRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Kind: "node", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel()
}

func (s *SQLiteStore) ListNodes(ctx context.Context, brandID string, f NodeFilter) ([]*model.KnowledgeNode, error) {
	q := s.db.WithContext(ctx).Where("brand_id = ?", brandID)
	if f.Type != "" {
		q = q.Where("node_type = ?", string(f.Type))
	}
	if f.Segment != "" {
		q = q.Where("segment = ?", f.Segment)
	}
	var recs []nodeRecord
	if err := q.Order("created_at asc, id asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.KnowledgeNode, 0, len(recs))
	for i := range recs {
		n, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteNode(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&nodeRecord{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &model.NotFoundError{Kind: "node", ID: id}
		}
		return tx.Delete(&relationRecord{}, "from_node_id = ? OR to_node_id = ?", id, id).Error
	})
}

func (s *SQLiteStore) MergeSource(ctx context.Context, id string, src model.SourceRef, confidence float64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec nodeRecord
		err := tx.First(&rec, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.NotFoundError{Kind: "node", ID: id}
		}
		if err != nil {
			return err
		}
		var sources []model.SourceRef
		if len(rec.Sources) > 0 {
			if err := json.Unmarshal(rec.Sources, &sources); err != nil {
				return err
			}
		}
		sources = append(sources, src)
		raw, err := json.Marshal(sources)
		if err != nil {
			return err
		}
		updates := map[string]any{"sources": datatypes.JSON(raw)}
		if confidence > rec.Confidence {
			updates["confidence"] = confidence
		}
		return tx.Model(&nodeRecord{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (s *SQLiteStore) SetVerified(ctx context.Context, id string, verified bool) error {
	res := s.db.WithContext(ctx).Model(&nodeRecord{}).Where("id = ?", id).Update("verified", verified)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &model.NotFoundError{Kind: "node", ID: id}
	}
	return nil
}

func (s *SQLiteStore) CreateRelation(ctx context.Context, r *model.KnowledgeRelation) error {
	if err := checkRelation(ctx, s, r); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(toRelationRecord(r)).Error
}

func (s *SQLiteStore) GetRelation(ctx context.Context, id string) (*model.KnowledgeRelation, error) {
	var rec relationRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Kind: "relation", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (s *SQLiteStore) ListRelations(ctx context.Context, brandID string, f RelationFilter) ([]*model.KnowledgeRelation, error) {
	q := s.db.WithContext(ctx).Where("brand_id = ?", brandID)
	if f.Type != "" {
		q = q.Where("relation_type = ?", string(f.Type))
	}
	var recs []relationRecord
	if err := q.Order("created_at asc, id asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.KnowledgeRelation, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toModel())
	}
	return out, nil
}

func (s *SQLiteStore) DeleteRelation(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&relationRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &model.NotFoundError{Kind: "relation", ID: id}
	}
	return nil
}

func (s *SQLiteStore) PurgeDocument(ctx context.Context, brandID, documentID string) error {
	// Source refs live in a JSON column, so membership is decided in Go
	// rather than in SQL.
	nodes, err := s.ListNodes(ctx, brandID, NodeFilter{})
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, n := range nodes {
			if onlySource(n, documentID) {
				if err := tx.Delete(&nodeRecord{}, "id = ?", n.ID).Error; err != nil {
					return err
				}
				if err := tx.Delete(&relationRecord{}, "from_node_id = ? OR to_node_id = ?", n.ID, n.ID).Error; err != nil {
					return err
				}
				continue
			}
			kept := dropSource(n.Sources, documentID)
			if len(kept) == len(n.Sources) {
				continue
			}
			raw, err := json.Marshal(kept)
			if err != nil {
				return err
			}
			if err := tx.Model(&nodeRecord{}).Where("id = ?", n.ID).Update("sources", datatypes.JSON(raw)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
