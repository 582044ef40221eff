package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
)

// GormStore persists to Postgres through gorm
type GormStore struct {
	db  *gorm.DB
	log *logging.Logger
}

// OpenPostgres connects to dsn and migrates the schema
func OpenPostgres(dsn string, log *logging.Logger) (*GormStore, error) {
	if dsn == "" {
		return nil, apperr.Invalid("store.open", "postgres dsn is required")
	}

	gormLog := gormLogger.New(
		zap.NewStdLog(log.SugaredLogger.Desugar()),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return NewGormStore(db, log)
}

// NewGormStore wraps an open gorm handle and migrates the schema
func NewGormStore(db *gorm.DB, log *logging.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&itemRow{}, &claimRow{}, &matchRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db, log: log.With("store", "postgres")}, nil
}

func (s *GormStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	row, err := s.itemRow(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (s *GormStore) itemRow(ctx context.Context, tx *gorm.DB, id string) (*itemRow, error) {
	var row itemRow
	err := tx.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store.item", "item %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *GormStore) ListItems(ctx context.Context, f ItemFilter) ([]*model.Item, error) {
	q := s.db.WithContext(ctx).Model(&itemRow{})
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", toStrings(f.Statuses))
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.ZoneID != "" {
		q = q.Where("zone_id = ?", f.ZoneID)
	}
	if f.WithImageEmbedding {
		q = q.Where("has_image_embedding = ?", true)
	}
	if !f.Since.IsZero() {
		q = q.Where("reported_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("reported_at < ?", f.Until)
	}

	var rows []itemRow
	if err := q.Order("reported_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Item, 0, len(rows))
	for i := range rows {
		it, err := rows[i].toModel()
		if err != nil {
			return nil, fmt.Errorf("decode item %s: %w", rows[i].ID, err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *GormStore) SaveItem(ctx context.Context, item *model.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ReportedAt.IsZero() {
		item.ReportedAt = time.Now()
	}
	if item.Status == "" {
		item.Status = model.ItemSubmitted
	}
	row, err := toItemRow(item)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(row).Error
}

// UpdateBestMatch rewrites the AI column in place; concurrent writers are last-writer-wins
func (s *GormStore) UpdateBestMatch(ctx context.Context, id, bestMatchID string, score int) error {
	return s.updateAI(ctx, id, func(ai *model.ItemAI) {
		ai.BestMatchID = bestMatchID
		ai.MatchScore = score
		ai.SimilarityChecked = true
	})
}

// UpdateItemInference rewrites the enrichment fields; best-match fields keep their stored values
func (s *GormStore) UpdateItemInference(ctx context.Context, id string, ai model.ItemAI) error {
	return s.updateAI(ctx, id, func(dst *model.ItemAI) {
		dst.SetInference(ai)
	})
}

func (s *GormStore) updateAI(ctx context.Context, id string, mutate func(*model.ItemAI)) error {
	row, err := s.itemRow(ctx, s.db, id)
	if err != nil {
		return err
	}
	var ai model.ItemAI
	if len(row.AI) > 0 {
		if err := json.Unmarshal(row.AI, &ai); err != nil {
			return fmt.Errorf("decode item %s ai: %w", id, err)
		}
	}
	mutate(&ai)
	data, err := json.Marshal(ai)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&itemRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"ai":                  datatypes.JSON(data),
		"has_image_embedding": len(ai.ImageEmbedding) > 0,
	}).Error
}

func (s *GormStore) UpdateItemStatus(ctx context.Context, id string, status model.ItemStatus) error {
	res := s.db.WithContext(ctx).Model(&itemRow{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("store.item", "item %q not found", id)
	}
	return nil
}

func (s *GormStore) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	var row claimRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store.claim", "claim %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (s *GormStore) ListClaims(ctx context.Context, f ClaimFilter) ([]*model.Claim, error) {
	q := s.db.WithContext(ctx).Model(&claimRow{})
	if f.ItemID != "" {
		q = q.Where("item_id = ?", f.ItemID)
	}
	if f.ClaimantID != "" {
		q = q.Where("claimant_id = ?", f.ClaimantID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", toStrings(f.Statuses))
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("created_at < ?", f.Until)
	}

	var rows []claimRow
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Claim, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toModel()
		if err != nil {
			return nil, fmt.Errorf("decode claim %s: %w", rows[i].ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *GormStore) SaveClaim(ctx context.Context, claim *model.Claim) error {
	return s.saveClaim(ctx, s.db, claim)
}

func (s *GormStore) saveClaim(ctx context.Context, tx *gorm.DB, claim *model.Claim) error {
	now := time.Now()
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = now
	}
	if claim.Status == "" {
		claim.Status = model.ClaimPending
	}
	claim.UpdatedAt = now
	row, err := toClaimRow(claim)
	if err != nil {
		return err
	}
	return tx.WithContext(ctx).Save(row).Error
}

func (s *GormStore) ApproveClaim(ctx context.Context, claim *model.Claim) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		err := tx.Model(&claimRow{}).
			Where("item_id = ? AND id <> ? AND status = ?", claim.ItemID, claim.ID, string(model.ClaimApproved)).
			Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			return apperr.Invalid("store.approve", "item %q already has an approved claim", claim.ItemID)
		}
		claim.Status = model.ClaimApproved
		return s.saveClaim(ctx, tx, claim)
	})
}

func (s *GormStore) GetMatch(ctx context.Context, id string) (*model.MatchRecord, error) {
	var row matchRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("store.match", "match %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (s *GormStore) ListMatches(ctx context.Context, f MatchFilter) ([]*model.MatchRecord, error) {
	q := s.db.WithContext(ctx).Model(&matchRow{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", toStrings(f.Statuses))
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("created_at < ?", f.Until)
	}

	var rows []matchRow
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.MatchRecord, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, fmt.Errorf("decode match %s: %w", rows[i].ID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *GormStore) SaveMatch(ctx context.Context, rec *model.MatchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = model.MatchSuggested
	}
	row, err := toMatchRow(rec)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(row).Error
}

// Close releases the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
