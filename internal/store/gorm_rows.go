package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/reclaim-app/reclaim/internal/model"
)

type itemRow struct {
	ID                string    `gorm:"primaryKey;type:varchar(64)"`
	TrackingCode      string    `gorm:"type:varchar(64);index"`
	Type              string    `gorm:"type:varchar(16);not null;index:idx_items_type_status"`
	Status            string    `gorm:"type:varchar(16);not null;index:idx_items_type_status"`
	Category          string    `gorm:"type:varchar(64);index"`
	Description       string    `gorm:"type:text"`
	Color             string    `gorm:"type:varchar(64)"`
	Material          string    `gorm:"type:varchar(64)"`
	Size              string    `gorm:"type:varchar(32)"`
	ZoneID            string    `gorm:"type:varchar(64);index"`
	Lat               float64
	Lng               float64
	HasCoordinates    bool
	EventTime         time.Time
	ReportedAt        time.Time      `gorm:"not null;index"`
	HasImageEmbedding bool           `gorm:"index"`
	AI                datatypes.JSON `gorm:"type:jsonb"`
}

func (itemRow) TableName() string { return "items" }

type claimRow struct {
	ID           string         `gorm:"primaryKey;type:varchar(64)"`
	ClaimantID   string         `gorm:"type:varchar(64);not null;index"`
	ItemID       string         `gorm:"type:varchar(64);not null;index"`
	Status       string         `gorm:"type:varchar(16);not null;index"`
	Proofs       datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`
	AIConfidence int
	FraudRisk    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"not null;index"`
	UpdatedAt    time.Time
}

func (claimRow) TableName() string { return "claims" }

type matchRow struct {
	ID            string         `gorm:"primaryKey;type:varchar(64)"`
	LostItemID    string         `gorm:"type:varchar(64);not null;index"`
	LostTracking  string         `gorm:"type:varchar(64)"`
	FoundItemID   string         `gorm:"type:varchar(64);not null"`
	FoundTracking string         `gorm:"type:varchar(64)"`
	Score         int            `gorm:"not null"`
	Components    datatypes.JSON `gorm:"type:jsonb"`
	Category      string         `gorm:"type:varchar(64);index"`
	Status        string         `gorm:"type:varchar(16);not null;index"`
	Overridden    bool
	CreatedAt     time.Time `gorm:"not null;index"`
	ReviewedAt    *time.Time
}

func (matchRow) TableName() string { return "match_records" }

func toItemRow(it *model.Item) (*itemRow, error) {
	ai, err := json.Marshal(it.AI)
	if err != nil {
		return nil, err
	}
	return &itemRow{
		ID:                it.ID,
		TrackingCode:      it.TrackingCode,
		Type:              string(it.Type),
		Status:            string(it.Status),
		Category:          it.Category,
		Description:       it.Description,
		Color:             it.Color,
		Material:          it.Material,
		Size:              it.Size,
		ZoneID:            it.Location.ZoneID,
		Lat:               it.Location.Lat,
		Lng:               it.Location.Lng,
		HasCoordinates:    it.Location.HasCoordinates,
		EventTime:         it.EventTime,
		ReportedAt:        it.ReportedAt,
		HasImageEmbedding: it.HasImageEmbedding(),
		AI:                datatypes.JSON(ai),
	}, nil
}

func (r *itemRow) toModel() (*model.Item, error) {
	it := &model.Item{
		ID:           r.ID,
		TrackingCode: r.TrackingCode,
		Type:         model.SubmissionType(r.Type),
		Status:       model.ItemStatus(r.Status),
		Category:     r.Category,
		Description:  r.Description,
		Color:        r.Color,
		Material:     r.Material,
		Size:         r.Size,
		Location: model.Location{
			ZoneID:         r.ZoneID,
			Lat:            r.Lat,
			Lng:            r.Lng,
			HasCoordinates: r.HasCoordinates,
		},
		EventTime:  r.EventTime,
		ReportedAt: r.ReportedAt,
	}
	if len(r.AI) > 0 {
		if err := json.Unmarshal(r.AI, &it.AI); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func toClaimRow(c *model.Claim) (*claimRow, error) {
	proofs := c.Proofs
	if proofs == nil {
		proofs = []string{}
	}
	pj, err := json.Marshal(proofs)
	if err != nil {
		return nil, err
	}
	row := &claimRow{
		ID:           c.ID,
		ClaimantID:   c.ClaimantID,
		ItemID:       c.ItemID,
		Status:       string(c.Status),
		Proofs:       datatypes.JSON(pj),
		AIConfidence: c.AIConfidence,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.FraudRisk != nil {
		fj, err := json.Marshal(c.FraudRisk)
		if err != nil {
			return nil, err
		}
		row.FraudRisk = datatypes.JSON(fj)
	}
	return row, nil
}

func (r *claimRow) toModel() (*model.Claim, error) {
	c := &model.Claim{
		ID:           r.ID,
		ClaimantID:   r.ClaimantID,
		ItemID:       r.ItemID,
		Status:       model.ClaimStatus(r.Status),
		AIConfidence: r.AIConfidence,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.Proofs) > 0 {
		if err := json.Unmarshal(r.Proofs, &c.Proofs); err != nil {
			return nil, err
		}
	}
	if len(r.FraudRisk) > 0 && string(r.FraudRisk) != "null" {
		c.FraudRisk = &model.FraudRisk{}
		if err := json.Unmarshal(r.FraudRisk, c.FraudRisk); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func toMatchRow(m *model.MatchRecord) (*matchRow, error) {
	cj, err := json.Marshal(m.Components)
	if err != nil {
		return nil, err
	}
	return &matchRow{
		ID:            m.ID,
		LostItemID:    m.LostItemID,
		LostTracking:  m.LostTracking,
		FoundItemID:   m.FoundItemID,
		FoundTracking: m.FoundTracking,
		Score:         m.Score,
		Components:    datatypes.JSON(cj),
		Category:      m.Category,
		Status:        string(m.Status),
		Overridden:    m.Overridden,
		CreatedAt:     m.CreatedAt,
		ReviewedAt:    m.ReviewedAt,
	}, nil
}

func (r *matchRow) toModel() (*model.MatchRecord, error) {
	m := &model.MatchRecord{
		ID: r.ID,
		PairMatch: model.PairMatch{
			LostItemID:    r.LostItemID,
			LostTracking:  r.LostTracking,
			FoundItemID:   r.FoundItemID,
			FoundTracking: r.FoundTracking,
			Score:         r.Score,
			Category:      r.Category,
		},
		Status:     model.MatchStatus(r.Status),
		Overridden: r.Overridden,
		CreatedAt:  r.CreatedAt,
		ReviewedAt: r.ReviewedAt,
	}
	if len(r.Components) > 0 {
		if err := json.Unmarshal(r.Components, &m.Components); err != nil {
			return nil, err
		}
	}
	return m, nil
}
