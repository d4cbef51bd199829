package repository

import (
	"context"
	"time"

	"github.com/venadolabs/chanbind/domains/binding"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type targetOptionModel struct {
	TargetType  string    `gorm:"primaryKey"`
	TargetID    string    `gorm:"primaryKey"`
	DisplayName string    `gorm:"not null"`
	Status      string    `gorm:"not null;default:'unknown'"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (targetOptionModel) TableName() string {
	return "binding_target_options"
}

// TargetGormRepository stores the agents/teams eligible as binding targets,
// as last reported by the orchestrator backend.
type TargetGormRepository struct {
	db *gorm.DB
}

func NewTargetGormRepository(db *gorm.DB) *TargetGormRepository {
	return &TargetGormRepository{db: db}
}

func (r *TargetGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&targetOptionModel{})
}

func (r *TargetGormRepository) List(ctx context.Context) ([]binding.TargetOption, error) {
	var models []targetOptionModel
	if err := r.db.WithContext(ctx).Order("display_name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]binding.TargetOption, 0, len(models))
	for _, m := range models {
		out = append(out, binding.TargetOption{
			TargetType:  binding.TargetType(m.TargetType),
			TargetID:    m.TargetID,
			DisplayName: m.DisplayName,
			Status:      m.Status,
		})
	}
	return out, nil
}

func (r *TargetGormRepository) Upsert(ctx context.Context, opt binding.TargetOption) error {
	m := targetOptionModel{
		TargetType:  string(opt.TargetType),
		TargetID:    opt.TargetID,
		DisplayName: opt.DisplayName,
		Status:      opt.Status,
		UpdatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "status", "updated_at"}),
	}).Create(&m).Error
}
