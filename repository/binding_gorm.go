package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgError "github.com/venadolabs/chanbind/pkg/error"
	"github.com/venadolabs/chanbind/domains/binding"
	"github.com/venadolabs/chanbind/domains/provider"
	"gorm.io/gorm"
)

// --- Persistence Model ---

type bindingModel struct {
	ID                     string `gorm:"primaryKey"`
	Provider               string `gorm:"index:idx_bindings_scope,priority:1;not null"`
	Transport              string `gorm:"index:idx_bindings_scope,priority:2;not null"`
	AccountID              string `gorm:"index:idx_bindings_scope,priority:3"`
	PeerID                 string `gorm:"not null"`
	ThreadID               string
	TargetType             string `gorm:"not null"`
	TargetID               string `gorm:"index:idx_bindings_target;not null"`
	AllowTransportFallback bool   `gorm:"default:false"`
	CreatedAt              time.Time `gorm:"not null"`
	UpdatedAt              time.Time `gorm:"not null"`
}

func (bindingModel) TableName() string {
	return "channel_bindings"
}

func toBindingModel(b *binding.ChannelBinding) bindingModel {
	return bindingModel{
		ID:                     b.ID,
		Provider:               string(b.Provider),
		Transport:              string(b.Transport),
		AccountID:              b.AccountID,
		PeerID:                 b.PeerID,
		ThreadID:               b.ThreadID,
		TargetType:             string(b.TargetType),
		TargetID:               b.TargetID,
		AllowTransportFallback: b.AllowTransportFallback,
		CreatedAt:              b.CreatedAt,
		UpdatedAt:              b.UpdatedAt,
	}
}

func fromBindingModel(m bindingModel) binding.ChannelBinding {
	return binding.ChannelBinding{
		ID:                     m.ID,
		Provider:               provider.Provider(m.Provider),
		Transport:              provider.Transport(m.Transport),
		AccountID:              m.AccountID,
		PeerID:                 m.PeerID,
		ThreadID:               m.ThreadID,
		TargetType:             binding.TargetType(m.TargetType),
		TargetID:               m.TargetID,
		AllowTransportFallback: m.AllowTransportFallback,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

// --- Repository Implementation ---

type BindingGormRepository struct {
	db *gorm.DB
}

func NewBindingGormRepository(db *gorm.DB) *BindingGormRepository {
	return &BindingGormRepository{db: db}
}

func (r *BindingGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&bindingModel{})
}

func (r *BindingGormRepository) List(ctx context.Context) ([]binding.ChannelBinding, error) {
	var models []bindingModel
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]binding.ChannelBinding, 0, len(models))
	for _, m := range models {
		out = append(out, fromBindingModel(m))
	}
	return out, nil
}

// ListByScope filters on the exact (provider, transport, account) tuple. An
// empty scope account id means no account filter.
func (r *BindingGormRepository) ListByScope(ctx context.Context, scope binding.Scope) ([]binding.ChannelBinding, error) {
	q := r.db.WithContext(ctx).
		Where("provider = ? AND transport = ?", string(scope.Provider), string(scope.Transport))
	if scope.AccountID != "" {
		q = q.Where("account_id = ?", scope.AccountID)
	}

	var models []bindingModel
	if err := q.Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]binding.ChannelBinding, 0, len(models))
	for _, m := range models {
		out = append(out, fromBindingModel(m))
	}
	return out, nil
}

func (r *BindingGormRepository) GetByID(ctx context.Context, id string) (binding.ChannelBinding, error) {
	var m bindingModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return binding.ChannelBinding{}, pkgError.NotFoundError("binding not found: " + id)
		}
		return binding.ChannelBinding{}, err
	}
	return fromBindingModel(m), nil
}

func (r *BindingGormRepository) Save(ctx context.Context, b *binding.ChannelBinding) error {
	now := time.Now().UTC()
	if b.ID == "" {
		b.ID = uuid.New().String()
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	m := toBindingModel(b)
	result := r.db.WithContext(ctx).Save(&m)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "UNIQUE constraint failed") ||
			strings.Contains(result.Error.Error(), "duplicate key value") {
			return pkgError.ValidationError("a binding with this id already exists")
		}
		return result.Error
	}
	return nil
}

func (r *BindingGormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&bindingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgError.NotFoundError("binding not found: " + id)
	}
	return nil
}
