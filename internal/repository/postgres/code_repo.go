package postgres

import (
	"context"
	"time"

	"github.com/dom/auth-server/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type codeRepository struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) *codeRepository {
	return &codeRepository{db: db}
}

func (r *codeRepository) Create(ctx context.Context, code *domain.VerificationCode) error {
	return translate(conn(ctx, r.db).Create(code).Error)
}

// GetValid locks the row for the rest of the surrounding transaction, if any.
func (r *codeRepository) GetValid(ctx context.Context, id string, codeType domain.CodeType, now time.Time) (*domain.VerificationCode, error) {
	var code domain.VerificationCode
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND type = ? AND expires_at > ?", id, codeType, now).
		First(&code).Error
	if err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

func (r *codeRepository) CountRecent(ctx context.Context, userID uuid.UUID, codeType domain.CodeType, createdAfter, now time.Time) (int64, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&domain.VerificationCode{}).
		Where("user_id = ? AND type = ? AND created_at > ? AND expires_at > ?", userID, codeType, createdAfter, now).
		Count(&count).Error
	return count, err
}

func (r *codeRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := conn(ctx, r.db).Delete(&domain.VerificationCode{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
