package app

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	svcerrors "github.com/dropworks/pooldrop/service/errors"
	"github.com/dropworks/pooldrop/service/transactions"
)

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db}
}

func Migrate(db *gorm.DB) error {
	db.AutoMigrate(&PoolDrop{})
	return nil
}

// Insert pool drop
func (s *GormStore) InsertPoolDrop(pd *PoolDrop) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&PoolDrop{}).Where("id = ?", pd.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return svcerrors.ErrDuplicateID
		}
		return tx.Omit(clause.Associations).Create(pd).Error
	})
}

// Get pool drop
func (s *GormStore) GetPoolDrop(id string) (*PoolDrop, error) {
	pd := PoolDrop{}
	if err := s.db.Where("id = ?", id).First(&pd).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcerrors.ErrNotFound
		}
		return nil, err
	}
	return &pd, nil
}

// Update pool drop, guarded by the version the caller read. Only the mutable
// fields travel; identity and amount fields are immutable after creation.
func (s *GormStore) UpdatePoolDrop(pd *PoolDrop, expectedVersion uint64) error {
	res := s.db.Model(&PoolDrop{}).
		Where("id = ? AND version = ?", pd.ID, expectedVersion).
		Updates(map[string]interface{}{
			"version":         expectedVersion + 1,
			"claims":          pd.Claims,
			"cancelled":       pd.Cancelled,
			"executed":        pd.Executed,
			"transaction_ids": pd.TransactionIDs,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return svcerrors.ErrVersionConflict
	}
	pd.Version = expectedVersion + 1
	return nil
}

// List active pool drop ids
func (s *GormStore) ListActivePoolDrops(creatorID, currency string) ([]string, error) {
	ids := []string{}
	q := s.db.Model(&PoolDrop{}).
		Where("creator_id = ? AND cancelled = ? AND executed = ?", creatorID, false, false).
		Order("created_at desc")
	if currency != "" {
		q = q.Where("currency = ?", currency)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GormStore) InsertSigningRequest(t *transactions.SigningRequest) error {
	return s.db.Omit(clause.Associations).Create(t).Error
}

func (s *GormStore) UpdateSigningRequest(t *transactions.SigningRequest) error {
	return t.Save(s.db)
}

func (s *GormStore) GetSigningRequest(id uuid.UUID) (*transactions.SigningRequest, error) {
	return transactions.GetSigningRequest(s.db, id)
}

func (s *GormStore) LatestSigningRequest(poolDropID string) (*transactions.SigningRequest, error) {
	return transactions.LatestForPoolDrop(s.db, poolDropID)
}
