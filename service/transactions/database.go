package transactions

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func Migrate(db *gorm.DB) error {
	db.AutoMigrate(&SigningRequest{})
	return nil
}

func (SigningRequest) TableName() string {
	return "signing_requests"
}

func (t *SigningRequest) BeforeCreate(tx *gorm.DB) (err error) {
	t.ID = uuid.New()
	return nil
}

func (t *SigningRequest) Save(db *gorm.DB) error {
	return db.Omit(clause.Associations).Save(t).Error
}

func GetSigningRequest(db *gorm.DB, id uuid.UUID) (*SigningRequest, error) {
	t := SigningRequest{}
	return &t, db.First(&t, "id = ?", id).Error
}

// LatestForPoolDrop returns the most recent signing request for a pool drop.
func LatestForPoolDrop(db *gorm.DB, poolDropID string) (*SigningRequest, error) {
	t := SigningRequest{}
	err := db.Where(map[string]interface{}{"pool_drop_id": poolDropID}).
		Order("created_at desc").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}
