package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlateMaxLength bounds both plate columns, in characters.
const PlateMaxLength = 32

// PlatePost is a confirmed plate sighting. PlateCanonical is the
// de-duplication and search key; PlateDisplay is what users see.
type PlatePost struct {
	ID               uuid.UUID                   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	OwnerID          uuid.UUID                   `gorm:"type:uuid;not null;index" json:"owner_id"`
	PlateDisplay     string                      `gorm:"type:varchar(32);not null" json:"plate_display"`
	PlateCanonical   string                      `gorm:"type:varchar(32);not null;index" json:"plate_canonical"`
	Tags             datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`
	ImageData        []byte                      `gorm:"type:bytea" json:"-"`
	ImageContentType *string                     `gorm:"type:varchar(64)" json:"image_content_type,omitempty"`
	CreatedAt        time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PlatePost) TableName() string {
	return "plate_posts"
}

func (p *PlatePost) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Tags == nil {
		p.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}

func (p *PlatePost) HasImage() bool {
	return len(p.ImageData) > 0
}
