package datastore

import "time"

// Record is the enrichment result stored for one image. Filename is the
// path the image had when it was enriched and is unique.
type Record struct {
	ID           uint    `gorm:"primaryKey"`
	Filename     string  `gorm:"uniqueIndex;size:1024;not null"`
	Keywords     string  `gorm:"type:text"`
	Description  *string `gorm:"type:text"`
	ContentHash  string  `gorm:"index;size:64"`
	Model        string  `gorm:"size:255"`
	ArchivedPath *string `gorm:"size:1024"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName sets the table used for Record.
func (Record) TableName() string {
	return "image_records"
}

// Fields holds the columns an upsert writes. Nil fields are left untouched
// on existing rows and stored empty on new rows.
type Fields struct {
	Keywords    *string
	Description *string
	ContentHash *string
	Model       *string
}

// Ptr returns a pointer to s, for building Fields.
func Ptr(s string) *string {
	return &s
}

// columns returns the supplied fields keyed by column name
func (f Fields) columns() map[string]any {
	cols := make(map[string]any, 4)
	if f.Keywords != nil {
		cols["keywords"] = *f.Keywords
	}
	if f.Description != nil {
		cols["description"] = *f.Description
	}
	if f.ContentHash != nil {
		cols["content_hash"] = *f.ContentHash
	}
	if f.Model != nil {
		cols["model"] = *f.Model
	}
	return cols
}
