package models

import "time"

// Image 图片元数据记录
type Image struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	Query         string    `gorm:"size:512;not null;index:idx_query_created_at,priority:1" json:"query"`
	Filename      string    `gorm:"size:255;not null" json:"filename"`
	StorageHandle string    `gorm:"size:255;not null" json:"storage_handle"`
	URL           string    `gorm:"type:text;not null" json:"url"`
	Checksum      string    `gorm:"size:64;not null;uniqueIndex:idx_checksum" json:"checksum"`
	ContentType   string    `gorm:"size:128" json:"content_type"`
	FileSize      int64     `gorm:"not null;default:0" json:"file_size"`
	CreatedAt     time.Time `gorm:"not null;index:idx_query_created_at,priority:2" json:"created_at"`
}
