package models

import "time"

// OrphanBlob 文档记录已删除但存储对象删除失败，等待清理任务重试
type OrphanBlob struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Path      string    `gorm:"not null;size:512;uniqueIndex" json:"path"`
	Attempts  int       `gorm:"not null" json:"attempts"`
	LastError string    `gorm:"type:text" json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 表名
func (OrphanBlob) TableName() string {
	return "orphan_blobs"
}
