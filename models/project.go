package models

import (
	"time"

	"gorm.io/gorm"
)

// 项目状态（流水线状态机，见 service/pipeline.go）
const (
	// pending: 项目已创建，流水线尚未启动
	ProjectStatusPending = "pending"
	// processing: 流水线执行中（崩溃恢复时停留在此状态即为信号）
	ProjectStatusProcessing = "processing"
	// completed / failed: 终态，不再发生任何迁移
	ProjectStatusCompleted = "completed"
	ProjectStatusFailed    = "failed"
)

type Project struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title           string    `json:"title"`
	StoryInput      string    `json:"storyInput"`
	Genre           string    `json:"genre"`
	Status          string    `json:"status"`
	TotalScenes     int       `json:"totalScenes"`
	CompletedScenes int       `json:"completedScenes"`
	VideoUrl        string    `json:"videoUrl"`
	ErrorMessage    string    `json:"errorMessage"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (Project) TableName() string {
	return "project"
}

func GetProjectByIDGorm(db *gorm.DB, projectID string) (*Project, error) {
	var project Project
	if err := db.First(&project, "id = ?", projectID).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateStatus 只更新状态与时间戳（进入 processing 时使用）
func (p *Project) UpdateStatus(db *gorm.DB, status string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	return db.Model(p).Updates(updates).Error
}

// SetTotalScenes 脚本阶段落库后写入分镜总数
func SetTotalScenes(db *gorm.DB, projectID string, total int) error {
	return db.Model(&Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
		"total_scenes": total,
		"updated_at":   time.Now(),
	}).Error
}

// IncrementCompletedScenes 单条 UPDATE 内自增，避免读-改-写丢失更新
func IncrementCompletedScenes(db *gorm.DB, projectID string) error {
	return db.Model(&Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
		"completed_scenes": gorm.Expr("completed_scenes + 1"),
		"updated_at":       time.Now(),
	}).Error
}

// MarkProjectCompleted 终态：写入成片地址
func MarkProjectCompleted(db *gorm.DB, projectID, videoURL string) error {
	return db.Model(&Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
		"status":     ProjectStatusCompleted,
		"video_url":  videoURL,
		"updated_at": time.Now(),
	}).Error
}

// MarkProjectFailed 终态：写入错误信息
func MarkProjectFailed(db *gorm.DB, projectID, errMsg string) error {
	return db.Model(&Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
		"status":        ProjectStatusFailed,
		"error_message": errMsg,
		"updated_at":    time.Now(),
	}).Error
}
