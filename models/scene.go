package models

import (
	"time"

	"gorm.io/gorm"
)

// 分镜状态：只向前推进，不回退
const (
	SceneStatusPending         = "pending"
	SceneStatusScriptGenerated = "script_generated"
	SceneStatusAnimating       = "animating"
	SceneStatusVoiceGenerating = "voice_generating"
	SceneStatusRendering       = "rendering"
	SceneStatusCompleted       = "completed"
	SceneStatusFailed          = "failed"
)

type Scene struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectId       string    `json:"projectId"`
	SceneNumber     int       `json:"sceneNumber"`
	Description     string    `json:"description"`
	Dialogue        string    `json:"dialogue"`
	CameraDirection string    `json:"cameraDirection"`
	Duration        float64   `json:"duration"`
	Status          string    `json:"status"`
	AnimationPath   string    `json:"animationPath"`
	VoicePath       string    `json:"voicePath"`
	VideoPath       string    `json:"videoPath"`
	ErrorMessage    string    `json:"errorMessage"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (Scene) TableName() string {
	return "scene"
}

func BatchCreateScenes(db *gorm.DB, scenes []Scene) error {
	if len(scenes) == 0 {
		return nil
	}
	return db.Create(&scenes).Error
}

func GetSceneByIDGorm(db *gorm.DB, sceneID string) (*Scene, error) {
	var scene Scene
	if err := db.First(&scene, "id = ?", sceneID).Error; err != nil {
		return nil, err
	}
	return &scene, nil
}

// GetScenesByProjectIDGorm 按 scene_number 升序返回，合成阶段依赖该顺序
func GetScenesByProjectIDGorm(db *gorm.DB, projectID string) ([]Scene, error) {
	var scenes []Scene
	err := db.Where("project_id = ?", projectID).Order("scene_number ASC").Find(&scenes).Error
	return scenes, err
}

func (s *Scene) UpdateSceneStatus(db *gorm.DB, status string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	return db.Model(s).Updates(updates).Error
}

// SetAnimation 写入动画文件路径并推进到配音阶段
func (s *Scene) SetAnimation(db *gorm.DB, animationPath string) error {
	updates := map[string]interface{}{
		"animation_path": animationPath,
		"status":         SceneStatusVoiceGenerating,
		"updated_at":     time.Now(),
	}
	return db.Model(s).Updates(updates).Error
}

// SetVoicePath 写入配音文件路径（台词为空时不会被调用）
func (s *Scene) SetVoicePath(db *gorm.DB, voicePath string) error {
	updates := map[string]interface{}{
		"voice_path": voicePath,
		"updated_at": time.Now(),
	}
	return db.Model(s).Updates(updates).Error
}
