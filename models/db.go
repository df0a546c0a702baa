package models

import (
	"database/sql"
	"log"
	"os"
	"strings"
	"time"

	"StoryAnim-server/config"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *sql.DB
var GormDB *gorm.DB

func InitDB() {
	if config.AppConfig == nil {
		log.Fatal("config.AppConfig is nil, call config.InitConfig first")
	}
	dsn := config.AppConfig.MySQL.DSN
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}

	DB = db
	GormDB, err = gorm.Open(mysql.New(mysql.Config{
		Conn: DB,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("GORM 初始化失败: %v", err)
	}

	log.Println("数据库连接成功 (Native SQL + GORM)")

	// 自动建表（读取 doc/sql/StoryAnim.sql）
	b, err := os.ReadFile("doc/sql/StoryAnim.sql")
	if err != nil {
		log.Printf("读取 SQL 文件失败（跳过建表）: %v", err)
		return
	}
	sqls := strings.Split(string(b), ";")
	for _, s := range sqls {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := DB.Exec(s); err != nil {
			log.Printf("执行建表语句失败: %v ; sql: %s", err, s)
		}
	}
}

// Project CRUD
func CreateProject(p *Project) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := DB.Exec(
		`INSERT INTO project (id, title, story_input, genre, status, total_scenes, completed_scenes, video_url, error_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.StoryInput, p.Genre, p.Status, p.TotalScenes, p.CompletedScenes, p.VideoUrl, p.ErrorMessage, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func GetProjectByID(id string) (Project, error) {
	var p Project
	row := DB.QueryRow(`SELECT id, title, story_input, genre, status, total_scenes, completed_scenes, video_url, error_message, created_at, updated_at FROM project WHERE id = ?`, id)
	var createdAt, updatedAt time.Time
	if err := row.Scan(&p.ID, &p.Title, &p.StoryInput, &p.Genre, &p.Status, &p.TotalScenes, &p.CompletedScenes, &p.VideoUrl, &p.ErrorMessage, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	return p, nil
}

func ListProjects() ([]Project, error) {
	rows, err := DB.Query(`SELECT id, title, story_input, genre, status, total_scenes, completed_scenes, video_url, error_message, created_at, updated_at FROM project ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Project
	for rows.Next() {
		var p Project
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&p.ID, &p.Title, &p.StoryInput, &p.Genre, &p.Status, &p.TotalScenes, &p.CompletedScenes, &p.VideoUrl, &p.ErrorMessage, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = createdAt
		p.UpdatedAt = updatedAt
		res = append(res, p)
	}
	return res, rows.Err()
}

// DeleteProjectByID 级联删除：先删分镜，再删项目。返回项目是否存在。
func DeleteProjectByID(id string) (bool, error) {
	if _, err := DB.Exec(`DELETE FROM scene WHERE project_id = ?`, id); err != nil {
		return false, err
	}
	result, err := DB.Exec(`DELETE FROM project WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Scene 查询
func GetScenesByProjectID(projectID string) ([]Scene, error) {
	rows, err := DB.Query(`SELECT id, project_id, scene_number, description, dialogue, camera_direction, duration, status, animation_path, voice_path, video_path, error_message, created_at, updated_at FROM scene WHERE project_id = ? ORDER BY scene_number ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Scene
	for rows.Next() {
		var s Scene
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&s.ID, &s.ProjectId, &s.SceneNumber, &s.Description, &s.Dialogue, &s.CameraDirection, &s.Duration, &s.Status, &s.AnimationPath, &s.VoicePath, &s.VideoPath, &s.ErrorMessage, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.CreatedAt = createdAt
		s.UpdatedAt = updatedAt
		res = append(res, s)
	}
	return res, rows.Err()
}

func GetSceneByID(sceneID string) (Scene, error) {
	var s Scene
	row := DB.QueryRow(`SELECT id, project_id, scene_number, description, dialogue, camera_direction, duration, status, animation_path, voice_path, video_path, error_message, created_at, updated_at FROM scene WHERE id = ?`, sceneID)
	var createdAt, updatedAt time.Time
	if err := row.Scan(&s.ID, &s.ProjectId, &s.SceneNumber, &s.Description, &s.Dialogue, &s.CameraDirection, &s.Duration, &s.Status, &s.AnimationPath, &s.VoicePath, &s.VideoPath, &s.ErrorMessage, &createdAt, &updatedAt); err != nil {
		return s, err
	}
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt
	return s, nil
}

// Stats 聚合统计
type Stats struct {
	TotalProjects      int `json:"total_projects"`
	CompletedProjects  int `json:"completed_projects"`
	ProcessingProjects int `json:"processing_projects"`
	FailedProjects     int `json:"failed_projects"`
	TotalScenes        int `json:"total_scenes"`
}

func GetStats() (Stats, error) {
	var st Stats
	if err := DB.QueryRow(`SELECT COUNT(*) FROM project`).Scan(&st.TotalProjects); err != nil {
		return st, err
	}
	if err := DB.QueryRow(`SELECT COUNT(*) FROM project WHERE status = ?`, ProjectStatusCompleted).Scan(&st.CompletedProjects); err != nil {
		return st, err
	}
	if err := DB.QueryRow(`SELECT COUNT(*) FROM project WHERE status = ?`, ProjectStatusProcessing).Scan(&st.ProcessingProjects); err != nil {
		return st, err
	}
	if err := DB.QueryRow(`SELECT COUNT(*) FROM project WHERE status = ?`, ProjectStatusFailed).Scan(&st.FailedProjects); err != nil {
		return st, err
	}
	if err := DB.QueryRow(`SELECT COUNT(*) FROM scene`).Scan(&st.TotalScenes); err != nil {
		return st, err
	}
	return st, nil
}
