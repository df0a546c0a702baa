package api

import (
	"log"
	"net/http"
	"time"

	"StoryAnim-server/models"
	"StoryAnim-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 创建项目并触发流水线
func CreateProject(c *gin.Context) {
	var req struct {
		Title      string `json:"title"`
		StoryInput string `json:"story_input"`
		Genre      string `json:"genre"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == "" || req.StoryInput == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title 和 story_input 不能为空"})
		return
	}
	if req.Genre == "" {
		req.Genre = "general"
	}

	project := models.Project{
		ID:              uuid.NewString(),
		Title:           req.Title,
		StoryInput:      req.StoryInput,
		Genre:           req.Genre,
		Status:          models.ProjectStatusPending,
		TotalScenes:     0,
		CompletedScenes: 0,
		VideoUrl:        "",
		ErrorMessage:    "",
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := models.CreateProject(&project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建项目失败: " + err.Error()})
		return
	}

	// 入队后由后台 Processor 驱动流水线；入队失败时项目保留在 pending，可另行触发
	if err := service.EnqueueProjectPipeline(project.ID); err != nil {
		log.Printf("流水线任务入队失败: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"project": project,
			"message": "项目已创建，但流水线入队失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// 项目列表
func ListProjects(c *gin.Context) {
	projects, err := models.ListProjects()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取项目列表失败: " + err.Error()})
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// 获取项目详情（含分镜列表）
func GetProject(c *gin.Context) {
	projectID := c.Param("project_id")

	project, err := models.GetProjectByID(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}

	scenes, err := models.GetScenesByProjectID(projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取分镜失败: " + err.Error()})
		return
	}
	if scenes == nil {
		scenes = []models.Scene{}
	}

	c.JSON(http.StatusOK, gin.H{
		"project": project,
		"scenes":  scenes,
	})
}

// 删除项目（级联删除分镜）
func DeleteProject(c *gin.Context) {
	projectID := c.Param("project_id")

	found, err := models.DeleteProjectByID(projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除项目失败: " + err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "项目已删除"})
}

// 按状态聚合的统计
func GetStats(c *gin.Context) {
	stats, err := models.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取统计失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// 健康检查
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "StoryAnim API",
		"status":  "running",
	})
}
