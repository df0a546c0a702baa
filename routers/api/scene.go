package api

import (
	"net/http"

	"StoryAnim-server/models"

	"github.com/gin-gonic/gin"
)

// 项目分镜列表（按 scene_number 升序）
func GetProjectScenes(c *gin.Context) {
	projectID := c.Param("project_id")

	// 项目不存在时返回 404 而不是空列表
	if _, err := models.GetProjectByID(projectID); err != nil {
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
	c.JSON(http.StatusOK, gin.H{"scenes": scenes})
}

// 分镜详情
func GetScene(c *gin.Context) {
	sceneID := c.Param("scene_id")

	scene, err := models.GetSceneByID(sceneID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "分镜未找到: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scene": scene})
}
