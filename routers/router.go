package routers

import (
	"StoryAnim-server/config"
	"StoryAnim-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter() *gin.Engine {
	r := gin.Default()
	r.Static("/output", config.AppConfig.Output.Dir)
	v1 := r.Group("/v1/api")
	{
		v1.POST("/projects", api.CreateProject)
		v1.GET("/projects", api.ListProjects)
		v1.GET("/projects/:project_id", api.GetProject)
		v1.DELETE("/projects/:project_id", api.DeleteProject)
		v1.GET("/projects/:project_id/scenes", api.GetProjectScenes)
		v1.GET("/scenes/:scene_id", api.GetScene)
		v1.GET("/stats", api.GetStats)
		v1.GET("/health", api.Health)
	}
	r.GET("/projects/:project_id/wss", api.ProjectProgressWebSocket)
	return r
}
