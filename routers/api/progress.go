package api

import (
	"net/http"
	"time"

	"StoryAnim-server/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 项目进度 WebSocket 推送：以数据库为唯一来源，轮询 DB 并在变化时推送，
// 项目进入终态（completed/failed）后发送最终状态并关闭连接。
func ProjectProgressWebSocket(c *gin.Context) {
	projectID := c.Param("project_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	p, err := models.GetProjectByID(projectID)
	if err != nil {
		conn.WriteJSON(map[string]interface{}{"error": "project not found: " + err.Error()})
		return
	}
	_ = conn.WriteJSON(p)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	prevStatus := p.Status
	prevCompleted := p.CompletedScenes

	for range ticker.C {
		cur, err := models.GetProjectByID(projectID)
		if err != nil {
			// 查询失败继续重试（项目可能已被删除，客户端会在超时后断开）
			continue
		}

		if cur.Status != prevStatus || cur.CompletedScenes != prevCompleted {
			if err := conn.WriteJSON(cur); err != nil {
				break
			}
			prevStatus = cur.Status
			prevCompleted = cur.CompletedScenes
		}

		if cur.Status == models.ProjectStatusCompleted || cur.Status == models.ProjectStatusFailed {
			_ = conn.WriteJSON(cur)
			break
		}
	}
}
