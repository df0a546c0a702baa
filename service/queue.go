package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"StoryAnim-server/config"

	"github.com/hibiken/asynq"
)

const (
	TypeProjectPipeline = "project:pipeline"
)

type PipelinePayload struct {
	ProjectID string `json:"project_id"`
}

var QueueClient *asynq.Client

// InitQueue 初始化
func InitQueue() {
	QueueClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.Redis.Addr,
		Password: config.AppConfig.Redis.Password,
	})
}

// EnqueueProjectPipeline 项目创建后把流水线任务入队，由 Processor 后台执行
func EnqueueProjectPipeline(projectID string) error {
	if QueueClient == nil {
		return fmt.Errorf("queue client not initialized")
	}
	payload, err := json.Marshal(PipelinePayload{ProjectID: projectID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(TypeProjectPipeline, payload,
		asynq.MaxRetry(0),             // 失败已落库为 failed 终态，不重试
		asynq.Timeout(60*time.Minute), // 渲染与合成较慢，设置较长超时
		asynq.Retention(24*time.Hour), // 任务结果在 Redis 保留时间
	)

	info, err := QueueClient.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	log.Printf("[Queue] Pipeline Enqueued: ProjectID=%s, TaskID=%s", projectID, info.ID)
	return nil
}
