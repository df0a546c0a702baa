package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"StoryAnim-server/config"

	"github.com/hibiken/asynq"
)

// Processor 消费流水线任务：每个任务驱动一个项目走完整条流水线。
// asynq 的并发度即同时在跑的项目数上限。
type Processor struct {
	Pipeline *Pipeline
}

func NewProcessor(pipeline *Pipeline) *Processor {
	return &Processor{Pipeline: pipeline}
}

// StartProcessor 启动任务消费者
func (p *Processor) StartProcessor(concurrency int) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     config.AppConfig.Redis.Addr,
			Password: config.AppConfig.Redis.Password,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeProjectPipeline, p.HandlePipelineTask)

	log.Printf("Starting Pipeline Processor with concurrency %d...", concurrency)
	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatalf("could not run server: %v", err)
		}
	}()
}

// HandlePipelineTask 业务结果（成功/失败）都已由流水线落库，这里始终返回 nil 不让 asynq 重试
func (p *Processor) HandlePipelineTask(ctx context.Context, t *asynq.Task) error {
	var payload PipelinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing Pipeline: project %s", payload.ProjectID)
	p.Pipeline.StartProject(ctx, payload.ProjectID)
	return nil
}
