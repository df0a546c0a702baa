package main

import (
	"fmt"
	"log"

	"StoryAnim-server/config"
	"StoryAnim-server/models"
	"StoryAnim-server/routers"
	"StoryAnim-server/service"
)

func main() {
	config.InitConfig()
	fmt.Println("Server starting on port", config.AppConfig.Server.Port)
	models.InitDB()
	fmt.Println("Database initialized")

	service.InitQueue()
	fmt.Println("Queue initialized")

	service.InitMinIO()
	fmt.Println("MinIO initialized")

	outputDir := config.AppConfig.Output.Dir
	animator, err := service.NewAnimator(outputDir)
	if err != nil {
		log.Fatalf("Animator 初始化失败: %v", err)
	}
	voice, err := service.NewVoice(config.AppConfig, outputDir)
	if err != nil {
		log.Fatalf("Voice 初始化失败: %v", err)
	}
	editor, err := service.NewEditor(outputDir)
	if err != nil {
		log.Fatalf("Editor 初始化失败: %v", err)
	}

	pipeline := service.NewPipeline(models.GormDB, service.NewDirector(config.AppConfig), animator, voice, editor)
	pipeline.Publisher = service.MinioPublisher{}
	if config.AppConfig.AI.VoiceLang != "" {
		pipeline.Language = config.AppConfig.AI.VoiceLang
	}

	processor := service.NewProcessor(pipeline)
	processor.StartProcessor(5)

	r := routers.InitRouter()
	r.Run(config.AppConfig.Server.Port)
}
