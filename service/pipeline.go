package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"StoryAnim-server/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Storyboard 脚本生成结果（导演阶段的输出）
type Storyboard struct {
	Title  string           `json:"title"`
	Genre  string           `json:"genre"`
	Scenes []StoryboardShot `json:"scenes"`
}

type StoryboardShot struct {
	SceneNumber     int     `json:"scene_number"`
	Description     string  `json:"description"`
	Dialogue        string  `json:"dialogue"`
	CameraDirection string  `json:"camera_direction"`
	Duration        float64 `json:"duration"`
}

// ClipInput 合成阶段的单个分镜输入
type ClipInput struct {
	SceneNumber   int
	AnimationPath string
	VoicePath     string
}

// 外部协作者契约。流水线只依赖这些接口，真实实现见 director.go / animator.go / voice.go / editor.go。
type ScriptGenerator interface {
	// GenerateScript 不返回错误：解析失败时给出降级的单分镜结果
	GenerateScript(ctx context.Context, story, genre string) *Storyboard
}

type SceneRenderer interface {
	RenderScene(ctx context.Context, sceneID, description string, duration float64) (string, error)
}

type VoiceSynthesizer interface {
	// SynthesizeVoice 文本为空时返回空路径且无错误
	SynthesizeVoice(ctx context.Context, sceneID, text, language string) (string, error)
}

type VideoCompiler interface {
	CompileVideo(ctx context.Context, projectID string, clips []ClipInput) (string, error)
}

// VideoPublisher 成片发布（上传 MinIO 换取外部可访问 URL），为 nil 时直接使用本地路径
type VideoPublisher interface {
	PublishVideo(localPath, projectID string) (string, error)
}

// Pipeline 项目流水线编排器：驱动 脚本->逐镜动画/配音->合成 的状态机，
// 每一步之后落库，同一项目不允许并发重复执行。
type Pipeline struct {
	DB        *gorm.DB
	Director  ScriptGenerator
	Animator  SceneRenderer
	Voice     VoiceSynthesizer
	Editor    VideoCompiler
	Publisher VideoPublisher
	Language  string

	active *activeRegistry
}

func NewPipeline(db *gorm.DB, director ScriptGenerator, animator SceneRenderer, voice VoiceSynthesizer, editor VideoCompiler) *Pipeline {
	return &Pipeline{
		DB:       db,
		Director: director,
		Animator: animator,
		Voice:    voice,
		Editor:   editor,
		Language: "en",
		active:   newActiveRegistry(),
	}
}

// StartProject 启动单个项目的流水线。项目已在执行中时为幂等空操作。
// 任何阶段的故障都在这里统一收口：项目被置为 failed，错误不外泄。
func (p *Pipeline) StartProject(ctx context.Context, projectID string) {
	if !p.active.TryAdd(projectID) {
		log.Printf("[Pipeline] 项目 %s 已在执行中，忽略本次启动", projectID)
		return
	}
	// 无论成功、失败还是 panic，都必须释放活跃标记
	defer p.active.Remove(projectID)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("pipeline panic: %v", r)
			}
		}()
		return p.run(ctx, projectID)
	}()

	if err != nil {
		log.Printf("[Pipeline] 项目 %s 失败: %v", projectID, err)
		if dbErr := models.MarkProjectFailed(p.DB, projectID, err.Error()); dbErr != nil {
			log.Printf("[Pipeline] 写入失败状态失败: %v", dbErr)
		}
	}
}

// StartMany 并发启动多个项目并等待全部结束；单个项目的失败不影响其他项目。
func (p *Pipeline) StartMany(ctx context.Context, projectIDs []string) {
	var wg sync.WaitGroup
	for _, id := range projectIDs {
		wg.Add(1)
		go func(projectID string) {
			defer wg.Done()
			p.StartProject(ctx, projectID)
		}(id)
	}
	wg.Wait()
}

func (p *Pipeline) run(ctx context.Context, projectID string) error {
	project, err := models.GetProjectByIDGorm(p.DB, projectID)
	if err != nil {
		return fmt.Errorf("project not found: %v", err)
	}

	// 终态不再迁移；非 pending 的项目（如崩溃遗留的 processing）也不重跑
	if project.Status != models.ProjectStatusPending {
		log.Printf("[Pipeline] 项目 %s 状态为 %s，跳过", projectID, project.Status)
		return nil
	}

	// 先落库 processing，再调任何协作者：中途崩溃时状态可观测
	if err := project.UpdateStatus(p.DB, models.ProjectStatusProcessing); err != nil {
		return fmt.Errorf("update status failed: %v", err)
	}

	// 阶段一：导演拆解故事为分镜脚本
	log.Printf("[Director] 分析故事, 项目 %s", projectID)
	storyboard := p.Director.GenerateScript(ctx, project.StoryInput, project.Genre)

	scenes := make([]models.Scene, 0, len(storyboard.Scenes))
	now := time.Now()
	for _, shot := range storyboard.Scenes {
		duration := shot.Duration
		if duration <= 0 {
			duration = 5.0
		}
		scenes = append(scenes, models.Scene{
			ID:              uuid.NewString(),
			ProjectId:       projectID,
			SceneNumber:     shot.SceneNumber,
			Description:     shot.Description,
			Dialogue:        shot.Dialogue,
			CameraDirection: shot.CameraDirection,
			Duration:        duration,
			Status:          models.SceneStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	if err := models.BatchCreateScenes(p.DB, scenes); err != nil {
		return fmt.Errorf("批量创建分镜失败: %v", err)
	}
	if err := models.SetTotalScenes(p.DB, projectID, len(scenes)); err != nil {
		return fmt.Errorf("写入分镜总数失败: %v", err)
	}

	// 阶段二：逐镜生成动画与配音，按 scene_number 升序
	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].SceneNumber < scenes[j].SceneNumber
	})
	for i := range scenes {
		scene := &scenes[i]
		log.Printf("[Processing] 分镜 %d, 项目 %s", scene.SceneNumber, projectID)

		if err := scene.UpdateSceneStatus(p.DB, models.SceneStatusAnimating); err != nil {
			return fmt.Errorf("更新分镜状态失败: %v", err)
		}

		animationPath, err := p.Animator.RenderScene(ctx, scene.ID, scene.Description, scene.Duration)
		if err != nil {
			return fmt.Errorf("分镜 %d 渲染失败: %v", scene.SceneNumber, err)
		}
		if err := scene.SetAnimation(p.DB, animationPath); err != nil {
			return fmt.Errorf("写入动画路径失败: %v", err)
		}

		// 配音失败不致命：记录日志，voice_path 保持为空（与渲染故障策略不同）
		if scene.Dialogue != "" {
			voicePath, err := p.Voice.SynthesizeVoice(ctx, scene.ID, scene.Dialogue, p.Language)
			if err != nil {
				log.Printf("[Voice] 分镜 %d 配音失败（跳过）: %v", scene.SceneNumber, err)
			} else if voicePath != "" {
				if err := scene.SetVoicePath(p.DB, voicePath); err != nil {
					return fmt.Errorf("写入配音路径失败: %v", err)
				}
			}
		}

		if err := scene.UpdateSceneStatus(p.DB, models.SceneStatusCompleted); err != nil {
			return fmt.Errorf("更新分镜状态失败: %v", err)
		}
		if err := models.IncrementCompletedScenes(p.DB, projectID); err != nil {
			return fmt.Errorf("更新项目进度失败: %v", err)
		}
	}

	// 阶段三：重新读库，按顺序合成成片
	log.Printf("[Editor] 合成成片, 项目 %s", projectID)
	stored, err := models.GetScenesByProjectIDGorm(p.DB, projectID)
	if err != nil {
		return fmt.Errorf("读取分镜失败: %v", err)
	}
	clips := make([]ClipInput, 0, len(stored))
	for _, s := range stored {
		clips = append(clips, ClipInput{
			SceneNumber:   s.SceneNumber,
			AnimationPath: s.AnimationPath,
			VoicePath:     s.VoicePath,
		})
	}

	finalPath, err := p.Editor.CompileVideo(ctx, projectID, clips)
	if err != nil {
		return fmt.Errorf("成片合成失败: %v", err)
	}

	videoURL := finalPath
	if p.Publisher != nil {
		url, err := p.Publisher.PublishVideo(finalPath, projectID)
		if err != nil {
			// 上传失败退回本地路径，成片本身已经产出
			log.Printf("[Pipeline] 成片上传失败（使用本地路径）: %v", err)
		} else {
			videoURL = url
		}
	}

	if err := models.MarkProjectCompleted(p.DB, projectID, videoURL); err != nil {
		return fmt.Errorf("写入完成状态失败: %v", err)
	}

	log.Printf("[SUCCESS] 项目 %s 完成! 成片: %s", projectID, videoURL)
	return nil
}

// ActiveCount 当前正在执行的项目数（用于观测）
func (p *Pipeline) ActiveCount() int {
	return p.active.Len()
}
