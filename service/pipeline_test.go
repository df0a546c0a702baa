package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"StoryAnim-server/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Project{}, &models.Scene{}))
	return db
}

func createTestProject(t *testing.T, db *gorm.DB, title, story, genre string) string {
	t.Helper()
	project := models.Project{
		ID:         uuid.NewString(),
		Title:      title,
		StoryInput: story,
		Genre:      genre,
		Status:     models.ProjectStatusPending,
	}
	require.NoError(t, db.Create(&project).Error)
	return project.ID
}

// ---- 协作者的测试替身 ----

type fakeDirector struct {
	storyboard *Storyboard
}

func (f *fakeDirector) GenerateScript(ctx context.Context, story, genre string) *Storyboard {
	if f.storyboard != nil {
		return f.storyboard
	}
	return fallbackStoryboard(story, genre)
}

type fakeAnimator struct {
	err     error
	gate    chan struct{} // 非 nil 时每次渲染先等待放行
	calls   int32
	observe func(sceneID string)
}

func (f *fakeAnimator) RenderScene(ctx context.Context, sceneID, description string, duration float64) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	if f.observe != nil {
		f.observe(sceneID)
	}
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/anim_" + sceneID + ".mp4", nil
}

type fakeVoice struct {
	err   error
	calls int32
}

func (f *fakeVoice) SynthesizeVoice(ctx context.Context, sceneID, text, language string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/voice_" + sceneID + ".mp3", nil
}

type fakeEditor struct {
	mu    sync.Mutex
	calls int
	clips [][]ClipInput
	err   error
}

func (f *fakeEditor) CompileVideo(ctx context.Context, projectID string, clips []ClipInput) (string, error) {
	f.mu.Lock()
	f.calls++
	f.clips = append(f.clips, clips)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/movie_" + projectID + ".mp4", nil
}

func threeSceneStoryboard() *Storyboard {
	// 故意乱序返回，验证流水线按 scene_number 而不是位置排序
	return &Storyboard{
		Title: "Test Movie",
		Scenes: []StoryboardShot{
			{SceneNumber: 2, Description: "second", Dialogue: "hello again", Duration: 4},
			{SceneNumber: 1, Description: "first", Dialogue: "hello", Duration: 3},
			{SceneNumber: 3, Description: "third", Dialogue: "", Duration: 0}, // duration 缺省 → 5s
		},
	}
}

func newTestPipeline(db *gorm.DB, director ScriptGenerator, animator SceneRenderer, voice VoiceSynthesizer, editor VideoCompiler) *Pipeline {
	return NewPipeline(db, director, animator, voice, editor)
}

func TestPipelineCompletesProject(t *testing.T) {
	db := newTestDB(t)
	projectID := createTestProject(t, db, "Hero", "A hero finds a key.", "adventure")

	editor := &fakeEditor{}
	p := newTestPipeline(db, &fakeDirector{storyboard: threeSceneStoryboard()}, &fakeAnimator{}, &fakeVoice{}, editor)
	p.StartProject(context.Background(), projectID)

	project, err := models.GetProjectByIDGorm(db, projectID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCompleted, project.Status)
	assert.Equal(t, 3, project.TotalScenes)
	assert.Equal(t, 3, project.CompletedScenes)
	assert.NotEmpty(t, project.VideoUrl)
	assert.Empty(t, project.ErrorMessage)

	scenes, err := models.GetScenesByProjectIDGorm(db, projectID)
	require.NoError(t, err)
	require.Len(t, scenes, 3)
	for i, s := range scenes {
		assert.Equal(t, i+1, s.SceneNumber)
		assert.Equal(t, models.SceneStatusCompleted, s.Status)
		assert.NotEmpty(t, s.AnimationPath)
	}
	// 无台词的分镜不产生配音
	assert.Empty(t, scenes[2].VoicePath)
	assert.NotEmpty(t, scenes[0].VoicePath)
	assert.NotEmpty(t, scenes[1].VoicePath)
	// duration 缺省
	assert.Equal(t, 5.0, scenes[2].Duration)

	// 合成阶段拿到的 clips 按 scene_number 升序
	require.Equal(t, 1, editor.calls)
	clips := editor.clips[0]
	require.Len(t, clips, 3)
	for i, clip := range clips {
		assert.Equal(t, i+1, clip.SceneNumber)
		assert.NotEmpty(t, clip.AnimationPath)
	}

	assert.Equal(t, 0, p.ActiveCount())
}

func TestPipelineRendererFailure(t *testing.T) {
	db := newTestDB(t)
	projectID := createTestProject(t, db, "Doomed", "A story.", "general")

	p := newTestPipeline(db,
		&fakeDirector{storyboard: threeSceneStoryboard()},
		&fakeAnimator{err: fmt.Errorf("render backend down")},
		&fakeVoice{}, &fakeEditor{})
	p.StartProject(context.Background(), projectID)

	project, err := models.GetProjectByIDGorm(db, projectID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusFailed, project.Status)
	assert.Contains(t, project.ErrorMessage, "render backend down")
	assert.Empty(t, project.VideoUrl)
	assert.Equal(t, 0, project.CompletedScenes)

	// 脚本阶段已落库的分镜保留，且没有任何一条到达 completed
	scenes, err := models.GetScenesByProjectIDGorm(db, projectID)
	require.NoError(t, err)
	require.Len(t, scenes, 3)
	for _, s := range scenes {
		assert.NotEqual(t, models.SceneStatusCompleted, s.Status)
	}

	assert.Equal(t, 0, p.ActiveCount())
}

func TestPipelineVoiceFaultNotFatal(t *testing.T) {
	db := newTestDB(t)
	projectID := createTestProject(t, db, "Mute", "A story.", "general")

	p := newTestPipeline(db,
		&fakeDirector{storyboard: threeSceneStoryboard()},
		&fakeAnimator{},
		&fakeVoice{err: fmt.Errorf("tts backend down")},
		&fakeEditor{})
	p.StartProject(context.Background(), projectID)

	project, err := models.GetProjectByIDGorm(db, projectID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCompleted, project.Status)

	scenes, err := models.GetScenesByProjectIDGorm(db, projectID)
	require.NoError(t, err)
	for _, s := range scenes {
		assert.Empty(t, s.VoicePath)
		assert.Equal(t, models.SceneStatusCompleted, s.Status)
	}
}

func TestPipelineFallbackStoryboard(t *testing.T) {
	db := newTestDB(t)
	projectID := createTestProject(t, db, "Garbled", "A short story.", "comedy")

	// storyboard 为 nil → fakeDirector 走降级路径
	p := newTestPipeline(db, &fakeDirector{}, &fakeAnimator{}, &fakeVoice{}, &fakeEditor{})
	p.StartProject(context.Background(), projectID)

	project, err := models.GetProjectByIDGorm(db, projectID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCompleted, project.Status)
	assert.Equal(t, 1, project.TotalScenes)
	assert.Equal(t, 1, project.CompletedScenes)
}

// 同一项目在执行中再次启动必须是空操作：渲染次数与分镜记录均不翻倍
func TestPipelineDuplicateStartNoOp(t *testing.T) {
	db := newTestDB(t)
	projectID := createTestProject(t, db, "Once", "A story.", "general")

	gate := make(chan struct{})
	animator := &fakeAnimator{gate: gate}
	p := newTestPipeline(db, &fakeDirector{storyboard: threeSceneStoryboard()}, animator, &fakeVoice{}, &fakeEditor{})

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			p.StartProject(context.Background(), projectID)
		}()
	}

	// 放行全部渲染调用
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(3), atomic.LoadInt32(&animator.calls))

	var sceneCount int64
	require.NoError(t, db.Model(&models.Scene{}).Where("project_id = ?", projectID).Count(&sceneCount).Error)
	assert.Equal(t, int64(3), sceneCount)

	project, err := models.GetProjectByIDGorm(db, projectID)
	require.NoError(t, err)
	assert.Equal(t, 3, project.CompletedScenes)
	assert.Equal(t, 3, project.TotalScenes)
}

// completed_scenes 在执行过程中的任何观测点都不超过 total_scenes
func TestPipelineProgressNeverExceedsTotal(t *testing.T) {
	db := newTestDB(t)
	projectID := createTestProject(t, db, "Bounded", "A story.", "general")

	animator := &fakeAnimator{
		observe: func(sceneID string) {
			project, err := models.GetProjectByIDGorm(db, projectID)
			if err != nil {
				return
			}
			assert.LessOrEqual(t, project.CompletedScenes, project.TotalScenes)
		},
	}
	p := newTestPipeline(db, &fakeDirector{storyboard: threeSceneStoryboard()}, animator, &fakeVoice{}, &fakeEditor{})
	p.StartProject(context.Background(), projectID)

	project, err := models.GetProjectByIDGorm(db, projectID)
	require.NoError(t, err)
	assert.LessOrEqual(t, project.CompletedScenes, project.TotalScenes)
}

// N 个项目并发执行，分镜记录互不串扰，单个失败不影响其他项目
func TestStartManyIndependentProjects(t *testing.T) {
	db := newTestDB(t)

	okID1 := createTestProject(t, db, "A", "Story A.", "general")
	okID2 := createTestProject(t, db, "B", "Story B.", "general")
	okID3 := createTestProject(t, db, "C", "Story C.", "general")

	animator := &fakeAnimator{}
	p := newTestPipeline(db, &fakeDirector{storyboard: threeSceneStoryboard()}, animator, &fakeVoice{}, &fakeEditor{})

	// 混入一个不存在的项目 ID，验证单个失败不拖垮同批其他项目
	missingID := uuid.NewString()
	p.StartMany(context.Background(), []string{okID1, okID2, okID3, missingID})

	for _, id := range []string{okID1, okID2, okID3} {
		project, err := models.GetProjectByIDGorm(db, id)
		require.NoError(t, err)
		assert.Equal(t, models.ProjectStatusCompleted, project.Status, "project %s", id)

		scenes, err := models.GetScenesByProjectIDGorm(db, id)
		require.NoError(t, err)
		require.Len(t, scenes, 3)
		for _, s := range scenes {
			assert.Equal(t, id, s.ProjectId)
		}
	}

	assert.Equal(t, 0, p.ActiveCount())
}

// 终态与非 pending 状态的项目不被重跑
func TestPipelineSkipsNonPending(t *testing.T) {
	db := newTestDB(t)

	for _, status := range []string{
		models.ProjectStatusCompleted,
		models.ProjectStatusFailed,
		models.ProjectStatusProcessing,
	} {
		project := models.Project{
			ID:         uuid.NewString(),
			Title:      "t",
			StoryInput: "s",
			Genre:      "general",
			Status:     status,
		}
		require.NoError(t, db.Create(&project).Error)

		animator := &fakeAnimator{}
		p := newTestPipeline(db, &fakeDirector{storyboard: threeSceneStoryboard()}, animator, &fakeVoice{}, &fakeEditor{})
		p.StartProject(context.Background(), project.ID)

		got, err := models.GetProjectByIDGorm(db, project.ID)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
		assert.Equal(t, int32(0), atomic.LoadInt32(&animator.calls))
	}
}

func TestPipelineProjectNotFound(t *testing.T) {
	db := newTestDB(t)

	p := newTestPipeline(db, &fakeDirector{}, &fakeAnimator{}, &fakeVoice{}, &fakeEditor{})
	p.StartProject(context.Background(), uuid.NewString())

	// 不崩溃，活跃标记已释放
	assert.Equal(t, 0, p.ActiveCount())
}

func TestPipelineCompileFailure(t *testing.T) {
	db := newTestDB(t)
	projectID := createTestProject(t, db, "NoCut", "A story.", "general")

	p := newTestPipeline(db,
		&fakeDirector{storyboard: threeSceneStoryboard()},
		&fakeAnimator{}, &fakeVoice{},
		&fakeEditor{err: fmt.Errorf("no video clips to compile")})
	p.StartProject(context.Background(), projectID)

	project, err := models.GetProjectByIDGorm(db, projectID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusFailed, project.Status)
	assert.Contains(t, project.ErrorMessage, "no video clips to compile")
	// 失败前已完成的分镜进度保留
	assert.Equal(t, 3, project.CompletedScenes)
}
