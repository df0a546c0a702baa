package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Animator 分镜渲染协作者：用 ffmpeg 生成占位动画（纯色背景 + 文字说明）。
// 带字幕渲染失败时降级为纯色片段，两级都失败才算渲染故障。
type Animator struct {
	outputDir string
}

func NewAnimator(outputDir string) (*Animator, error) {
	dir := filepath.Join(outputDir, "animations")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create animations dir: %v", err)
	}
	return &Animator{outputDir: dir}, nil
}

func (a *Animator) RenderScene(ctx context.Context, sceneID, description string, duration float64) (string, error) {
	outputPath := filepath.Join(a.outputDir, fmt.Sprintf("scene_%s.mp4", sceneID))

	if err := a.renderWithText(ctx, outputPath, description, duration); err != nil {
		log.Printf("[Animator] 带文字渲染失败（降级为纯色片段）: %v", err)
		if err := a.renderPlain(ctx, outputPath, duration); err != nil {
			return "", fmt.Errorf("could not create animation: %v", err)
		}
	}
	return outputPath, nil
}

// renderWithText 纯色背景叠加场景描述文字
func (a *Animator) renderWithText(ctx context.Context, outputPath, description string, duration float64) error {
	desc := description
	if len(desc) > 100 {
		desc = desc[:100] + "..."
	}
	// drawtext 中的引号和冒号需要转义
	desc = strings.NewReplacer(`'`, `\'`, `:`, `\:`, `%`, `\%`).Replace(desc)

	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=0x323264:s=854x480:d=%.2f", duration),
		"-vf", fmt.Sprintf("drawtext=text='%s':fontcolor=white:fontsize=24:x=(w-text_w)/2:y=(h-text_h)/2", desc),
		"-r", "15",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		outputPath,
	}
	return runFFmpeg(ctx, args)
}

// renderPlain 仅纯色背景，不依赖字体
func (a *Animator) renderPlain(ctx context.Context, outputPath string, duration float64) error {
	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=0x1e1e50:s=854x480:d=%.2f", duration),
		"-r", "15",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		outputPath,
	}
	return runFFmpeg(ctx, args)
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(out)
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return fmt.Errorf("ffmpeg failed: %v: %s", err, msg)
	}
	return nil
}
