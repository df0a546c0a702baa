package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Editor 合成协作者：把各分镜的动画与配音合成为一部成片。
// 音频比视频长时用 tpad 延长画面；缺 animation_path 的分镜在这里被剔除。
type Editor struct {
	outputDir string
}

func NewEditor(outputDir string) (*Editor, error) {
	dir := filepath.Join(outputDir, "final")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create final dir: %v", err)
	}
	return &Editor{outputDir: dir}, nil
}

func (e *Editor) CompileVideo(ctx context.Context, projectID string, clips []ClipInput) (string, error) {
	usable := usableClips(clips)
	if len(usable) == 0 {
		return "", fmt.Errorf("no video clips to compile")
	}

	workDir := filepath.Join(e.outputDir, "work_"+projectID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", fmt.Errorf("create work dir: %v", err)
	}
	defer os.RemoveAll(workDir)

	// 逐镜生成中间段：有配音则混入音轨，失败退回无声段
	var segments []string
	for i, clip := range usable {
		segment := filepath.Join(workDir, fmt.Sprintf("segment_%03d.mp4", i))
		if clip.VoicePath != "" && fileExists(clip.VoicePath) {
			if err := e.buildVoicedSegment(ctx, clip, segment); err != nil {
				log.Printf("[Editor] 分镜 %d 音轨合成失败（改用无声段）: %v", clip.SceneNumber, err)
				if err := e.buildSilentSegment(ctx, clip.AnimationPath, segment); err != nil {
					return "", fmt.Errorf("segment build failed: %v", err)
				}
			}
		} else {
			if err := e.buildSilentSegment(ctx, clip.AnimationPath, segment); err != nil {
				return "", fmt.Errorf("segment build failed: %v", err)
			}
		}
		segments = append(segments, segment)
	}

	// concat demuxer 拼接全部分段
	listFile := filepath.Join(workDir, "concat.txt")
	var lines []string
	for _, seg := range segments {
		lines = append(lines, fmt.Sprintf("file '%s'", seg))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return "", fmt.Errorf("write concat list: %v", err)
	}

	outputPath := filepath.Join(e.outputDir, fmt.Sprintf("movie_%s.mp4", projectID))
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-preset", "ultrafast",
		"-b:v", "500k",
		"-r", "15",
		outputPath,
	}
	if err := runFFmpeg(ctx, args); err != nil {
		return "", fmt.Errorf("could not compile movie: %v", err)
	}
	return outputPath, nil
}

// buildVoicedSegment 视频 + 配音；配音更长时克隆末帧延长画面
func (e *Editor) buildVoicedSegment(ctx context.Context, clip ClipInput, outputPath string) error {
	videoDur, err := probeDuration(ctx, clip.AnimationPath)
	if err != nil {
		return fmt.Errorf("probe video: %v", err)
	}
	audioDur, err := probeDuration(ctx, clip.VoicePath)
	if err != nil {
		return fmt.Errorf("probe audio: %v", err)
	}

	args := []string{
		"-y",
		"-i", clip.AnimationPath,
		"-i", clip.VoicePath,
	}
	if audioDur > videoDur {
		extra := audioDur - videoDur
		args = append(args, "-vf", fmt.Sprintf("tpad=stop_mode=clone:stop_duration=%.2f", extra))
	}
	args = append(args,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-preset", "ultrafast",
		outputPath,
	)
	return runFFmpeg(ctx, args)
}

// buildSilentSegment 统一转码，保证所有分段编码参数一致便于 concat
func (e *Editor) buildSilentSegment(ctx context.Context, animationPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", animationPath,
		"-c:v", "libx264",
		"-an",
		"-preset", "ultrafast",
		outputPath,
	}
	return runFFmpeg(ctx, args)
}

// usableClips 过滤掉没有可播放动画文件的分镜，并按 scene_number 排序
func usableClips(clips []ClipInput) []ClipInput {
	var usable []ClipInput
	for _, clip := range clips {
		if clip.AnimationPath == "" || !fileExists(clip.AnimationPath) {
			continue
		}
		usable = append(usable, clip)
	}
	sort.Slice(usable, func(i, j int) bool {
		return usable[i].SceneNumber < usable[j].SceneNumber
	})
	return usable
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// probeDuration 用 ffprobe 读取媒体时长（秒）
func probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %v", err)
	}
	return parseProbeDuration(string(out))
}

func parseProbeDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration in ffprobe output")
	}
	dur, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %v", s, err)
	}
	return dur, nil
}
