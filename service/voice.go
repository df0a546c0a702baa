package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"StoryAnim-server/config"
)

// Voice 配音协作者：调用外部 TTS 服务生成旁白音频。
// 文本为空返回空路径（不算错误）；后端失败返回合成故障，由流水线决定是否致命。
type Voice struct {
	apiURL     string
	outputDir  string
	httpClient *http.Client
}

func NewVoice(cfg *config.Config, outputDir string) (*Voice, error) {
	dir := filepath.Join(outputDir, "voices")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create voices dir: %v", err)
	}
	return &Voice{
		apiURL:     cfg.AI.VoiceAPI,
		outputDir:  dir,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (v *Voice) SynthesizeVoice(ctx context.Context, sceneID, text, language string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	// GET <voice_api>?text=...&lang=... 返回音频字节流
	q := url.Values{}
	q.Set("text", text)
	q.Set("lang", language)
	reqURL := v.apiURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create tts request failed: %v", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tts request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tts status: %d", resp.StatusCode)
	}

	outputPath := filepath.Join(v.outputDir, fmt.Sprintf("voice_%s.mp3", sceneID))
	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create voice file failed: %v", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("write voice file failed: %v", err)
	}
	return outputPath, nil
}
