package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"StoryAnim-server/config"
)

const directorSystemPrompt = `You are a professional film director specializing in 3D animated movies. Your job is to break down stories into detailed scenes with camera directions, character actions, and dialogue. You MUST respond with ONLY valid JSON.`

// Director 脚本生成协作者：调用 chat-completions 接口把故事拆为分镜脚本。
// 任何解析失败都降级为单分镜结果，从不向流水线抛错。
type Director struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewDirector(cfg *config.Config) *Director {
	return &Director{
		apiURL:     cfg.AI.ScriptAPI,
		apiKey:     cfg.AI.ScriptKey,
		model:      cfg.AI.ScriptModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (d *Director) GenerateScript(ctx context.Context, story, genre string) *Storyboard {
	prompt := fmt.Sprintf(`Analyze this story and break it down into a detailed scene-by-scene breakdown for a 3D animated movie.
Genre: %s

Story:
%s

Provide a JSON response with the following structure:
{
    "title": "Movie title",
    "genre": "%s",
    "scenes": [
        {
            "scene_number": 1,
            "description": "Detailed visual description of what happens in this scene",
            "dialogue": "Character dialogue or narration (if any)",
            "camera_direction": "Camera angles and movements",
            "duration": 5
        }
    ]
}

Keep each scene between 3-8 seconds. Make scenes simple and clear for 3D animation.`, genre, story, genre)

	content, err := d.requestCompletion(ctx, prompt)
	if err != nil {
		log.Printf("[Director] 脚本接口调用失败（使用降级分镜）: %v", err)
		return fallbackStoryboard(story, genre)
	}

	sb, err := parseStoryboard(content)
	if err != nil {
		log.Printf("[Director] 脚本解析失败（使用降级分镜）: %v", err)
		return fallbackStoryboard(story, genre)
	}
	if sb.Genre == "" {
		sb.Genre = genre
	}
	return sb
}

func (d *Director) requestCompletion(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "system", Content: directorSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request failed: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("script api status: %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response failed: %v", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("script api error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("response missing choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// parseStoryboard 剥掉可能的 markdown 代码块围栏再解析 JSON
func parseStoryboard(content string) (*Storyboard, error) {
	text := strings.TrimSpace(content)
	if strings.Contains(text, "```json") {
		parts := strings.SplitN(text, "```json", 2)
		text = strings.SplitN(parts[1], "```", 2)[0]
	} else if strings.Contains(text, "```") {
		segs := strings.Split(text, "```")
		if len(segs) >= 2 {
			text = segs[1]
		}
	}
	text = strings.TrimSpace(text)

	var sb Storyboard
	if err := json.Unmarshal([]byte(text), &sb); err != nil {
		return nil, err
	}
	if len(sb.Scenes) == 0 {
		return nil, fmt.Errorf("storyboard has no scenes")
	}
	return &sb, nil
}

// fallbackStoryboard 降级结果：用故事开头构造单个分镜
func fallbackStoryboard(story, genre string) *Storyboard {
	desc := story
	if len(desc) > 200 {
		desc = desc[:200]
	}
	return &Storyboard{
		Title: "Untitled Animation",
		Genre: genre,
		Scenes: []StoryboardShot{
			{
				SceneNumber:     1,
				Description:     desc,
				Dialogue:        "This is a simple animated story.",
				CameraDirection: "Wide shot, slow pan",
				Duration:        5,
			},
		},
	}
}
