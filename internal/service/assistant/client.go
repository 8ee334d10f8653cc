// Package assistant — 外部语言模型服务 (Ollama) 的 HTTP 客户端。
// internal/service/assistant/client.go
package assistant

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/z1pangding/DGSS-Data-Viewer-AI-PlatformX/internal/core/port"
)

// Client 通过 Ollama 的三个 JSON 端点完成探活、模型列举与流式生成。
type Client struct {
	baseURL string
	// probe 用于探活，超时压得很短，避免服务离线时拖慢启动
	probe *http.Client
	// api 用于普通 API 调用
	api *http.Client
	// stream 用于生成请求，不设总超时 (生成可能很长)，靠 ctx 取消
	stream *http.Client
}

// 断言 *Client 实现 port.Assistant，编译期校验
var _ port.Assistant = (*Client)(nil)

// New 创建 Ollama 客户端。baseURL 形如 http://localhost:11434。
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		probe:   &http.Client{Timeout: 2 * time.Second},
		api:     &http.Client{Timeout: 5 * time.Second},
		stream:  &http.Client{},
	}
}

// Available 探测服务是否在线。
func (c *Client) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Models 返回已安装模型的名称列表。
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.api.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrAssistantDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: /api/tags 返回 %d", port.ErrAssistantDown, resp.StatusCode)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("解析模型列表失败: %w", err)
	}

	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// generateChunk 是 /api/generate 流式响应的一行。
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate 发起流式生成，把模型产出的 token 原样单向转发到 out。
// 除底层传输自身的流控外不做任何背压处理；out 若实现 http.Flusher
// 则逐 token 冲刷，前端可以边生成边渲染。
func (c *Client) Generate(ctx context.Context, model, prompt string, out io.Writer) error {
	body, err := json.Marshal(map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", port.ErrAssistantDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("Ollama 生成请求失败 (%d): %s", resp.StatusCode, string(raw))
	}

	flusher, _ := out.(http.Flusher)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Response != "" {
			if _, err := io.WriteString(out, chunk.Response); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if chunk.Done {
			break
		}
	}
	return scanner.Err()
}
