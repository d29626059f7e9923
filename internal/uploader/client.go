package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chunkvault/chunk-upload-service/internal/dto"
)

// Transport 调度器对服务端的抽象
// 三个操作分别对应会话初始化、分片提交和合并
type Transport interface {
	Init(ctx context.Context, filename string, totalSize int64, totalChunks int) (*dto.UploadInitResult, error)
	SendChunk(ctx context.Context, sessionID int64, index int, data []byte) error
	Finalize(ctx context.Context, sessionID int64) (*dto.UploadFinalizeResult, error)
}

// HTTPTransport Transport 的 HTTP 实现
// init 和 finalize 走 JSON，分片走 application/octet-stream 原始字节
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport 创建 HTTP 传输实例
// client 为 nil 时使用 60 秒超时的默认客户端
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// envelope 服务端统一响应格式
type envelope struct {
	Code    int             `json:"code"`
	Status  bool            `json:"status"`
	Message json.RawMessage `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// message 提取响应中的提示文本
func (e *envelope) message() string {
	if len(e.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}
	return string(e.Message)
}

// do 发送请求并解析统一响应格式
func (t *HTTPTransport) do(req *http.Request, out interface{}) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unexpected response (http %d): %w", resp.StatusCode, err)
	}

	if !env.Status {
		msg := env.message()
		if msg == "" {
			msg = "request failed"
		}
		return fmt.Errorf("server error %d: %s", env.Code, msg)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// Init 初始化或续传上传会话
func (t *HTTPTransport) Init(ctx context.Context, filename string, totalSize int64, totalChunks int) (*dto.UploadInitResult, error) {
	payload, err := json.Marshal(dto.UploadInitRequest{
		Filename:    filename,
		TotalSize:   totalSize,
		TotalChunks: totalChunks,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/upload/init", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result dto.UploadInitResult
	if err := t.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendChunk 提交单个分片的原始字节
func (t *HTTPTransport) SendChunk(ctx context.Context, sessionID int64, index int, data []byte) error {
	url := t.baseURL + "/api/upload/" + strconv.FormatInt(sessionID, 10) + "/chunk/" + strconv.Itoa(index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	return t.do(req, nil)
}

// Finalize 请求合并全部分片
func (t *HTTPTransport) Finalize(ctx context.Context, sessionID int64) (*dto.UploadFinalizeResult, error) {
	payload, err := json.Marshal(dto.UploadFinalizeRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/upload/finalize", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result dto.UploadFinalizeResult
	if err := t.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
