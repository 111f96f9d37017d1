package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrMissingCredential marks the backend's "API key not configured" failure
// so the UI can direct the user to the settings view instead of showing a
// generic error.
var ErrMissingCredential = errors.New("backend API key not configured")

// ErrNoFiles is returned when an upload is attempted with an empty file
// selection; no request is made.
var ErrNoFiles = errors.New("no files selected")

const missingCredentialSignature = "API key not configured"

// Pipeline identifies which corpus an upload feeds. The semantic pipeline
// scopes per-chat retrieval; the lexical one is corpus-wide.
type Pipeline int

const (
	PipelineSemantic Pipeline = iota
	PipelineLexical
)

func (p Pipeline) String() string {
	if p == PipelineLexical {
		return "bm25"
	}
	return "rag"
}

func (p Pipeline) uploadPath() string {
	if p == PipelineLexical {
		return "/bm25/upload"
	}
	return "/rag/upload"
}

type UploadResult struct {
	FileNames []string `json:"file_names"`
	Indexed   int      `json:"indexed"`
}

type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

type BackendClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewBackendClient(baseURL string, timeout time.Duration, log *zap.Logger) *BackendClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &BackendClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type configRequest struct {
	APIKey    string `json:"api_key"`
	ModelName string `json:"model_name"`
}

type askRequest struct {
	ChatID    int64    `json:"chat_id"`
	Query     string   `json:"query"`
	FileNames []string `json:"file_names"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []string `json:"results"`
}

// errorBody matches the backend's error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

func (c *BackendClient) SaveConfig(ctx context.Context, apiKey, modelName string) error {
	return c.postJSON(ctx, "/config", configRequest{APIKey: apiKey, ModelName: modelName}, nil)
}

func (c *BackendClient) ListChats(ctx context.Context) ([]ChatSession, error) {
	var chats []ChatSession
	if err := c.getJSON(ctx, "/chats", &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (c *BackendClient) CreateChat(ctx context.Context) (ChatSession, error) {
	var chat ChatSession
	if err := c.postJSON(ctx, "/chats", nil, &chat); err != nil {
		return ChatSession{}, err
	}
	return chat, nil
}

func (c *BackendClient) DeleteChat(ctx context.Context, chatID int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/chats/%d", c.baseURL, chatID), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkStatus(resp)
}

func (c *BackendClient) LoadMessages(ctx context.Context, chatID int64) ([]Message, error) {
	var msgs []Message
	if err := c.getJSON(ctx, fmt.Sprintf("/chats/%d/messages", chatID), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Ask sends a scoped question and returns the generated answer. fileNames
// is the scope snapshot taken at submit time.
func (c *BackendClient) Ask(ctx context.Context, chatID int64, query string, fileNames []string) (string, error) {
	if fileNames == nil {
		fileNames = []string{}
	}
	var out askResponse
	req := askRequest{ChatID: chatID, Query: query, FileNames: fileNames}
	if err := c.postJSON(ctx, "/rag/ask", req, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// AskStream is the streaming variant of Ask. The backend answers with SSE
// events carrying {"content": ...} chunks and a terminal {"done": true} or
// {"error": ...}. onChunk is called once per content chunk.
func (c *BackendClient) AskStream(ctx context.Context, chatID int64, query string, fileNames []string, onChunk func(string) error) error {
	if fileNames == nil {
		fileNames = []string{}
	}
	body, err := json.Marshal(askRequest{ChatID: chatID, Query: query, FileNames: fileNames})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rag/ask-stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	type streamEvent struct {
		Content string `json:"content"`
		Done    bool   `json:"done"`
		Error   string `json:"error"`
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		if ev.Error != "" {
			return fmt.Errorf("stream failed: %s", ev.Error)
		}
		if ev.Content != "" {
			if err := onChunk(ev.Content); err != nil {
				return err
			}
		}
		if ev.Done {
			return nil
		}
	}
	return scanner.Err()
}

// Upload submits local files to the given pipeline's corpus as one
// multipart request. The semantic pipeline's result carries the accepted
// file names for merging into the retrieval scope; the lexical result is
// informational only.
func (c *BackendClient) Upload(ctx context.Context, p Pipeline, paths []string) (UploadResult, error) {
	if len(paths) == 0 {
		return UploadResult{}, ErrNoFiles
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, path := range paths {
		if err := addFilePart(writer, path); err != nil {
			return UploadResult{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+p.uploadPath(), &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return UploadResult{}, err
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	c.log.Info("uploaded files",
		zap.Stringer("pipeline", p),
		zap.Int("indexed", result.Indexed),
		zap.Strings("file_names", result.FileNames))
	return result, nil
}

func addFilePart(writer *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (c *BackendClient) SearchBM25(ctx context.Context, query string, topK int) ([]string, error) {
	var out searchResponse
	if err := c.postJSON(ctx, "/bm25/search", searchRequest{Query: query, TopK: topK}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *BackendClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *BackendClient) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doJSON(req, out)
}

func (c *BackendClient) doJSON(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("url", req.URL.String()), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// checkStatus converts a non-2xx response into an *APIError, promoting the
// backend's missing-credential message to ErrMissingCredential.
func (c *BackendClient) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := ""
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); err == nil {
		var body errorBody
		if json.Unmarshal(data, &body) == nil && body.Detail != "" {
			detail = body.Detail
		} else {
			detail = strings.TrimSpace(string(data))
		}
	}

	c.log.Warn("backend error",
		zap.String("url", resp.Request.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.String("detail", detail))

	if strings.Contains(detail, missingCredentialSignature) {
		return fmt.Errorf("%w: %s", ErrMissingCredential, detail)
	}
	return &APIError{StatusCode: resp.StatusCode, Detail: detail}
}
