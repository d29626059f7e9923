// End-to-end smoke test against a running service:
// init a session, upload chunks, finalize, verify the digest matches.
// 针对运行中的服务做端到端冒烟：初始化会话、上传分片、合并并校验摘要。
//
// Usage: go run scripts/test_upload.go
package main

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	baseURL   = "http://127.0.0.1:9000"
	chunkSize = 256 * 1024
	fileSize  = chunkSize*2 + 1234 // 3 chunks, last one partial
)

type envelope struct {
	Code    int             `json:"code"`
	Status  bool            `json:"status"`
	Message json.RawMessage `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	payload := make([]byte, fileSize)
	if _, err := rand.Read(payload); err != nil {
		log.Fatal("rand:", err)
	}
	sum := sha256.Sum256(payload)
	wantDigest := hex.EncodeToString(sum[:])

	totalChunks := (fileSize + chunkSize - 1) / chunkSize
	filename := fmt.Sprintf("smoke-%d.bin", time.Now().Unix())

	// 1. Init session
	var initResult struct {
		SessionID       int64 `json:"sessionId"`
		Resumed         bool  `json:"resumed"`
		ReceivedIndices []int `json:"receivedIndices"`
	}
	postJSON("/api/upload/init", map[string]any{
		"filename":    filename,
		"totalSize":   fileSize,
		"totalChunks": totalChunks,
	}, &initResult)
	fmt.Printf("session %d (resumed=%v, received=%d)\n",
		initResult.SessionID, initResult.Resumed, len(initResult.ReceivedIndices))

	// 2. Upload chunks
	for i := 0; i < totalChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > fileSize {
			end = fileSize
		}
		url := fmt.Sprintf("%s/api/upload/%d/chunk/%d", baseURL, initResult.SessionID, i)
		resp, err := http.Post(url, "application/octet-stream", bytes.NewReader(payload[start:end]))
		if err != nil {
			log.Fatalf("chunk %d: %v", i, err)
		}
		decode(resp, nil)
		fmt.Printf("chunk %d ok (%d bytes)\n", i, end-start)
	}

	// 3. Finalize twice, digests must match and equal the local hash
	var first, second struct {
		Digest  string   `json:"digest"`
		Entries []string `json:"entries"`
	}
	postJSON("/api/upload/finalize", map[string]any{"sessionId": initResult.SessionID}, &first)
	postJSON("/api/upload/finalize", map[string]any{"sessionId": initResult.SessionID}, &second)

	if first.Digest != wantDigest {
		log.Fatalf("digest mismatch: got %s want %s", first.Digest, wantDigest)
	}
	if first.Digest != second.Digest {
		log.Fatalf("repeat finalize returned different digest: %s vs %s", first.Digest, second.Digest)
	}

	fmt.Println("digest ok:", first.Digest)
	fmt.Println("PASS")
}

func postJSON(path string, body any, out any) {
	buf, _ := json.Marshal(body)
	resp, err := http.Post(baseURL+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	decode(resp, out)
}

func decode(resp *http.Response, out any) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal("read body:", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Fatalf("bad response: %s", raw)
	}
	if !env.Status {
		log.Fatalf("server error %d: %s", env.Code, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			log.Fatal("decode data:", err)
		}
	}
}
