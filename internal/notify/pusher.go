package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// Pusher 带签名头的 Webhook 推送器
type Pusher struct {
	Client  *http.Client
	APIKey  string
	Secret  string
	Retries int
	Backoff []time.Duration
}

// NewPusher 创建推送器；client 为 nil 时使用 5 秒超时的默认客户端
func NewPusher(client *http.Client, apiKey, secret string) *Pusher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Pusher{
		Client:  client,
		APIKey:  apiKey,
		Secret:  secret,
		Retries: 3,
		Backoff: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, time.Second},
	}
}

// SendJSON 推送一条 JSON 事件，自动附加签名头。
// 仅对网络错误与 5xx 重试；每次尝试重建请求体，避免首次发送耗尽 reader。
func (p *Pusher) SendJSON(ctx context.Context, endpoint string, payload interface{}) (int, []byte, error) {
	if p == nil || p.Client == nil {
		return 0, nil, errors.New("nil pusher")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return 0, nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	ts := time.Now().Unix()
	nonce := fmt.Sprintf("%08x", rand.Uint32())
	canonical := buildCanonical(http.MethodPost, u.Path, ts, nonce, hashHex(body))
	sig := SignHMAC(p.Secret, canonical)

	var respBody []byte
	var code int
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", p.APIKey)
		req.Header.Set("X-Signature", sig)
		req.Header.Set("X-Timestamp", fmt.Sprintf("%d", ts))
		req.Header.Set("X-Nonce", nonce)

		resp, err := p.Client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			code = resp.StatusCode
			rb, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			respBody = rb
			if code >= 200 && code < 300 {
				return code, respBody, nil
			}
			// 4xx 是接收端判定，不重试
			if code < 500 {
				return code, respBody, nil
			}
		}
		if attempt == p.Retries {
			break
		}
		backoff := p.Backoff[minInt(attempt, len(p.Backoff)-1)]
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if lastErr != nil {
		return 0, nil, lastErr
	}
	return code, respBody, fmt.Errorf("http %d", code)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
