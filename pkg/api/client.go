package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iniwex5/simprofile/pkg/logger"
	"github.com/iniwex5/simprofile/pkg/sim"
)

const (
	DefaultEndpoint = "https://api.onomondo.com/sims/profile"
	MaxCount        = 500 // 单次请求上限
)

var (
	ErrInvalidCount = errors.New("profile count must be positive")
	ErrPartial      = errors.New("fetch stopped early")
	ErrStatus       = errors.New("unexpected http status")
)

// Config API 配置
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Response 批量接口的响应体
type Response struct {
	Profiles []sim.EncryptedProfile `json:"profiles"`
	Count    int                    `json:"count"`
}

type request struct {
	Count int `json:"count"`
}

// Client 分页拉取加密记录，不做重试
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Pages 计算每次请求的数量
func Pages(count int) []int {
	var pages []int
	for count > 0 {
		n := min(count, MaxCount)
		pages = append(pages, n)
		count -= n
	}
	return pages
}

// Fetch 拉取 count 条记录
// 中途失败时返回已拉取的记录和包装了 ErrPartial 的错误；一条都没有时只返回错误
func (c *Client) Fetch(ctx context.Context, count int) ([]sim.EncryptedProfile, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	var profiles []sim.EncryptedProfile
	for i, n := range Pages(count) {
		logger.Debug("fetching profiles", logger.Int("page", i), logger.Int("count", n))
		page, err := c.fetchPage(ctx, n)
		if err != nil {
			logger.Error("an error occurred while retrieving profiles", logger.Err(err))
			if len(profiles) == 0 {
				return nil, err
			}
			return profiles, fmt.Errorf("%w after %d profiles: %w", ErrPartial, len(profiles), err)
		}
		profiles = append(profiles, page...)
	}

	logger.Info("got profiles", logger.Int("count", len(profiles)))
	return profiles, nil
}

func (c *Client) fetchPage(ctx context.Context, count int) ([]sim.EncryptedProfile, error) {
	body, err := json.Marshal(request{Count: count})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return r.Profiles, nil
}
