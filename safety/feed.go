package safety

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/fleetmaint/navigation/navierr"
	"github.com/redis/go-redis/v9"
)

// 安全数据来源
type Loader interface {
	Load(ctx context.Context) ([]SafetyDataPoint, error)
}

// 备用数据缓存
type RecordCache interface {
	SaveRecords(ctx context.Context, records []SafetyDataPoint) error
	LoadRecords(ctx context.Context) ([]SafetyDataPoint, error)
}

var ErrCacheMiss = errors.New("safety record cache is empty")

// HTTP JSON接口
type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewAPIClient(baseURL, apiKey string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type apiResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

func (c *APIClient) Load(ctx context.Context) ([]SafetyDataPoint, error) {
	if c.apiKey == "" {
		return nil, navierr.New(navierr.CodeMissingAPIKey, "safety feed %s", c.baseURL)
	}
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if apiResp.Error != "" {
		return nil, fmt.Errorf("API error: %s", apiResp.Error)
	}
	return decodeRecords(apiResp.Result)
}

// 逐条解码，格式错误的记录被跳过
func decodeRecords(raw json.RawMessage) ([]SafetyDataPoint, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	records := make([]SafetyDataPoint, 0, len(items))
	for i, item := range items {
		var d SafetyDataPoint
		if err := json.Unmarshal(item, &d); err != nil {
			log.Warnf("skip malformed safety record #%d: %v", i, err)
			continue
		}
		records = append(records, d)
	}
	return records, nil
}

// 本地JSON文件，内容为记录数组
type FileLoader struct {
	Path string
}

func (f FileLoader) Load(context.Context) ([]SafetyDataPoint, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read safety file: %w", err)
	}
	return decodeRecords(data)
}

type RedisRecordCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisRecordCache(client *redis.Client, key string, ttl time.Duration) *RedisRecordCache {
	return &RedisRecordCache{client: client, key: key, ttl: ttl}
}

func (c *RedisRecordCache) SaveRecords(ctx context.Context, records []SafetyDataPoint) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.client.Set(ctx, c.key, data, c.ttl).Err()
}

func (c *RedisRecordCache) LoadRecords(ctx context.Context) ([]SafetyDataPoint, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return decodeRecords(data)
}

// 先读主数据源，成功后刷新备用缓存
// 主数据源失败时回退到备用缓存一次，两者都失败返回FEED_UNAVAILABLE
func LoadRecords(ctx context.Context, primary Loader, backup RecordCache) ([]SafetyDataPoint, error) {
	records, err := primary.Load(ctx)
	if err == nil {
		if backup != nil {
			if err := backup.SaveRecords(ctx, records); err != nil {
				log.Warnf("refresh safety backup failed: %v", err)
			}
		}
		return records, nil
	}
	if navierr.CodeOf(err) == navierr.CodeMissingAPIKey {
		return nil, err
	}
	log.Warnf("safety feed failed, fallback to backup: %v", err)
	if backup == nil {
		return nil, navierr.Wrap(navierr.CodeFeedUnavailable, err)
	}
	records, backupErr := backup.LoadRecords(ctx)
	if backupErr != nil {
		return nil, navierr.Wrap(navierr.CodeFeedUnavailable, errors.Join(err, backupErr))
	}
	log.Infof("loaded %d safety records from backup", len(records))
	return records, nil
}
