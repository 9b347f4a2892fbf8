package livestatus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/config"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Lookup 查询一辆车当前在定位服务中的状态
type Lookup interface {
	GetLiveStatus(ctx context.Context, vehicle int32) (domain.TrackingStatus, error)
}

// HTTPLookup 通过 GET {baseURL}/vehicles/{n}/live-status 查询定位服务
type HTTPLookup struct {
	baseURL string
	client  *http.Client
}

func NewHTTPLookup(cfg *config.Config) *HTTPLookup {
	timeout := time.Duration(cfg.Tracking.RequestTimeout) * time.Second
	client := &http.Client{Timeout: timeout}

	// 配置了客户端凭据时，由 oauth2 负责获取和刷新访问令牌
	if cfg.Tracking.ClientID != "" && cfg.Tracking.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.Tracking.ClientID,
			ClientSecret: cfg.Tracking.ClientSecret,
			TokenURL:     cfg.Tracking.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
		client = cc.Client(ctx)
		client.Timeout = timeout
	}

	return &HTTPLookup{
		baseURL: strings.TrimRight(cfg.Tracking.BaseURL, "/"),
		client:  client,
	}
}

func (l *HTTPLookup) GetLiveStatus(ctx context.Context, vehicle int32) (domain.TrackingStatus, error) {
	url := fmt.Sprintf("%s/vehicles/%d/live-status", l.baseURL, vehicle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("定位服务返回 %d", resp.StatusCode)
	}

	var body struct {
		Status domain.TrackingStatus `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("无法解析定位服务响应: %w", err)
	}
	if body.Status == "" {
		return domain.TrackingStatusUnknown, nil
	}

	return domain.TrackingStatus(strings.ToUpper(string(body.Status))), nil
}
