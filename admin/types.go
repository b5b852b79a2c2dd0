package admin

import (
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/limiter"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// AcquireRequest 申请令牌
type AcquireRequest struct {
	Resource string `json:"resource" example:"/auth.AuthService/Login"`
	Tokens   int64  `json:"tokens" example:"1"`
	// Wait true 时在资源的 wait_timeout 内等待
	Wait bool `json:"wait"`
}

func (r *AcquireRequest) Validate() error {
	if r.Tokens == 0 {
		r.Tokens = 1
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Resource, validation.Required, validation.Length(1, 512)),
		validation.Field(&r.Tokens, validation.Min(int64(1))),
	)
}

type AcquireResponse struct {
	Resource  string `json:"resource"`
	Granted   bool   `json:"granted"`
	Available int64  `json:"available"`
}

// ResourceQuery 查询参数 ?resource=
type ResourceQuery struct {
	Resource string `form:"resource" json:"resource" example:"GET:/api/orders"`
}

func (q *ResourceQuery) Validate() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.Resource, validation.Required, validation.Length(1, 512)),
	)
}

type AvailableResponse struct {
	Resource  string `json:"resource"`
	Available int64  `json:"available"`
}

type ResetResponse struct {
	Resource string `json:"resource"`
	Reset    bool   `json:"reset"`
}

// ConfigResponse 当前生效的限流配置
type ConfigResponse struct {
	Enabled   bool                    `json:"enabled"`
	StoreType string                  `json:"store_type"`
	Default   ResourceView            `json:"default"`
	Resources map[string]ResourceView `json:"resources"`
}

type ResourceView struct {
	Bandwidths  []BandwidthView `json:"bandwidths"`
	WaitTimeout string          `json:"wait_timeout"`
}

type BandwidthView struct {
	Capacity   int64  `json:"capacity,omitempty"`
	Period     string `json:"period"`
	Guaranteed bool   `json:"guaranteed,omitempty"`
	Warmup     string `json:"warmup,omitempty"`
}

type ErrorsResponse struct {
	Errors []ErrorCode `json:"errors"`
}

// ErrorCode 已注册的错误码
type ErrorCode struct {
	Code       int    `json:"code"`
	Module     string `json:"module"`
	Key        string `json:"key"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status"`
}

func newResourceView(rc limiter.ResourceConfig) ResourceView {
	view := ResourceView{
		Bandwidths:  make([]BandwidthView, 0, len(rc.Bandwidths)),
		WaitTimeout: rc.WaitTimeout.String(),
	}
	for _, bc := range rc.Bandwidths {
		bv := BandwidthView{
			Capacity:   bc.Capacity,
			Period:     bc.Period.String(),
			Guaranteed: bc.Guaranteed,
		}
		if bc.Warmup != nil {
			bv.Capacity = 0
			bv.Warmup = formatWarmup(bc.Warmup.Cold, bc.Warmup.Hot, bc.Warmup.Period)
		}
		view.Bandwidths = append(view.Bandwidths, bv)
	}
	return view
}

func formatWarmup(cold, hot int64, period time.Duration) string {
	return fmt.Sprintf("%d->%d over %s", cold, hot, period)
}
