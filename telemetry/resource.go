package telemetry

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// newResource 服务信息 + 自定义属性 + host/process
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	attrs = append(attrs, resourceAttributes(cfg.ResourceAttrs)...)

	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
	)
}

// resourceAttributes 嵌套 map 展平为 a.b.c，值中的 ${ENV} 会被展开
func resourceAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	flat := make(map[string]string)
	flatten(attrs, "", flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		result = append(result, attribute.String(k, os.ExpandEnv(flat[k])))
	}
	return result
}

func flatten(m map[string]interface{}, prefix string, out map[string]string) {
	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		switch v := value.(type) {
		case string:
			out[fullKey] = v
		case map[string]interface{}:
			flatten(v, fullKey, out)
		default:
			out[fullKey] = fmt.Sprintf("%v", v)
		}
	}
}
