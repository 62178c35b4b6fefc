package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/httpclient"
	"github.com/kadirpekel/argus/pkg/observability"
)

func newHTTPClient(cfg *config.LLMProviderConfig, parser httpclient.RateLimitHeaderParser) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
	}
	if parser != nil {
		opts = append(opts, httpclient.WithHeaderParser(parser))
	}
	return httpclient.New(opts...)
}

// startSpan opens the per-completion span shared by all providers. The
// returned finish func records token counts and the outcome on both the
// span and the global metrics recorder; call it exactly once.
func startSpan(ctx context.Context, provider, model string, structured bool) (context.Context, func(inputTokens, outputTokens int, err error)) {
	startTime := time.Now()

	tracer := observability.GetTracer("argus.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, model),
			attribute.String("provider", provider),
			attribute.Bool("structured", structured),
		),
	)

	finish := func(inputTokens, outputTokens int, err error) {
		defer span.End()
		duration := time.Since(startTime)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int(observability.AttrLLMTokensInput, inputTokens),
				attribute.Int(observability.AttrLLMTokensOutput, outputTokens),
			)
			span.SetStatus(codes.Ok, "success")
		}

		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordLLMCall(ctx, model, duration, inputTokens, outputTokens, err)
		}
	}

	return ctx, finish
}

// schemaInstruction renders the schema-following prompt used by providers
// without a native schema channel.
func schemaInstruction(schema map[string]interface{}) string {
	if schema == nil {
		return ""
	}

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return ""
	}

	return fmt.Sprintf(`You must respond with valid JSON matching this exact schema:

%s

Important:
- Output ONLY valid JSON, no other text
- All required fields must be present
- Follow the exact structure specified
- Use correct data types for each field`, string(schemaJSON))
}

// detectImageMediaType sniffs an image MIME type from the leading bytes.
// Screenshots from the driver are PNG, but seeded or cached images can be
// anything, so the signature check covers the common formats.
func detectImageMediaType(data []byte) string {
	if len(data) == 0 {
		return "image/png"
	}

	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}

	if len(data) >= 4 {
		// PNG: 89 50 4E 47
		if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
			return "image/png"
		}
		// JPEG: FF D8 FF
		if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
			return "image/jpeg"
		}
		// WebP: RIFF....WEBP
		if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
			data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
			return "image/webp"
		}
	}

	return "image/png"
}
