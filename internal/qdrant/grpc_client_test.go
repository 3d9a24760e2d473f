package qdrant

import (
	"context"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/tenantrag/internal/config"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
)

func TestClientConfig_ApplyDefaults(t *testing.T) {
	cfg := &ClientConfig{}
	cfg.ApplyDefaults()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, qdrant.Distance_Cosine, cfg.Distance)

	cfg = &ClientConfig{Host: "qdrant.example.com", Port: 6335}
	cfg.ApplyDefaults()
	assert.Equal(t, "qdrant.example.com", cfg.Host)
	assert.Equal(t, 6335, cfg.Port)
}

func TestConfigFrom(t *testing.T) {
	app := config.Default().VectorStore.Qdrant
	app.APIKey = config.Secret("k")

	cfg := ConfigFrom(app)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestClientConfig_Validate(t *testing.T) {
	valid := func() *ClientConfig {
		return &ClientConfig{Host: "localhost", Port: 6334, MaxMessageSize: 1024, Distance: qdrant.Distance_Cosine}
	}
	tests := []struct {
		name   string
		mutate func(*ClientConfig)
		errMsg string
	}{
		{"valid config", func(*ClientConfig) {}, ""},
		{"missing host", func(c *ClientConfig) { c.Host = "" }, "host is required"},
		{"invalid port - zero", func(c *ClientConfig) { c.Port = 0 }, "invalid port"},
		{"invalid port - too large", func(c *ClientConfig) { c.Port = 65536 }, "invalid port"},
		{"invalid max message size", func(c *ClientConfig) { c.MaxMessageSize = 0 }, "invalid max message size"},
		{"non-cosine distance", func(c *ClientConfig) { c.Distance = qdrant.Distance_Dot }, "Cosine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConvertToQdrantPoint(t *testing.T) {
	qp := convertToQdrantPoint(&Point{
		ID:     "550e8400-e29b-41d4-a716-446655440000",
		Vector: []float32{0.1, 0.2, 0.3},
		Payload: map[string]interface{}{
			"tenant_id":   "acme",
			"int_field":   42,
			"created_at":  int64(1700000000),
			"float_field": 3.14,
			"bool_field":  true,
			"valid_until": nil,
			"other":       struct{}{},
		},
	})

	require.NotNil(t, qp)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", qp.Id.GetUuid())
	assert.Len(t, qp.Payload, 7)
	assert.Equal(t, "acme", qp.Payload["tenant_id"].GetStringValue())
	assert.Equal(t, int64(42), qp.Payload["int_field"].GetIntegerValue())
	assert.Equal(t, int64(1700000000), qp.Payload["created_at"].GetIntegerValue())
	assert.Equal(t, 3.14, qp.Payload["float_field"].GetDoubleValue())
	assert.True(t, qp.Payload["bool_field"].GetBoolValue())
	assert.NotNil(t, qp.Payload["valid_until"].GetKind())
	assert.Contains(t, qp.Payload["other"].GetStringValue(), "{}")
}

func TestConvertToQdrantFilter(t *testing.T) {
	assert.Nil(t, convertToQdrantFilter(nil))

	qf := convertToQdrantFilter(&Filter{
		Must: []Condition{
			MatchKeyword("tenant_id", "acme"),
			MatchAnyKeyword("content_type", "faq", "policy"),
			MatchKeyword("language", "en"),
		},
	})
	require.NotNil(t, qf)
	require.Len(t, qf.Must, 3)
	assert.Empty(t, qf.Should)
	assert.Empty(t, qf.MustNot)

	tenant := qf.Must[0].GetField()
	assert.Equal(t, "tenant_id", tenant.Key)
	assert.Equal(t, "acme", tenant.Match.GetKeyword())

	types := qf.Must[1].GetField()
	assert.Equal(t, "content_type", types.Key)
	assert.Equal(t, []string{"faq", "policy"}, types.Match.GetKeywords().GetStrings())

	assert.Equal(t, "en", qf.Must[2].GetField().Match.GetKeyword())
}

func TestExtractPayload(t *testing.T) {
	assert.Nil(t, extractPayload(nil))

	got := extractPayload(map[string]*qdrant.Value{
		"string": {Kind: &qdrant.Value_StringValue{StringValue: "test"}},
		"int":    {Kind: &qdrant.Value_IntegerValue{IntegerValue: 42}},
		"float":  {Kind: &qdrant.Value_DoubleValue{DoubleValue: 3.14}},
		"bool":   {Kind: &qdrant.Value_BoolValue{BoolValue: true}},
	})
	assert.Equal(t, map[string]interface{}{
		"string": "test",
		"int":    int64(42),
		"float":  3.14,
		"bool":   true,
	}, got)
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error", assert.AnError, false},
		{"unavailable", status.Error(codes.Unavailable, "down"), true},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), true},
		{"aborted", status.Error(codes.Aborted, "conflict"), true},
		{"exhausted", status.Error(codes.ResourceExhausted, "busy"), true},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad"), false},
		{"not found", status.Error(codes.NotFound, "missing"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientError(tt.err))
		})
	}
}

func TestExtractPointID(t *testing.T) {
	assert.Equal(t, "", extractPointID(nil))
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000",
		extractPointID(qdrant.NewIDUUID("550e8400-e29b-41d4-a716-446655440000")))
	assert.Equal(t, "12345", extractPointID(qdrant.NewIDNum(12345)))
}

func TestExtractVectorOutput(t *testing.T) {
	assert.Nil(t, extractVectorOutput(nil))
	assert.Nil(t, extractVectorOutput(&qdrant.VectorsOutput{}))

	dense := &qdrant.VectorsOutput{
		VectorsOptions: &qdrant.VectorsOutput_Vector{
			Vector: &qdrant.VectorOutput{
				Vector: &qdrant.VectorOutput_Dense{
					Dense: &qdrant.DenseVector{Data: []float32{0.5, 0.5}},
				},
			},
		},
	}
	assert.Equal(t, []float32{0.5, 0.5}, extractVectorOutput(dense))
}

func TestRetryOperation_Logging(t *testing.T) {
	tests := []struct {
		name          string
		operation     func() error
		retryAttempts int
		wantErr       bool
		expectedLogs  []struct {
			level   zapcore.Level
			message string
		}
		unexpected []string
	}{
		{
			name:          "successful operation - no retries - no logs",
			operation:     func() error { return nil },
			retryAttempts: 3,
			unexpected:    []string{"retrying operation", "recovered"},
		},
		{
			name: "transient error then success - logs retry and recovery",
			operation: func() func() error {
				attempt := 0
				return func() error {
					attempt++
					if attempt == 1 {
						return status.Error(codes.Unavailable, "service unavailable")
					}
					return nil
				}
			}(),
			retryAttempts: 3,
			expectedLogs: []struct {
				level   zapcore.Level
				message string
			}{
				{level: zapcore.DebugLevel, message: "retrying operation after transient error"},
				{level: zapcore.InfoLevel, message: "operation recovered after retries"},
			},
		},
		{
			name: "all retries exhausted - logs final failure",
			operation: func() error {
				return status.Error(codes.Unavailable, "service unavailable")
			},
			retryAttempts: 2,
			wantErr:       true,
			expectedLogs: []struct {
				level   zapcore.Level
				message string
			}{
				{level: zapcore.DebugLevel, message: "retrying operation after transient error"},
				{level: zapcore.WarnLevel, message: "operation failed after all retries exhausted"},
			},
		},
		{
			name: "non-transient error - no retry logs",
			operation: func() error {
				return status.Error(codes.InvalidArgument, "bad request")
			},
			retryAttempts: 3,
			wantErr:       true,
			unexpected:    []string{"retrying operation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testLogger := logging.NewTestLogger()
			client := &GRPCClient{
				config: &ClientConfig{
					RetryAttempts: tt.retryAttempts,
					RetryBackoff:  time.Millisecond,
				},
				logger: testLogger.Logger,
			}

			err := client.retryOperation(context.Background(), tt.operation)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			for _, expected := range tt.expectedLogs {
				testLogger.AssertLogged(t, expected.level, expected.message)
			}
			for _, msg := range tt.unexpected {
				testLogger.AssertNotLogged(t, zapcore.DebugLevel, msg)
				testLogger.AssertNotLogged(t, zapcore.InfoLevel, msg)
			}
		})
	}
}

func TestNewGRPCClient_RequiresLogger(t *testing.T) {
	_, err := NewGRPCClient(DefaultClientConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger is required")
}

func TestDeleteByFilter_RequiresMust(t *testing.T) {
	c := &GRPCClient{config: DefaultClientConfig(), logger: logging.NewNop()}
	err := c.DeleteByFilter(context.Background(), "chunks", &Filter{})
	assert.Error(t, err)
	err = c.DeleteByFilter(context.Background(), "chunks", nil)
	assert.Error(t, err)
}
