package test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/immich-dedup/pkg/config"
	"github.com/yourusername/immich-dedup/pkg/dedup"
	"github.com/yourusername/immich-dedup/pkg/frame"
	"github.com/yourusername/immich-dedup/pkg/immich"
	"github.com/yourusername/immich-dedup/pkg/tools"
)

// TestConfig holds smoke test settings for a live Immich server
type TestConfig struct {
	ImmichURL      string
	ImmichAPIKey   string
	TestPersonName string
}

// LoadTestConfig loads test configuration from config.yaml or environment.
// Smoke tests never delete anything.
func LoadTestConfig() (*TestConfig, bool) {
	configPaths := []string{"config.yaml", "../config.yaml"}
	for _, configPath := range configPaths {
		if _, err := os.Stat(configPath); err == nil {
			cfg, err := config.Load(configPath, nil)
			if err == nil {
				return &TestConfig{
					ImmichURL:      cfg.URL,
					ImmichAPIKey:   cfg.APIKey,
					TestPersonName: os.Getenv("TEST_PERSON_NAME"),
				}, true
			}
		}
	}

	url := os.Getenv("TEST_IMMICH_URL")
	apiKey := os.Getenv("TEST_IMMICH_API_KEY")

	if url == "" || apiKey == "" {
		return nil, false
	}

	return &TestConfig{
		ImmichURL:      url,
		ImmichAPIKey:   apiKey,
		TestPersonName: os.Getenv("TEST_PERSON_NAME"),
	}, true
}

func requireLiveServer(t *testing.T) *TestConfig {
	t.Helper()

	cfg, ok := LoadTestConfig()
	if !ok {
		t.Skip("Skipping smoke test: set TEST_IMMICH_URL and TEST_IMMICH_API_KEY or provide config.yaml")
	}
	return cfg
}

func newFinder(client *immich.Client) *dedup.Finder {
	return dedup.NewFinder(client, dedup.Settings{
		Classifier: dedup.Classifier{
			ExternalLibraryPrefix: "/volume1/photo/Photos",
			UploadPrefix:          "/usr/src/app/upload/upload/",
		},
		PageSize: immich.MaxPageSize,
	}, nil)
}

// callTool sends a tools/call request through the MCP server and decodes the text result
func callTool(t *testing.T, srv *server.MCPServer, toolName string, args map[string]interface{}) (map[string]interface{}, error) {
	t.Helper()

	req, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      "smoke-1",
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      toolName,
			"arguments": args,
		},
	})
	require.NoError(t, err)

	response := srv.HandleMessage(context.Background(), json.RawMessage(req))

	resp, ok := response.(mcp.JSONRPCResponse)
	if !ok {
		return nil, fmt.Errorf("RPC error: %v", response)
	}

	result, ok := resp.Result.(*mcp.CallToolResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", resp.Result)
	}
	require.NotEmpty(t, result.Content)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)

	if result.IsError {
		return nil, fmt.Errorf("tool returned error: %s", text.Text)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(text.Text), &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	return decoded, nil
}

func TestSmokePing(t *testing.T) {
	cfg := requireLiveServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := immich.NewClient(cfg.ImmichURL, cfg.ImmichAPIKey, 30*time.Second)
	require.NoError(t, client.Ping(ctx))
}

func TestSmokeDuplicates(t *testing.T) {
	cfg := requireLiveServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := immich.NewClient(cfg.ImmichURL, cfg.ImmichAPIKey, 30*time.Second)

	groups, err := client.GetDuplicates(ctx)
	require.NoError(t, err)
	t.Logf("Server reports %d duplicate groups", len(groups))

	for _, g := range groups {
		assert.NotEmpty(t, g.DuplicateID)
		assert.GreaterOrEqual(t, len(g.Assets), 2)
	}
}

func TestSmokeDryRun(t *testing.T) {
	cfg := requireLiveServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client := immich.NewClient(cfg.ImmichURL, cfg.ImmichAPIKey, 30*time.Second)
	finder := newFinder(client)

	report, err := finder.Run(ctx, dedup.Options{DryRun: true, CheckManual: os.Getenv("TEST_CHECK_MANUAL") != ""})
	require.NoError(t, err)
	require.NotNil(t, report.Plan)

	assert.True(t, report.DryRun)
	assert.Empty(t, report.Deleted)
	t.Logf("Dry run would delete %d assets", len(report.Plan.IDs))
}

func TestSmokeMCPTools(t *testing.T) {
	cfg := requireLiveServer(t)

	client := immich.NewClient(cfg.ImmichURL, cfg.ImmichAPIKey, 30*time.Second)

	mcpServer := server.NewMCPServer("smoke-test", "1.0.0")
	tools.RegisterTools(mcpServer, newFinder(client), frame.New(client, 5*time.Minute))

	t.Run("planDuplicateCleanup", func(t *testing.T) {
		result, err := callTool(t, mcpServer, "planDuplicateCleanup", map[string]interface{}{})
		require.NoError(t, err)
		assert.Contains(t, result, "ids")
	})

	t.Run("deleteDuplicates defaults to dry run", func(t *testing.T) {
		result, err := callTool(t, mcpServer, "deleteDuplicates", map[string]interface{}{})
		require.NoError(t, err)
		assert.Equal(t, true, result["dryRun"])
	})

	t.Run("randomPhotoInfo", func(t *testing.T) {
		if cfg.TestPersonName == "" {
			t.Skip("TEST_PERSON_NAME not set")
		}

		result, err := callTool(t, mcpServer, "randomPhotoInfo", map[string]interface{}{
			"names": []string{cfg.TestPersonName},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result["id"])
	})
}
