package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/yourusername/immich-dedup/pkg/dedup"
	"github.com/yourusername/immich-dedup/pkg/immich"
)

// Runner plans and executes duplicate cleanup runs.
type Runner interface {
	Plan(ctx context.Context, opts dedup.Options) (*dedup.Plan, error)
	Run(ctx context.Context, opts dedup.Options) (*dedup.Report, error)
}

// Picker chooses a random photo of the named people.
type Picker interface {
	Pick(ctx context.Context, names []string) (immich.Asset, error)
}

// RegisterTools registers all tools with the MCP server
func RegisterTools(s *server.MCPServer, runner Runner, picker Picker) {
	registerPlanDuplicateCleanup(s, runner)
	registerDeleteDuplicates(s, runner)
	registerRandomPhotoInfo(s, picker)
}

// planDuplicateCleanup tool
func registerPlanDuplicateCleanup(s *server.MCPServer, runner Runner) {
	tool := mcp.Tool{
		Name:        "planDuplicateCleanup",
		Description: "List the duplicate assets a cleanup would delete, without deleting anything",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"checkManual": map[string]interface{}{
					"type":        "boolean",
					"description": "Also match assets by file size and original filename",
					"default":     false,
				},
			},
		},
	}

	s.AddTool(tool, planHandler(runner))
}

func planHandler(runner Runner) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params struct {
			CheckManual bool `json:"checkManual"`
		}
		if err := parseArguments(request, &params); err != nil {
			return nil, err
		}

		plan, err := runner.Plan(ctx, dedup.Options{CheckManual: params.CheckManual, DryRun: true})
		if err != nil {
			return nil, err
		}

		return makeMCPResult(map[string]interface{}{
			"success":         true,
			"duplicateGroups": plan.DuplicateGroups,
			"duplicateApiIds": plan.DuplicateAPIIDs,
			"manualChecked":   plan.ManualChecked,
			"manualIds":       plan.ManualIDs(),
			"ambiguousGroups": ambiguousGroups(plan),
			"ids":             plan.IDs,
			"count":           len(plan.IDs),
		})
	}
}

// deleteDuplicates tool
func registerDeleteDuplicates(s *server.MCPServer, runner Runner) {
	tool := mcp.Tool{
		Name:        "deleteDuplicates",
		Description: "Delete duplicate phone uploads, keeping the external library copy. Defaults to a dry run.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"checkManual": map[string]interface{}{
					"type":        "boolean",
					"description": "Also match assets by file size and original filename",
					"default":     false,
				},
				"dryRun": map[string]interface{}{
					"type":        "boolean",
					"description": "Only report what would be deleted",
					"default":     true,
				},
			},
		},
	}

	s.AddTool(tool, deleteHandler(runner))
}

func deleteHandler(runner Runner) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := struct {
			CheckManual bool `json:"checkManual"`
			DryRun      bool `json:"dryRun"`
		}{DryRun: true}
		if err := parseArguments(request, &params); err != nil {
			return nil, err
		}

		report, err := runner.Run(ctx, dedup.Options{CheckManual: params.CheckManual, DryRun: params.DryRun})
		if err != nil {
			if report == nil {
				return nil, err
			}
			// Assets already removed before the failure must still reach the caller
			return makeMCPError(map[string]interface{}{
				"success": false,
				"runId":   report.RunID,
				"error":   err.Error(),
				"planned": plannedIDs(report),
				"deleted": report.Deleted,
			})
		}

		return makeMCPResult(map[string]interface{}{
			"success":  true,
			"runId":    report.RunID,
			"dryRun":   report.DryRun,
			"planned":  report.Plan.IDs,
			"deleted":  report.Deleted,
			"duration": report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String(),
		})
	}
}

// randomPhotoInfo tool
func registerRandomPhotoInfo(s *server.MCPServer, picker Picker) {
	tool := mcp.Tool{
		Name:        "randomPhotoInfo",
		Description: "Pick a random photo showing all of the named people",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"names": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Names of people who must all appear in the photo",
				},
			},
			Required: []string{"names"},
		},
	}

	s.AddTool(tool, randomPhotoHandler(picker))
}

func randomPhotoHandler(picker Picker) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params struct {
			Names []string `json:"names"`
		}
		if err := parseArguments(request, &params); err != nil {
			return nil, err
		}

		asset, err := picker.Pick(ctx, params.Names)
		if err != nil {
			return nil, err
		}

		return makeMCPResult(map[string]interface{}{
			"success":          true,
			"id":               asset.ID,
			"originalFileName": asset.OriginalFileName,
			"originalPath":     asset.OriginalPath,
			"fileCreatedAt":    asset.FileCreatedAt,
		})
	}
}

func ambiguousGroups(plan *dedup.Plan) [][]string {
	if plan.Manual == nil {
		return nil
	}

	groups := make([][]string, 0, len(plan.Manual.Ambiguous))
	for _, a := range plan.Manual.Ambiguous {
		ids := make([]string, len(a.Tied))
		for i, asset := range a.Tied {
			ids[i] = asset.ID
		}
		groups = append(groups, ids)
	}
	return groups
}

func parseArguments(request mcp.CallToolRequest, params interface{}) error {
	argBytes, ok := request.Params.Arguments.([]byte)
	if !ok {
		argBytes, _ = json.Marshal(request.Params.Arguments)
	}
	if err := json.Unmarshal(argBytes, params); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func plannedIDs(report *dedup.Report) []string {
	if report.Plan == nil {
		return nil
	}
	return report.Plan.IDs
}

// makeMCPError returns data as a tool-level error result.
func makeMCPError(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultError(string(content)), nil
}

func makeMCPResult(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(content)), nil
}
