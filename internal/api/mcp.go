package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/arivoli/neer/internal/district"
	"github.com/arivoli/neer/internal/narrative"
	"github.com/arivoli/neer/internal/policy"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Dataset    *district.Dataset
	Narratives *narrative.Service
	Ingest     func(title, crop, content, source string) (string, error) // optional; nil disables add_advisory
}

// NewMCPServer creates an MCP server exposing the district dataset and
// narrative generation as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"neer",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("neer — Tamil Nadu groundwater policy data, crop transition recommendations, and narrative generation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_districts",
			mcp.WithDescription("List all districts in the groundwater dataset."),
		),
		mcpListDistricts(deps),
	)

	s.AddTool(
		mcp.NewTool("district_brief",
			mcp.WithDescription("Return the full data row for one district, plus comparable districts and eligible government schemes."),
			mcp.WithString("district", mcp.Description("District name, e.g. Coimbatore"), mcp.Required()),
		),
		mcpDistrictBrief(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_narrative",
			mcp.WithDescription("Generate (or recall from cache) the policy brief narrative for one district."),
			mcp.WithString("district", mcp.Description("District name"), mcp.Required()),
		),
		mcpGenerateNarrative(deps),
	)

	s.AddTool(
		mcp.NewTool("add_advisory",
			mcp.WithDescription("Store a department advisory or circular extract for use in future dossier prompts."),
			mcp.WithString("title", mcp.Description("Advisory title")),
			mcp.WithString("crop", mcp.Description("Crop the advisory applies to")),
			mcp.WithString("content", mcp.Description("Advisory text"), mcp.Required()),
		),
		mcpAddAdvisory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"districts://summary",
			"District Summary",
			mcp.WithResourceDescription("All districts with urgency tier and recommended crop, as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSummary(deps),
	)

	return s
}

func mcpListDistricts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(deps.Dataset.Names())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal districts: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpDistrictBrief(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("district")
		if err != nil {
			return mcpError("district is required"), nil
		}

		rec, ok := deps.Dataset.Get(name)
		if !ok {
			return mcpError(fmt.Sprintf("district %q not found", name)), nil
		}

		b, err := json.Marshal(map[string]any{
			"district":    rec,
			"comparables": deps.Dataset.Comparables(name),
			"schemes":     policy.SchemesForDistrict(name),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal district: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGenerateNarrative(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("district")
		if err != nil {
			return mcpError("district is required"), nil
		}

		rec, ok := deps.Dataset.Get(name)
		if !ok {
			return mcpError(fmt.Sprintf("district %q not found", name)), nil
		}

		result, err := deps.Narratives.Narrative(ctx, narrative.NarrativeRequest{
			Key:      name,
			Record:   rec,
			Fallback: rec.FallbackNarrative(),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("narrative generation failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("[%s] %s", result.Source, result.Text)), nil
	}
}

func mcpAddAdvisory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Ingest == nil {
			return mcpError("advisory storage not available"), nil
		}

		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		title := req.GetString("title", "")
		crop := req.GetString("crop", "")

		id, err := deps.Ingest(title, crop, content, "mcp")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to store advisory: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Stored advisory %s", id)), nil
	}
}

func mcpResourceSummary(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type districtSummary struct {
			District        string `json:"district"`
			Tier            int    `json:"tier"`
			RecommendedCrop string `json:"recommended_crop"`
		}

		names := deps.Dataset.Names()
		summaries := make([]districtSummary, 0, len(names))
		for _, name := range names {
			rec, ok := deps.Dataset.Get(name)
			if !ok {
				continue
			}
			tier, _ := rec.Int("Tier")
			crop, _ := rec.String("Recommended_Crop")
			summaries = append(summaries, districtSummary{
				District:        name,
				Tier:            tier,
				RecommendedCrop: crop,
			})
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summaries: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
