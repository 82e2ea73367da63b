package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer 以MCP工具的形式暴露查询接口
type MCPServer struct {
	mcp *server.MCPServer
	s   *WalkshedServer
}

func NewMCPServer(s *WalkshedServer, version string) *MCPServer {
	m := &MCPServer{s: s}
	m.mcp = server.NewMCPServer(
		"walkshed",
		version,
		server.WithToolCapabilities(false),
	)

	m.mcp.AddTool(mcp.NewTool("find_pois",
		mcp.WithDescription("Find amenities every person can reach on foot within their own time budget. "+
			"Returns each amenity with the walking seconds of every person."),
		mcp.WithString("people", mcp.Required(),
			mcp.Description(`JSON array of people, e.g. [{"name":"a","home":[lon,lat],"maxTimeMinutes":15}]`)),
	), m.findPOIs)

	m.mcp.AddTool(mcp.NewTool("routes_to",
		mcp.WithDescription("Shortest walking routes from every person's home to a point, as GeoJSON line strings."),
		mcp.WithString("people", mcp.Required(),
			mcp.Description(`JSON array of people, e.g. [{"name":"a","home":[lon,lat],"maxTimeMinutes":15}]`)),
		mcp.WithString("point", mcp.Required(), mcp.Description("Destination as a JSON [lon, lat] pair")),
	), m.routesTo)

	m.mcp.AddTool(mcp.NewTool("get_bounds",
		mcp.WithDescription("Bounding box of the loaded street network as [minLon, minLat, maxLon, maxLat]."),
	), m.getBounds)

	return m
}

func (m *MCPServer) ServeStdio() error {
	return server.ServeStdio(m.mcp)
}

func requireJSON(req mcp.CallToolRequest, key string, target any) error {
	raw, err := req.RequireString(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("%s is not valid JSON: %w", key, err)
	}
	return nil
}

func toolResultJSON(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (m *MCPServer) findPOIs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := &FindPOIsRequest{}
	if err := requireJSON(req, "people", &in.People); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := m.s.findPOIs(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResultJSON(out)
}

func (m *MCPServer) routesTo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := &RoutesToRequest{}
	if err := requireJSON(req, "people", &in.People); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := requireJSON(req, "point", &in.Point); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := m.s.routesTo(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResultJSON(out)
}

func (m *MCPServer) getBounds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := m.s.getBounds()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResultJSON(out)
}
