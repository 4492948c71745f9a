package mcpapi

import (
	"context"
	"fmt"

	"github.com/hylla/kanplan/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// typeOption describes the optional item type filter shared by several tools.
func typeOption() mcp.ToolOption {
	return mcp.WithString(
		"type",
		mcp.Description("Item type: task, epic, or subtask"),
		mcp.Enum("task", "epic", "subtask"),
	)
}

// registerItemTools registers list/get/save/delete item tools.
func registerItemTools(srv *mcpserver.MCPServer, items common.ItemService) {
	srv.AddTool(
		mcp.NewTool(
			"kanplan.list_items",
			mcp.WithDescription("List stored items, optionally of one type."),
			typeOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := items.ListItems(ctx, req.GetString("type", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"items": rows})
			if err != nil {
				return nil, fmt.Errorf("encode list_items result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanplan.get_item",
			mcp.WithDescription("Return one item by id and record the read in history."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
			typeOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireInt("id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			item, err := items.GetItem(ctx, req.GetString("type", ""), id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(item)
			if err != nil {
				return nil, fmt.Errorf("encode get_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanplan.save_item",
			mcp.WithDescription("Create an item when id is omitted, otherwise replace the item with that id."),
			mcp.WithString("type", mcp.Required(), mcp.Description("Item type: task, epic, or subtask"), mcp.Enum("task", "epic", "subtask")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Item name")),
			mcp.WithNumber("id", mcp.Description("Existing item id to replace")),
			mcp.WithString("description", mcp.Description("Item description")),
			mcp.WithString("status", mcp.Description("NEW, IN_PROGRESS, or DONE"), mcp.Enum("NEW", "IN_PROGRESS", "DONE")),
			mcp.WithString("start_time", mcp.Description("Window start, RFC3339")),
			mcp.WithString("duration", mcp.Description("Window duration such as 1h30m")),
			mcp.WithNumber("epic_id", mcp.Description("Parent epic id for subtasks")),
			mcp.WithString("epic_start_time", mcp.Description("Own epic window start, RFC3339")),
			mcp.WithString("epic_duration", mcp.Description("Own epic window duration")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var payload common.ItemPayload
			if err := req.BindArguments(&payload); err != nil {
				return invalidRequestToolResult(err), nil
			}
			saved, err := items.SaveItem(ctx, payload.Type, payload)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(saved)
			if err != nil {
				return nil, fmt.Errorf("encode save_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanplan.delete_item",
			mcp.WithDescription("Delete one item by id. Deleting an epic deletes its subtasks."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
			typeOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireInt("id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			if err := items.DeleteItem(ctx, req.GetString("type", ""), id); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"deleted": id})
			if err != nil {
				return nil, fmt.Errorf("encode delete_item result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanplan.delete_all_items",
			mcp.WithDescription("Delete every item and reset id allocation."),
			mcp.WithDestructiveHintAnnotation(true),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if err := items.DeleteAllItems(ctx); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"deleted": "all"})
			if err != nil {
				return nil, fmt.Errorf("encode delete_all_items result: %w", err)
			}
			return result, nil
		},
	)
}

// registerScheduleTools registers subtask, prioritized, and history read tools.
func registerScheduleTools(srv *mcpserver.MCPServer, items common.ItemService) {
	srv.AddTool(
		mcp.NewTool(
			"kanplan.list_subtasks",
			mcp.WithDescription("List the subtasks of one epic."),
			mcp.WithNumber("epic_id", mcp.Required(), mcp.Description("Epic id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			epicID, err := req.RequireInt("epic_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			rows, err := items.ListSubtasks(ctx, epicID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"items": rows})
			if err != nil {
				return nil, fmt.Errorf("encode list_subtasks result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanplan.prioritized",
			mcp.WithDescription("List scheduled items ordered by start time."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := items.Prioritized(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"items": rows})
			if err != nil {
				return nil, fmt.Errorf("encode prioritized result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kanplan.history",
			mcp.WithDescription("List recently viewed items, oldest view first."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := items.History(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"items": rows})
			if err != nil {
				return nil, fmt.Errorf("encode history result: %w", err)
			}
			return result, nil
		},
	)
}
