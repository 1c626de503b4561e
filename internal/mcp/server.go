package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/grove/internal/config"
	"github.com/hpungsan/grove/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"group_list": {
		def:     groupListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupList },
	},
	"group_get": {
		def:     groupGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupGet },
	},
	"group_refresh": {
		def:     groupRefreshToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupRefresh },
	},
	"group_archive": {
		def:     groupArchiveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupArchive },
	},
	"group_restore": {
		def:     groupRestoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupRestore },
	},
	"group_delete": {
		def:     groupDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupDelete },
	},
	"group_lock": {
		def:     groupLockToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupLock },
	},
	"group_star": {
		def:     groupStarToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupStar },
	},
	"group_set_category": {
		def:     groupSetCategoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupSetCategory },
	},
	"group_add_category": {
		def:     groupAddCategoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupAddCategory },
	},
	"group_move_tabs": {
		def:     groupMoveTabsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupMoveTabs },
	},
	"group_move_tab": {
		def:     groupMoveTabToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupMoveTab },
	},
	"group_dedupe": {
		def:     groupDedupeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupDedupe },
	},
	"group_open": {
		def:     groupOpenToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupOpen },
	},
	"group_create": {
		def:     groupCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupCreate },
	},
	"group_import_closed": {
		def:     groupImportClosedToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupImportClosed },
	},
	"group_import_markdown": {
		def:     groupImportMarkdownToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupImportMarkdown },
	},
	"group_export_links": {
		def:     groupExportLinksToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupExportLinks },
	},
	"window_merge": {
		def:     windowMergeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWindowMerge },
	},
	"rule_list": {
		def:     ruleListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleList },
	},
	"rule_add": {
		def:     ruleAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleAdd },
	},
	"rule_update": {
		def:     ruleUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleUpdate },
	},
	"rule_delete": {
		def:     ruleDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleDelete },
	},
	"rule_move": {
		def:     ruleMoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleMove },
	},
	"rule_scope": {
		def:     ruleScopeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleScope },
	},
	"rule_import": {
		def:     ruleImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleImport },
	},
	"rule_export": {
		def:     ruleExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleExport },
	},
	"tabs_classify": {
		def:     tabsClassifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTabsClassify },
	},
	"tabs_group_by_domain": {
		def:     tabsGroupByDomainToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTabsGroupByDomain },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with Grove tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
// sync, when non-nil, runs after every tool call that changed state.
func NewServer(c *ops.Coordinator, cfg *config.Config, logger *slog.Logger, sync func() error, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"grove",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(c, cfg, logger, sync)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(c *ops.Coordinator, cfg *config.Config, logger *slog.Logger, sync func() error, version string) error {
	s := NewServer(c, cfg, logger, sync, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
