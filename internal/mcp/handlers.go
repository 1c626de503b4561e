package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/grove/internal/config"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/ops"
	"github.com/hpungsan/grove/internal/rules"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	c      *ops.Coordinator
	cfg    *config.Config
	logger *slog.Logger
	sync   func() error
}

// NewHandlers creates a new Handlers instance. sync, when non-nil, runs after
// every successful state-changing call (the CLI host saves its session file).
func NewHandlers(c *ops.Coordinator, cfg *config.Config, logger *slog.Logger, sync func() error) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{c: c, cfg: cfg, logger: logger, sync: sync}
}

// Request types for each tool

// GroupRef addresses a group in an optional view.
type GroupRef struct {
	ID   string `json:"id"`
	View string `json:"view,omitempty"`
}

// ListRequest represents the arguments for group_list.
type ListRequest struct {
	View   string `json:"view,omitempty"`
	Search string `json:"search,omitempty"`
}

// ArchiveRequest represents the arguments for group_archive.
type ArchiveRequest struct {
	ID        string `json:"id"`
	CloseTabs *bool  `json:"close_tabs,omitempty"`
}

// RestoreRequest represents the arguments for group_restore.
type RestoreRequest struct {
	ID     string `json:"id"`
	Reopen bool   `json:"reopen,omitempty"`
}

// SetCategoryRequest represents the arguments for group_set_category.
type SetCategoryRequest struct {
	ID       string `json:"id"`
	View     string `json:"view,omitempty"`
	Category string `json:"category"`
}

// AddCategoryRequest represents the arguments for group_add_category.
type AddCategoryRequest struct {
	Category string `json:"category"`
}

// MoveTabsRequest represents the arguments for group_move_tabs.
type MoveTabsRequest struct {
	TabIDs          []int  `json:"tab_ids"`
	SourceID        string `json:"source_id,omitempty"`
	TargetID        string `json:"target_id"`
	Copy            bool   `json:"copy,omitempty"`
	MergeDuplicates bool   `json:"merge_duplicates,omitempty"`
}

// MoveTabRequest represents the arguments for group_move_tab.
type MoveTabRequest struct {
	TabID    int    `json:"tab_id"`
	SourceID string `json:"source_id,omitempty"`
	TargetID string `json:"target_id"`
}

// CreateGroupRequest represents the arguments for group_create.
type CreateGroupRequest struct {
	Title string `json:"title,omitempty"`
	Color string `json:"color,omitempty"`
}

// ImportMarkdownRequest represents the arguments for group_import_markdown.
type ImportMarkdownRequest struct {
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	Title   string `json:"title,omitempty"`
}

// ExportLinksRequest represents the arguments for group_export_links.
type ExportLinksRequest struct {
	ID     string `json:"id"`
	View   string `json:"view,omitempty"`
	Format string `json:"format,omitempty"`
}

// RuleRequest represents the arguments for rule_add and rule_update.
type RuleRequest struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Pattern string `json:"pattern"`
	Group   string `json:"group"`
}

// RuleMoveRequest represents the arguments for rule_move.
type RuleMoveRequest struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// ScopeRequest represents the arguments for rule_scope and tabs_classify.
type ScopeRequest struct {
	Scope string `json:"scope,omitempty"`
}

// RulesFileRequest represents the arguments for rule_import and rule_export.
type RulesFileRequest struct {
	Path   string `json:"path,omitempty"`
	Append bool   `json:"append,omitempty"`
}

// GetResult is the group_get response.
type GetResult struct {
	View  ops.View       `json:"view"`
	Group *ops.GroupView `json:"group"`
}

// Handler implementations

// HandleGroupList handles the group_list tool call.
func (h *Handlers) HandleGroupList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	view, err := ops.ParseView(input.View)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.c.List(ctx, ops.ListInput{View: view, Search: input.Search})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGroupGet handles the group_get tool call.
func (h *Handlers) HandleGroupGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, view, err := decodeRef(req)
	if err != nil {
		return errorResult(err), nil
	}

	g, found, err := h.c.Get(ctx, view, group.ID(ref.ID))
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(GetResult{View: found, Group: g})
}

// HandleGroupRefresh handles the group_refresh tool call.
func (h *Handlers) HandleGroupRefresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changed(h.c.Refresh(ctx))
}

// HandleGroupArchive handles the group_archive tool call.
func (h *Handlers) HandleGroupArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ArchiveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.Archive(ctx, ops.ArchiveInput{ID: group.ID(input.ID), CloseTabs: input.CloseTabs}))
}

// HandleGroupRestore handles the group_restore tool call.
func (h *Handlers) HandleGroupRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RestoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.Restore(ctx, ops.RestoreInput{ID: group.ID(input.ID), Reopen: input.Reopen}))
}

// HandleGroupDelete handles the group_delete tool call.
func (h *Handlers) HandleGroupDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, view, err := decodeRef(req)
	if err != nil {
		return errorResult(err), nil
	}
	return h.changed(h.c.Delete(ctx, ops.DeleteInput{View: view, ID: group.ID(ref.ID)}))
}

// HandleGroupLock handles the group_lock tool call.
func (h *Handlers) HandleGroupLock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, view, err := decodeRef(req)
	if err != nil {
		return errorResult(err), nil
	}
	return h.changed(h.c.ToggleLock(ctx, ops.ToggleInput{View: view, ID: group.ID(ref.ID)}))
}

// HandleGroupStar handles the group_star tool call.
func (h *Handlers) HandleGroupStar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, view, err := decodeRef(req)
	if err != nil {
		return errorResult(err), nil
	}
	return h.changed(h.c.ToggleStar(ctx, ops.ToggleInput{View: view, ID: group.ID(ref.ID)}))
}

// HandleGroupSetCategory handles the group_set_category tool call.
func (h *Handlers) HandleGroupSetCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetCategoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	view, err := ops.ParseView(input.View)
	if err != nil {
		return errorResult(err), nil
	}
	return h.changed(h.c.SetCategory(ctx, ops.SetCategoryInput{View: view, ID: group.ID(input.ID), Category: input.Category}))
}

// HandleGroupAddCategory handles the group_add_category tool call.
func (h *Handlers) HandleGroupAddCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddCategoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.AddCategory(ctx, input.Category))
}

// HandleGroupMoveTabs handles the group_move_tabs tool call.
func (h *Handlers) HandleGroupMoveTabs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MoveTabsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.MoveTabs(ctx, ops.MoveTabsInput{
		TabIDs:          input.TabIDs,
		SourceID:        group.ID(input.SourceID),
		TargetID:        group.ID(input.TargetID),
		Copy:            input.Copy,
		MergeDuplicates: input.MergeDuplicates,
	}))
}

// HandleGroupMoveTab handles the group_move_tab tool call.
func (h *Handlers) HandleGroupMoveTab(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MoveTabRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.MoveTab(ctx, ops.MoveTabInput{
		TabID:    input.TabID,
		SourceID: group.ID(input.SourceID),
		TargetID: group.ID(input.TargetID),
	}))
}

// HandleGroupDedupe handles the group_dedupe tool call.
func (h *Handlers) HandleGroupDedupe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, view, err := decodeRef(req)
	if err != nil {
		return errorResult(err), nil
	}
	return h.changed(h.c.Dedupe(ctx, ops.DedupeInput{View: view, ID: group.ID(ref.ID)}))
}

// HandleGroupOpen handles the group_open tool call.
func (h *Handlers) HandleGroupOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, view, err := decodeRef(req)
	if err != nil {
		return errorResult(err), nil
	}
	return h.changed(h.c.Open(ctx, ops.OpenInput{View: view, ID: group.ID(ref.ID)}))
}

// HandleGroupCreate handles the group_create tool call.
func (h *Handlers) HandleGroupCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateGroupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.CreateGroup(ctx, ops.CreateGroupInput{Title: input.Title, Color: input.Color}))
}

// HandleGroupImportClosed handles the group_import_closed tool call.
func (h *Handlers) HandleGroupImportClosed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changed(h.c.ImportClosed(ctx))
}

// HandleGroupImportMarkdown handles the group_import_markdown tool call.
func (h *Handlers) HandleGroupImportMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportMarkdownRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.ImportMarkdown(ctx, ops.ImportMarkdownInput{
		Path:    input.Path,
		Content: input.Content,
		Title:   input.Title,
	}))
}

// HandleGroupExportLinks handles the group_export_links tool call.
func (h *Handlers) HandleGroupExportLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportLinksRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	view, err := ops.ParseView(input.View)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.c.ExportLinks(ctx, ops.ExportLinksInput{View: view, ID: group.ID(input.ID), Format: input.Format})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleWindowMerge handles the window_merge tool call.
func (h *Handlers) HandleWindowMerge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changed(h.c.MergeWindows(ctx))
}

// HandleRuleList handles the rule_list tool call.
func (h *Handlers) HandleRuleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.c.ListRules(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRuleAdd handles the rule_add tool call.
func (h *Handlers) HandleRuleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.AddRule(ctx, ops.RuleInput{Type: input.Type, Pattern: input.Pattern, GroupName: input.Group}))
}

// HandleRuleUpdate handles the rule_update tool call.
func (h *Handlers) HandleRuleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.UpdateRule(ctx, input.ID, ops.RuleInput{Type: input.Type, Pattern: input.Pattern, GroupName: input.Group}))
}

// HandleRuleDelete handles the rule_delete tool call.
func (h *Handlers) HandleRuleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.DeleteRule(ctx, input.ID))
}

// HandleRuleMove handles the rule_move tool call.
func (h *Handlers) HandleRuleMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleMoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.MoveRule(ctx, input.ID, input.Position))
}

// HandleRuleScope handles the rule_scope tool call.
func (h *Handlers) HandleRuleScope(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScopeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.SetScope(ctx, input.Scope))
}

// HandleRuleImport handles the rule_import tool call.
func (h *Handlers) HandleRuleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RulesFileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return h.changed(h.c.ImportRules(ctx, ops.ImportRulesInput{Path: h.rulesPath(input.Path), Append: input.Append}))
}

// HandleRuleExport handles the rule_export tool call.
func (h *Handlers) HandleRuleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RulesFileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.c.ExportRules(ctx, h.rulesPath(input.Path))
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTabsClassify handles the tabs_classify tool call.
func (h *Handlers) HandleTabsClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScopeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var in ops.RunClassifyInput
	if strings.TrimSpace(input.Scope) != "" {
		scope, err := rules.ParseScope(input.Scope)
		if err != nil {
			return errorResult(errors.NewInvalidRequest(err.Error())), nil
		}
		in.Scope = &scope
	}
	return h.changed(h.c.Classify(ctx, in))
}

// HandleTabsGroupByDomain handles the tabs_group_by_domain tool call.
func (h *Handlers) HandleTabsGroupByDomain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changed(h.c.GroupByDomain(ctx))
}

func decodeRef(req mcp.CallToolRequest) (GroupRef, ops.View, error) {
	ref, err := decode[GroupRef](req)
	if err != nil {
		return GroupRef{}, "", errors.NewInvalidRequest(err.Error())
	}
	view, err := ops.ParseView(ref.View)
	if err != nil {
		return GroupRef{}, "", err
	}
	return ref, view, nil
}

func (h *Handlers) rulesPath(p string) string {
	if strings.TrimSpace(p) != "" {
		return p
	}
	return h.cfg.RulesFile
}

// Result helpers

// changed reports the result of a state-changing call, running sync first.
func (h *Handlers) changed(data any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	if h.sync != nil {
		if err := h.sync(); err != nil {
			h.logger.Error("sync after tool call failed", "error", err)
			return errorResult(errors.NewInternal(err)), nil
		}
	}
	return successResult(data)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var groveErr *errors.GroveError
	if stderrors.As(err, &groveErr) {
		msg := groveErr.Message
		// Keep wrapper context such as "rules[2]: ".
		if prefix := strings.TrimSuffix(err.Error(), groveErr.Error()); prefix != err.Error() {
			msg = prefix + msg
		}
		if groveErr.Code == errors.ErrInternal {
			msg = "an internal error occurred"
		}
		errorObj := map[string]any{
			"code":    groveErr.Code,
			"message": msg,
			"status":  groveErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if groveErr.Code != errors.ErrInternal && groveErr.Details != nil {
			errorObj["details"] = groveErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
