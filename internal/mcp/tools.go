package mcp

import "github.com/mark3labs/mcp-go/mcp"

var viewEnum = mcp.Enum("active", "closed")

func groupIDParam() mcp.ToolOption {
	return mcp.WithString("id", mcp.Required(), mcp.Description("Group id: a browser group id for active groups, or a history entry id"))
}

func viewParam() mcp.ToolOption {
	return mcp.WithString("view", viewEnum, mcp.Description("Collection to look in. Omit to search active then closed"))
}

var groupListToolDef = mcp.NewTool("group_list",
	mcp.WithDescription("List tab groups of one view with categories and counts. Search filters by title or category, case-insensitive."),
	mcp.WithString("view", viewEnum, mcp.Description("active (default) or closed")),
	mcp.WithString("search", mcp.Description("Substring of title or category")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var groupGetToolDef = mcp.NewTool("group_get",
	mcp.WithDescription("Fetch one group with its tabs, signature, lock and star state."),
	groupIDParam(),
	viewParam(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var groupRefreshToolDef = mcp.NewTool("group_refresh",
	mcp.WithDescription("Re-read open groups from the browser and record any new ones in history."),
)

var groupArchiveToolDef = mcp.NewTool("group_archive",
	mcp.WithDescription("Move an active group into history under the Recycle category. Locked groups are refused."),
	groupIDParam(),
	mcp.WithBoolean("close_tabs", mcp.Description("Close the group's tabs afterwards. Defaults to archive_closes_tabs from config")),
)

var groupRestoreToolDef = mcp.NewTool("group_restore",
	mcp.WithDescription("Move a history entry back to the active list, optionally reopening its tabs."),
	groupIDParam(),
	mcp.WithBoolean("reopen", mcp.Description("Recreate the group's tabs in the browser")),
)

var groupDeleteToolDef = mcp.NewTool("group_delete",
	mcp.WithDescription("Delete a group. Active groups have their tabs closed; history entries are dropped. Locked groups are refused."),
	groupIDParam(),
	viewParam(),
	mcp.WithDestructiveHintAnnotation(true),
)

var groupLockToolDef = mcp.NewTool("group_lock",
	mcp.WithDescription("Toggle the lock on a group. Locked groups cannot be archived, deleted, recategorized, deduplicated or used as a move source."),
	groupIDParam(),
	viewParam(),
)

var groupStarToolDef = mcp.NewTool("group_star",
	mcp.WithDescription("Toggle the star on a group."),
	groupIDParam(),
	viewParam(),
)

var groupSetCategoryToolDef = mcp.NewTool("group_set_category",
	mcp.WithDescription("Assign a category to a group. Every group with the same content takes the category, now and in future sessions."),
	groupIDParam(),
	viewParam(),
	mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
)

var groupAddCategoryToolDef = mcp.NewTool("group_add_category",
	mcp.WithDescription("Add a category name to the known list."),
	mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
)

var groupMoveTabsToolDef = mcp.NewTool("group_move_tabs",
	mcp.WithDescription("Move or copy browser tabs into an open group, optionally skipping URLs the target already has."),
	mcp.WithArray("tab_ids", mcp.Required(), mcp.Items(map[string]any{"type": "number"}), mcp.Description("Browser tab ids to move")),
	mcp.WithString("source_id", mcp.Description("Group the tabs come from; locked sources are refused")),
	mcp.WithString("target_id", mcp.Required(), mcp.Description("Active group to move into")),
	mcp.WithBoolean("copy", mcp.Description("Open copies instead of moving the originals")),
	mcp.WithBoolean("merge_duplicates", mcp.Description("Skip tabs whose URL the target already has or that repeat within the selection")),
)

var groupMoveTabToolDef = mcp.NewTool("group_move_tab",
	mcp.WithDescription("Move one browser tab into another open group, across windows if needed."),
	mcp.WithNumber("tab_id", mcp.Required(), mcp.Description("Browser tab id")),
	mcp.WithString("source_id", mcp.Description("Group the tab comes from")),
	mcp.WithString("target_id", mcp.Required(), mcp.Description("Active group to move into")),
)

var groupDedupeToolDef = mcp.NewTool("group_dedupe",
	mcp.WithDescription("Remove repeated tabs from a group, keeping the first of each URL."),
	groupIDParam(),
	viewParam(),
)

var groupOpenToolDef = mcp.NewTool("group_open",
	mcp.WithDescription("Focus an open group, or reopen a history entry in the browser."),
	groupIDParam(),
	viewParam(),
)

var groupCreateToolDef = mcp.NewTool("group_create",
	mcp.WithDescription("Open a new tab in a new group."),
	mcp.WithString("title", mcp.Description("Group title (default \"New tab group\")")),
	mcp.WithString("color", mcp.Enum("grey", "blue", "red", "yellow", "green", "pink", "purple", "cyan", "orange"), mcp.Description("Group color (default blue)")),
)

var groupImportClosedToolDef = mcp.NewTool("group_import_closed",
	mcp.WithDescription("Add the browser's recently closed windows and tabs to history."),
)

var groupImportMarkdownToolDef = mcp.NewTool("group_import_markdown",
	mcp.WithDescription("Add a history entry from the links in a markdown document."),
	mcp.WithString("path", mcp.Description("Markdown file to read")),
	mcp.WithString("content", mcp.Description("Markdown text; takes precedence over path")),
	mcp.WithString("title", mcp.Description("Group title when the document has no heading")),
)

var groupExportLinksToolDef = mcp.NewTool("group_export_links",
	mcp.WithDescription("Render a group's links as plain URLs, a markdown list, or JSON."),
	groupIDParam(),
	viewParam(),
	mcp.WithString("format", mcp.Enum("urls", "markdown", "json"), mcp.Description("Output format (default urls)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var windowMergeToolDef = mcp.NewTool("window_merge",
	mcp.WithDescription("Move every other window's tabs and groups into the current window."),
)

var ruleListToolDef = mcp.NewTool("rule_list",
	mcp.WithDescription("List classification rules in priority order, with the classification scope."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var ruleAddToolDef = mcp.NewTool("rule_add",
	mcp.WithDescription("Append a classification rule. Rules with the same type and pattern are refused."),
	mcp.WithString("type", mcp.Enum("domain", "keyword", "regex"), mcp.Description("Match type (default domain)")),
	mcp.WithString("pattern", mcp.Required(), mcp.Description("Domain, keyword, or regular expression (optionally /.../flags)")),
	mcp.WithString("group", mcp.Required(), mcp.Description("Group name for matching tabs")),
)

var ruleUpdateToolDef = mcp.NewTool("rule_update",
	mcp.WithDescription("Replace a rule's type, pattern and group, keeping its position."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Rule id")),
	mcp.WithString("type", mcp.Enum("domain", "keyword", "regex"), mcp.Description("Match type (default domain)")),
	mcp.WithString("pattern", mcp.Required(), mcp.Description("Domain, keyword, or regular expression")),
	mcp.WithString("group", mcp.Required(), mcp.Description("Group name for matching tabs")),
)

var ruleDeleteToolDef = mcp.NewTool("rule_delete",
	mcp.WithDescription("Delete a rule."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Rule id")),
	mcp.WithDestructiveHintAnnotation(true),
)

var ruleMoveToolDef = mcp.NewTool("rule_move",
	mcp.WithDescription("Change a rule's priority by moving it to a 0-based position."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Rule id")),
	mcp.WithNumber("position", mcp.Required(), mcp.Description("New 0-based position")),
)

var ruleScopeToolDef = mcp.NewTool("rule_scope",
	mcp.WithDescription("Set which windows classification runs over."),
	mcp.WithString("scope", mcp.Required(), mcp.Description("current, all, or window:<id>")),
)

var ruleImportToolDef = mcp.NewTool("rule_import",
	mcp.WithDescription("Load rules from a YAML rules file, replacing the list unless append is set."),
	mcp.WithString("path", mcp.Description("Rules file (default rules_file from config)")),
	mcp.WithBoolean("append", mcp.Description("Keep existing rules and add the file's after them")),
)

var ruleExportToolDef = mcp.NewTool("rule_export",
	mcp.WithDescription("Write rules and scope to a YAML rules file."),
	mcp.WithString("path", mcp.Description("Rules file (default rules_file from config)")),
)

var tabsClassifyToolDef = mcp.NewTool("tabs_classify",
	mcp.WithDescription("Group tabs by the first matching rule, reusing groups with the rule's name."),
	mcp.WithString("scope", mcp.Description("Override the stored scope: current, all, or window:<id>")),
)

var tabsGroupByDomainToolDef = mcp.NewTool("tabs_group_by_domain",
	mcp.WithDescription("Group every ungrouped tab by hostname, one group per window and hostname."),
)
