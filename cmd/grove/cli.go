package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/ops"
	"github.com/hpungsan/grove/internal/rules"
)

// newCLIApp creates the CLI application with all commands. e may be nil when
// only help or version output is needed.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "grove",
		Usage:   "Tab groups, history and rules",
		Version: Version,
		Commands: []*cli.Command{
			refreshCmd(e),
			listCmd(e),
			getCmd(e),
			archiveCmd(e),
			restoreCmd(e),
			deleteCmd(e),
			lockCmd(e),
			starCmd(e),
			categoryCmd(e),
			moveCmd(e),
			moveTabCmd(e),
			dedupeCmd(e),
			openCmd(e),
			createCmd(e),
			mergeWindowsCmd(e),
			importClosedCmd(e),
			importMarkdownCmd(e),
			exportCmd(e),
			classifyCmd(e),
			groupByDomainCmd(e),
			rulesCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func viewFlag() cli.Flag {
	return &cli.StringFlag{Name: "view", Usage: "Group view: active|closed (default: either)"}
}

// refreshCmd creates the refresh command.
func refreshCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Snapshot open groups and record them in history",
		Action: func(c *cli.Context) error {
			return e.changed(e.c.Refresh(c.Context))
		},
	}
}

// listCmd creates the list command.
func listCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List active or closed groups",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "view", Value: "active", Usage: "Group view: active|closed"},
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Filter by title, category or tab"},
		},
		Action: func(c *cli.Context) error {
			view, err := ops.ParseView(c.String("view"))
			if err != nil {
				return outputError(err)
			}
			if _, err := e.c.Refresh(c.Context); err != nil {
				return outputError(err)
			}
			return e.show(e.c.List(c.Context, ops.ListInput{View: view, Search: c.String("search")}))
		},
	}
}

// getCmd creates the get command.
func getCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one group",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{viewFlag()},
		Action: func(c *cli.Context) error {
			view, id, err := groupRef(c)
			if err != nil {
				return outputError(err)
			}
			g, found, err := e.c.Get(c.Context, view, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"view": found, "group": g})
		},
	}
}

// archiveCmd creates the archive command.
func archiveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "Save an active group to history",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "close-tabs", Usage: "Close the group's tabs after archiving (default from config)"},
		},
		Action: func(c *cli.Context) error {
			in := ops.ArchiveInput{ID: group.ID(c.Args().First())}
			if c.IsSet("close-tabs") {
				closeTabs := c.Bool("close-tabs")
				in.CloseTabs = &closeTabs
			}
			return e.changed(e.c.Archive(c.Context, in))
		},
	}
}

// restoreCmd creates the restore command.
func restoreCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Bring a history group back to the active list",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reopen", Usage: "Reopen the group's tabs in the browser"},
		},
		Action: func(c *cli.Context) error {
			return e.changed(e.c.Restore(c.Context, ops.RestoreInput{
				ID:     group.ID(c.Args().First()),
				Reopen: c.Bool("reopen"),
			}))
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a history entry, or close an active group's tabs",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{viewFlag()},
		Action: func(c *cli.Context) error {
			view, id, err := groupRef(c)
			if err != nil {
				return outputError(err)
			}
			return e.changed(e.c.Delete(c.Context, ops.DeleteInput{View: view, ID: id}))
		},
	}
}

// lockCmd creates the lock command.
func lockCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "lock",
		Usage:     "Toggle the lock on a group",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{viewFlag()},
		Action: func(c *cli.Context) error {
			view, id, err := groupRef(c)
			if err != nil {
				return outputError(err)
			}
			return e.changed(e.c.ToggleLock(c.Context, ops.ToggleInput{View: view, ID: id}))
		},
	}
}

// starCmd creates the star command.
func starCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "star",
		Usage:     "Toggle the star on a group",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{viewFlag()},
		Action: func(c *cli.Context) error {
			view, id, err := groupRef(c)
			if err != nil {
				return outputError(err)
			}
			return e.changed(e.c.ToggleStar(c.Context, ops.ToggleInput{View: view, ID: id}))
		},
	}
}

// categoryCmd creates the category command and its subcommands.
func categoryCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "category",
		Usage: "Manage categories",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Assign a category to a group",
				ArgsUsage: "<id> <category>",
				Flags:     []cli.Flag{viewFlag()},
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return outputError(errors.NewInvalidRequest("group id and category are required"))
					}
					view, err := ops.ParseView(c.String("view"))
					if err != nil {
						return outputError(err)
					}
					return e.changed(e.c.SetCategory(c.Context, ops.SetCategoryInput{
						View:     view,
						ID:       group.ID(c.Args().Get(0)),
						Category: c.Args().Get(1),
					}))
				},
			},
			{
				Name:      "add",
				Usage:     "Add a category name",
				ArgsUsage: "<category>",
				Action: func(c *cli.Context) error {
					return e.changed(e.c.AddCategory(c.Context, c.Args().First()))
				},
			},
		},
	}
}

// moveCmd creates the move command.
func moveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "move",
		Usage: "Move or copy tabs into an open group",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{Name: "tab", Aliases: []string{"t"}, Usage: "Tab id (repeatable or comma-separated)"},
			&cli.StringFlag{Name: "source", Usage: "Group the tabs come from (optional)"},
			&cli.StringFlag{Name: "target", Required: true, Usage: "Target group id"},
			&cli.BoolFlag{Name: "copy", Usage: "Open copies instead of moving"},
			&cli.BoolFlag{Name: "merge-duplicates", Aliases: []string{"m"}, Usage: "Skip URLs the target already has"},
		},
		Action: func(c *cli.Context) error {
			return e.changed(e.c.MoveTabs(c.Context, ops.MoveTabsInput{
				TabIDs:          c.IntSlice("tab"),
				SourceID:        group.ID(c.String("source")),
				TargetID:        group.ID(c.String("target")),
				Copy:            c.Bool("copy"),
				MergeDuplicates: c.Bool("merge-duplicates"),
			}))
		},
	}
}

// moveTabCmd creates the move-tab command.
func moveTabCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "move-tab",
		Usage: "Move a single tab into an open group",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "tab", Aliases: []string{"t"}, Required: true, Usage: "Tab id"},
			&cli.StringFlag{Name: "source", Usage: "Group the tab comes from (optional)"},
			&cli.StringFlag{Name: "target", Required: true, Usage: "Target group id"},
		},
		Action: func(c *cli.Context) error {
			return e.changed(e.c.MoveTab(c.Context, ops.MoveTabInput{
				TabID:    c.Int("tab"),
				SourceID: group.ID(c.String("source")),
				TargetID: group.ID(c.String("target")),
			}))
		},
	}
}

// dedupeCmd creates the dedupe command.
func dedupeCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "dedupe",
		Usage:     "Remove duplicate URLs from a group",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{viewFlag()},
		Action: func(c *cli.Context) error {
			view, id, err := groupRef(c)
			if err != nil {
				return outputError(err)
			}
			return e.changed(e.c.Dedupe(c.Context, ops.DedupeInput{View: view, ID: id}))
		},
	}
}

// openCmd creates the open command.
func openCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Focus an active group or reopen a history group",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{viewFlag()},
		Action: func(c *cli.Context) error {
			view, id, err := groupRef(c)
			if err != nil {
				return outputError(err)
			}
			return e.changed(e.c.Open(c.Context, ops.OpenInput{View: view, ID: id}))
		},
	}
}

// createCmd creates the create command.
func createCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a new group holding one blank tab",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Value: ops.NewGroupTitle, Usage: "Group title"},
			&cli.StringFlag{Name: "color", Value: ops.NewGroupColor, Usage: "Group color"},
		},
		Action: func(c *cli.Context) error {
			return e.changed(e.c.CreateGroup(c.Context, ops.CreateGroupInput{
				Title: c.String("title"),
				Color: c.String("color"),
			}))
		},
	}
}

// mergeWindowsCmd creates the merge-windows command.
func mergeWindowsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "merge-windows",
		Usage: "Move every tab into the current window",
		Action: func(c *cli.Context) error {
			return e.changed(e.c.MergeWindows(c.Context))
		},
	}
}

// importClosedCmd creates the import-closed command.
func importClosedCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "import-closed",
		Usage: "Import recently closed tabs and windows into history",
		Action: func(c *cli.Context) error {
			return e.changed(e.c.ImportClosed(c.Context))
		},
	}
}

// importMarkdownCmd creates the import-md command.
func importMarkdownCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "import-md",
		Usage: "Add a history group from the links in a markdown file (or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Markdown file path"},
			&cli.StringFlag{Name: "title", Usage: "Title when the document has no heading"},
		},
		Action: func(c *cli.Context) error {
			in := ops.ImportMarkdownInput{Path: c.String("path"), Title: c.String("title")}
			if in.Path == "" {
				if !stdinHasData() {
					return outputError(errors.NewInvalidRequest("markdown must be given with --path or piped via stdin"))
				}
				content, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				in.Content = content
			}
			return e.changed(e.c.ImportMarkdown(c.Context, in))
		},
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Print a group's links",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			viewFlag(),
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "urls", Usage: "Output format: urls|markdown|json"},
			&cli.BoolFlag{Name: "raw", Usage: "Print the content only, not the JSON envelope"},
		},
		Action: func(c *cli.Context) error {
			view, id, err := groupRef(c)
			if err != nil {
				return outputError(err)
			}
			out, err := e.c.ExportLinks(c.Context, ops.ExportLinksInput{View: view, ID: id, Format: c.String("format")})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("raw") {
				_, err := fmt.Fprintln(os.Stdout, out.Content)
				return err
			}
			return outputJSON(out)
		},
	}
}

// classifyCmd creates the classify command.
func classifyCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Group ungrouped tabs by the saved rules",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "scope", Usage: "Window scope: current|all|window:<id> (default: saved scope)"},
		},
		Action: func(c *cli.Context) error {
			in, err := classifyInput(c.String("scope"))
			if err != nil {
				return outputError(err)
			}
			return e.changed(e.c.Classify(c.Context, in))
		},
	}
}

// groupByDomainCmd creates the group-by-domain command.
func groupByDomainCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "group-by-domain",
		Usage: "Group ungrouped tabs by hostname",
		Action: func(c *cli.Context) error {
			return e.changed(e.c.GroupByDomain(c.Context))
		},
	}
}

// rulesCmd creates the rules command and its subcommands.
func rulesCmd(e *env) *cli.Command {
	ruleFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "type", Value: string(rules.TypeDomain), Usage: "Rule type: domain|keyword|regex"},
			&cli.StringFlag{Name: "pattern", Aliases: []string{"p"}, Required: true, Usage: "Pattern to match"},
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Required: true, Usage: "Target group name"},
		}
	}
	ruleInput := func(c *cli.Context) ops.RuleInput {
		return ops.RuleInput{Type: c.String("type"), Pattern: c.String("pattern"), GroupName: c.String("group")}
	}
	fileFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "path", Usage: "Rules file path (default: rules_file from config)"}
	}

	return &cli.Command{
		Name:  "rules",
		Usage: "Manage classification rules",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List rules in evaluation order",
				Action: func(c *cli.Context) error {
					return e.show(e.c.ListRules(c.Context))
				},
			},
			{
				Name:  "add",
				Usage: "Append a rule",
				Flags: ruleFlags(),
				Action: func(c *cli.Context) error {
					return e.changed(e.c.AddRule(c.Context, ruleInput(c)))
				},
			},
			{
				Name:      "update",
				Usage:     "Replace a rule's type, pattern and group",
				ArgsUsage: "<id>",
				Flags:     ruleFlags(),
				Action: func(c *cli.Context) error {
					return e.changed(e.c.UpdateRule(c.Context, c.Args().First(), ruleInput(c)))
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a rule",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					return e.changed(e.c.DeleteRule(c.Context, c.Args().First()))
				},
			},
			{
				Name:      "move",
				Usage:     "Move a rule to a new position (0-based)",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "position", Required: true, Usage: "New index"},
				},
				Action: func(c *cli.Context) error {
					return e.changed(e.c.MoveRule(c.Context, c.Args().First(), c.Int("position")))
				},
			},
			{
				Name:      "scope",
				Usage:     "Set the window scope for classification",
				ArgsUsage: "<current|all|window:id>",
				Action: func(c *cli.Context) error {
					return e.changed(e.c.SetScope(c.Context, c.Args().First()))
				},
			},
			{
				Name:  "import",
				Usage: "Load rules from a YAML file",
				Flags: []cli.Flag{
					fileFlag(),
					&cli.BoolFlag{Name: "append", Usage: "Keep existing rules and add the file's after them"},
				},
				Action: func(c *cli.Context) error {
					path, err := e.rulesPath(c.String("path"))
					if err != nil {
						return outputError(err)
					}
					return e.changed(e.c.ImportRules(c.Context, ops.ImportRulesInput{Path: path, Append: c.Bool("append")}))
				},
			},
			{
				Name:  "export",
				Usage: "Write rules to a YAML file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Usage: "Rules file path (default: rules_file, else ~/.grove/exports/rules-<timestamp>.yaml)"},
				},
				Action: func(c *cli.Context) error {
					path, err := e.rulesPath(c.String("path"))
					if err != nil {
						path = filepath.Join(e.baseDir, "exports", fmt.Sprintf("rules-%s.yaml", time.Now().Format("20060102-150405")))
					}
					return e.show(e.c.ExportRules(c.Context, path))
				},
			},
			{
				Name:  "watch",
				Usage: "Reload rules and classify each time the rules file changes",
				Flags: []cli.Flag{
					fileFlag(),
					&cli.DurationFlag{Name: "debounce", Value: rules.DefaultWatchDebounce, Usage: "Quiet period before reloading"},
				},
				Action: func(c *cli.Context) error {
					path, err := e.rulesPath(c.String("path"))
					if err != nil {
						return outputError(err)
					}
					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
					defer stop()
					e.logger.Info("watching rules file", "path", path)
					return rules.Watch(ctx, path, c.Duration("debounce"), e.logger, func() {
						if err := e.reloadRules(ctx, path); err != nil {
							e.logger.Warn("rules reload failed", "path", path, "error", err)
						}
					})
				},
			},
		},
	}
}

// reloadRules replaces the rule list from path, classifies with it and
// prints the outcome as one JSON document.
func (e *env) reloadRules(ctx context.Context, path string) error {
	imported, err := e.c.ImportRules(ctx, ops.ImportRulesInput{Path: path})
	if err != nil {
		return err
	}
	classified, err := e.c.Classify(ctx, ops.RunClassifyInput{})
	if err != nil {
		return err
	}
	if err := e.saveHost(); err != nil {
		return err
	}
	return outputJSON(map[string]any{"rules": imported, "classify": classified})
}

// Helper functions

// show prints a read-only result.
func (e *env) show(v any, err error) error {
	if err != nil {
		return outputError(err)
	}
	return outputJSON(v)
}

// changed prints a result and writes the host session back.
func (e *env) changed(v any, err error) error {
	if err != nil {
		return outputError(err)
	}
	if err := e.saveHost(); err != nil {
		return outputError(errors.NewInternal(fmt.Errorf("save host file: %w", err)))
	}
	return outputJSON(v)
}

func (e *env) rulesPath(flag string) (string, error) {
	if p := strings.TrimSpace(flag); p != "" {
		return p, nil
	}
	if e.cfg.RulesFile != "" {
		return e.cfg.RulesFile, nil
	}
	return "", errors.NewInvalidRequest("no rules file: pass --path or set rules_file")
}

// groupRef reads the <id> argument and --view flag.
func groupRef(c *cli.Context) (ops.View, group.ID, error) {
	view, err := ops.ParseView(c.String("view"))
	if err != nil {
		return "", "", err
	}
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", "", errors.NewInvalidRequest("group id is required")
	}
	return view, group.ID(id), nil
}

func classifyInput(scope string) (ops.RunClassifyInput, error) {
	var in ops.RunClassifyInput
	if strings.TrimSpace(scope) == "" {
		return in, nil
	}
	s, err := rules.ParseScope(scope)
	if err != nil {
		return in, errors.NewInvalidRequest(err.Error())
	}
	in.Scope = &s
	return in, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var gErr *errors.GroveError
	if stderrors.As(err, &gErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", gErr.Code, gErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
