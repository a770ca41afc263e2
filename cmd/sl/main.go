package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"siteline/internal/app"
	"siteline/internal/config"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/migrate"
	"siteline/internal/repo"
	"siteline/internal/schedule"
	"siteline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Siteline CLI",
	Long: `Siteline plans construction project work on a phase timeline.
Core concepts:
- Workspace: your .siteline directory with only the database; configs are stored in the DB and imported explicitly.
- Project: one renovation or build job that owns all tasks, materials, weather and crew data.
- Phases: every task lands in preparation, execution or verification based on its wording; phases unlock in order, so execution stays locked until preparation hits 100%.
- Categories: within a phase, tasks group into material categories (flooring, trim, supplies, ...) as sub-timelines.
- Delays: an overdue task marks its sub-timeline delayed and proposes shifting later work by the same number of days; you confirm or dismiss the batch.
- Conflicts: a danger-severity forecast on a task's due date flags weather risk; active execution work with nobody on site flags a GPS conflict.
- Event log: diary of changes, view with 'sl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SITELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(phaseCmd())
	rootCmd.AddCommand(materialCmd())
	rootCmd.AddCommand(weatherCmd())
	rootCmd.AddCommand(crewCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectSetDatesCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectConfigCmd())
	prj.AddCommand(projectUseCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var id, name, desc, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg := config.Default(id)
			e := engine.New(conn, cfg)
			p, err := e.InitProject(cmd.Context(), id, name, desc, start, end, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(p)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&start, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end-date", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := viper.GetString("project")
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if target == "" {
					target = e.Config.Project.ID
				}
				p, err := e.Repo.GetProject(ctx, target)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var status, name, description string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := viper.GetString("project")
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if target == "" {
					target = e.Config.Project.ID
				}
				var namePtr, descPtr *string
				if cmd.Flags().Changed("name") {
					namePtr = &name
				}
				if cmd.Flags().Changed("description") {
					descPtr = &description
				}
				updatedAt := time.Now().UTC().Format(time.RFC3339)
				if err := e.Repo.UpdateProject(ctx, target, status, namePtr, descPtr, updatedAt); err != nil {
					return err
				}
				p, err := e.Repo.GetProject(ctx, target)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status (active, archived)")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	return cmd
}

func projectSetDatesCmd() *cobra.Command {
	var start, end string
	var apply bool
	cmd := &cobra.Command{
		Use:   "set-dates",
		Short: "Update project dates",
		Long:  "Moving the start date proposes shifting every dated open task by the same offset; pass --apply to confirm the shift immediately.",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := viper.GetString("project")
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if target == "" {
					target = e.Config.Project.ID
				}
				var startPtr, endPtr *string
				if cmd.Flags().Changed("start-date") {
					startPtr = &start
				}
				if cmd.Flags().Changed("end-date") {
					endPtr = &end
				}
				actor := viper.GetString("actor-id")
				p, batch, err := e.UpdateProjectDates(ctx, target, startPtr, endPtr, actor)
				if err != nil {
					return err
				}
				if batch == nil {
					return printJSONOrTable(p)
				}
				if apply {
					results, err := e.ConfirmShiftBatch(ctx, batch.ID, actor)
					if err != nil {
						return err
					}
					return printJSONOrTable(map[string]any{"project": p, "applied": results})
				}
				return printJSONOrTable(map[string]any{"project": p, "batch": batch})
			})
		},
	}
	cmd.Flags().StringVar(&start, "start-date", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end-date", "", "end date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&apply, "apply", false, "confirm the proposed task shift immediately")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := viper.GetString("project")
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if target == "" {
					target = e.Config.Project.ID
				}
				return e.Repo.DeleteProject(ctx, target)
			})
		},
	}
	return cmd
}

func projectUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <id>",
		Short: "Set current project for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := strings.TrimSpace(args[0])
			if projectID == "" {
				return fmt.Errorf("project id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "SITELINE_DEFAULT_PROJECT", projectID); err != nil {
				return err
			}
			fmt.Printf("Set SITELINE_DEFAULT_PROJECT=%s in %s/.env\n", projectID, workspace)
			return nil
		},
	}
	return cmd
}

func projectConfigCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage project config",
	}
	cfg.AddCommand(projectConfigShowCmd())
	cfg.AddCommand(projectConfigImportCmd())
	return cfg
}

func projectConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show project config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func projectConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import project config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			cfg, err := config.FromYAML(data)
			if err != nil {
				return err
			}
			projectID := cfg.Project.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if projectID == "" {
					projectID = e.Config.Project.ID
				}
				if err := e.Repo.UpsertProjectConfig(ctx, projectID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show project status",
		Long:  "See the scoreboard for your project: dates, task counts, and overall project state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				projectID := e.Config.Project.ID
				p, err := e.Repo.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				counts, err := e.Repo.CountTasksByStatus(ctx, projectID)
				if err != nil {
					return err
				}
				out := map[string]any{
					"project_id":  p.ID,
					"status":      p.Status,
					"start_date":  p.StartDate,
					"end_date":    p.EndDate,
					"task_counts": counts,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Project: %s (%s)\n", p.ID, p.Status)
				if p.StartDate != nil && p.EndDate != nil {
					fmt.Printf("Dates: %s .. %s\n", *p.StartDate, *p.EndDate)
				}
				fmt.Println("Tasks:")
				for status, c := range counts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks are the work items on the job. They flow pending -> in_progress -> completed, carry a due date and priority, and their wording decides which phase and material category they land in.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskRescheduleCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if opts.ProjectID == "" {
					opts.ProjectID = e.Config.Project.ID
				}
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (optional, deterministic UUID if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (low, medium, high, urgent)")
	cmd.Flags().StringVar(&opts.DueDate, "due-date", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.AssigneeID, "assignee-id", "", "assignee id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if f.ProjectID == "" {
					f.ProjectID = e.Config.Project.ID
				}
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Due", "Assignee"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, deref(t.DueDate), deref(t.AssigneeID)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Assignee, "assignee-id", "", "assignee filter")
	cmd.Flags().StringVar(&f.DueBefore, "due-before", "", "due before date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.DueAfter, "due-after", "", "due after date (YYYY-MM-DD)")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var opts engine.TaskUpdateOptions
	var description, assign, dueDate string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("assign") {
				opts.Assign = &assign
			}
			if cmd.Flags().Changed("due-date") {
				opts.DueDate = &dueDate
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.Status, "status", "", "new status (pending, in_progress, completed)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&description, "description", "", "new description (empty clears)")
	cmd.Flags().StringVar(&assign, "assign", "", "set assignee id (empty clears)")
	cmd.Flags().StringVar(&dueDate, "due-date", "", "set due date (empty clears)")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Complete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
					ID:      id,
					Status:  "completed",
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskRescheduleCmd() *cobra.Command {
	var pixelDelta float64
	var dayWidth int
	var targetDate string
	cmd := &cobra.Command{
		Use:   "reschedule <id>",
		Short: "Reschedule task",
		Long:  "Move a task's due date: --to drops it on a calendar date, --pixels/--day-width converts a drag distance into whole days (sub-half-day drags do nothing).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			opts := engine.RescheduleOptions{
				TaskID:     id,
				DayWidth:   dayWidth,
				TargetDate: targetDate,
				ActorID:    viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("pixels") {
				opts.PixelDelta = &pixelDelta
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, moved, err := e.Reschedule(ctx, opts)
				if err != nil {
					return err
				}
				if !moved && !viper.GetBool("json") {
					fmt.Println("no change (drag below half a day)")
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().Float64Var(&pixelDelta, "pixels", 0, "horizontal drag distance in pixels")
	cmd.Flags().IntVar(&dayWidth, "day-width", 0, "pixels per day in the current view")
	cmd.Flags().StringVar(&targetDate, "to", "", "target date (YYYY-MM-DD)")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.DeleteTask(ctx, id, viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func timelineCmd() *cobra.Command {
	tl := &cobra.Command{
		Use:   "timeline",
		Short: "Phase timeline",
		Long:  "The timeline groups tasks into phase/category sub-timelines with progress, locks, delays and conflicts. Detected delays propose a shift batch you can apply or dismiss.",
	}
	tl.AddCommand(timelineShowCmd())
	tl.AddCommand(timelineApplyCmd())
	tl.AddCommand(timelineDismissCmd())
	return tl
}

func timelineShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the phase timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				res, err := e.Timeline(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				renderTimeline(res)
				return nil
			})
		},
	}
	return cmd
}

func timelineApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <batch_id>",
		Short: "Apply a pending shift batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				// recompute so the batch registry reflects the current task set
				if _, err := e.Timeline(ctx, e.Config.Project.ID); err != nil {
					return err
				}
				results, err := e.ConfirmShiftBatch(ctx, batchID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(results)
			})
		},
	}
	return cmd
}

func timelineDismissCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dismiss <batch_id>",
		Short: "Dismiss a pending shift batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if _, err := e.Timeline(ctx, e.Config.Project.ID); err != nil {
					return err
				}
				return e.DismissShiftBatch(batchID)
			})
		},
	}
	return cmd
}

func renderTimeline(res engine.TimelineResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Phase", "Category", "Tasks", "Progress", "Window", "Flags"})
	for _, g := range res.Phases {
		phaseLabel := string(g.Phase)
		if g.Locked {
			phaseLabel += " (locked)"
		}
		if len(g.SubTimelines) == 0 {
			tw.AppendRow(table.Row{phaseLabel, "-", 0, fmt.Sprintf("%d%%", g.Progress), "-", ""})
			continue
		}
		for _, sub := range g.SubTimelines {
			var flags []string
			if sub.Delayed {
				flags = append(flags, fmt.Sprintf("delayed %dd", sub.DelayDays))
			}
			if sub.Conflict != schedule.ConflictNone {
				flags = append(flags, string(sub.Conflict))
			}
			window := "-"
			if sub.StartDate != nil && sub.EndDate != nil {
				window = *sub.StartDate + " .. " + *sub.EndDate
			}
			tw.AppendRow(table.Row{phaseLabel, sub.Category, len(sub.Tasks), fmt.Sprintf("%d%%", sub.Progress), window, strings.Join(flags, ", ")})
			phaseLabel = ""
		}
	}
	tw.Render()
	for _, batch := range res.Pending {
		fmt.Printf("\nPending %s batch %s: %s\n", batch.Kind, batch.ID, batch.Reason)
		for _, p := range batch.Proposals {
			fmt.Printf("  %s -> %s (%+d days)\n", p.TaskID, p.NewDueDate, p.ShiftDays)
		}
		fmt.Printf("Apply with 'sl timeline apply %s' or dismiss with 'sl timeline dismiss %s'.\n", batch.ID, batch.ID)
	}
}

func phaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phase",
		Short: "Phase operations",
	}
	cmd.AddCommand(phaseCompleteCmd())
	return cmd
}

func phaseCompleteCmd() *cobra.Command {
	var category string
	var undo bool
	cmd := &cobra.Command{
		Use:   "complete <phase>",
		Short: "Toggle completion for a whole phase",
		Long:  "Marks every task in a phase (optionally narrowed to one category) completed, or pending with --undo. Rejected when the phase is locked.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phase := schedule.Phase(args[0])
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				changes, err := e.BulkComplete(ctx, e.Config.Project.ID, phase, category, !undo, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(changes)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "limit to one material category")
	cmd.Flags().BoolVar(&undo, "undo", false, "mark pending instead of completed")
	return cmd
}

func materialCmd() *cobra.Command {
	m := &cobra.Command{
		Use:   "material",
		Short: "Manage materials",
		Long:  "Materials are the shopping list. Their labels also categorize tasks: a task mentioning a material's label inherits that material's category.",
	}
	m.AddCommand(materialAddCmd())
	m.AddCommand(materialListCmd())
	m.AddCommand(materialDeleteCmd())
	return m
}

func materialAddCmd() *cobra.Command {
	var label, unit string
	var quantity float64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add material",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				m, err := e.AddMaterial(ctx, e.Config.Project.ID, label, quantity, unit, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "material label")
	cmd.Flags().Float64Var(&quantity, "quantity", 0, "quantity")
	cmd.Flags().StringVar(&unit, "unit", "", "unit (sq ft, boxes, ...)")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}

func materialListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List materials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListMaterials(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Label", "Quantity", "Unit"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.Label, m.Quantity, m.Unit})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func materialDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.Repo.DeleteMaterial(ctx, id)
			})
		},
	}
	return cmd
}

func weatherCmd() *cobra.Command {
	w := &cobra.Command{
		Use:   "weather",
		Short: "Weather forecast",
		Long:  "A danger-severity alert on a task's due date flags its sub-timeline with a weather conflict.",
	}
	w.AddCommand(weatherImportCmd())
	w.AddCommand(weatherListCmd())
	return w
}

func weatherImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import forecast from a JSON file",
		Long:  "Replaces the stored forecast with the snapshot in the file: a JSON array of {date, severity, message}.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var alerts []domain.WeatherAlert
			if err := json.Unmarshal(data, &alerts); err != nil {
				return fmt.Errorf("parse forecast: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.ImportForecast(ctx, e.Config.Project.ID, alerts, viper.GetString("actor-id")); err != nil {
					return err
				}
				return printJSONOrTable(map[string]int{"imported": len(alerts)})
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to forecast JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func weatherListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListForecast(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func crewCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "crew",
		Short: "Crew presence",
		Long:  "Crew presence feeds GPS conflict detection: active execution work with nobody on site gets flagged.",
	}
	c.AddCommand(crewImportCmd())
	c.AddCommand(crewListCmd())
	return c
}

func crewImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import crew presence from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var members []domain.CrewMember
			if err := json.Unmarshal(data, &members); err != nil {
				return fmt.Errorf("parse crew: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.ImportCrew(ctx, e.Config.Project.ID, members, viper.GetString("actor-id")); err != nil {
					return err
				}
				return printJSONOrTable(map[string]int{"imported": len(members)})
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to crew JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func crewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List crew presence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListCrew(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "On site", "Last seen"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.Name, m.OnSite, m.LastSeen})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: task changes, reschedules, shift confirmations, imports.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, e.Config.Project.ID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the HTTP server",
	}
	ak.AddCommand(apikeyCreateCmd())
	ak.AddCommand(apikeyListCmd())
	ak.AddCommand(apikeyRevokeCmd())
	return ak
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the current actor",
		Long:  "Prints the raw key once; only its SHA-256 hash is stored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				raw := make([]byte, 24)
				if _, err := rand.Read(raw); err != nil {
					return err
				}
				key := "slk_" + hex.EncodeToString(raw)
				rec := domain.APIKey{
					ID:      uuid.NewString(),
					ActorID: viper.GetString("actor-id"),
					Name:    name,
					KeyHash: repo.HashAPIKey(key),
				}
				if err := r.InsertAPIKey(ctx, nil, rec); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"id": rec.ID, "key": key})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor id")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveProjectAndConfig(cmd.Context(), workspace, viper.GetString("project"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("SITELINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("SITELINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Siteline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveProjectAndConfig(ctx, workspace, viper.GetString("project"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
