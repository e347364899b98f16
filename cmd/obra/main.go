package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"obralink/internal/app"
	"obralink/internal/db"
	"obralink/internal/domain"
	"obralink/internal/grant"
)

var rootCmd = &cobra.Command{
	Use:   "obra",
	Short: "Obralink CLI",
	Long: `Obralink coordinates a contractor and a mandante on a construction project.
Core concepts:
- Workspace: the .obralink directory holding the database, plus an optional obralink.yml.
- Project: one obra with a contractor organization and a mandante organization.
- RFIs: questions raised on site, answered by the mandante or forwarded to specialists.
- Adicionales: change orders the contractor presents and the mandante approves or rejects.
- Estados de pago: monthly payment packages; documents, submission and a quorum of mandante approvals.
- Grants: what an account or a link may see and do on a project.
- Event log: audit trail of every change, view with 'obra log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("OBRALINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("project", "", "project id (defaults to the only project)")
	flags.String("account", "", "account acting on the project")
	flags.String("role", "", "active role when the account is on both sides (contractor|mandante)")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	for _, name := range []string{"workspace", "json", "project", "account", "role", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(memberCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(rfiCmd())
	rootCmd.AddCommand(adicionalCmd())
	rootCmd.AddCommand(pagoCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openEnv(ctx context.Context, quiet bool) (*app.Env, error) {
	return app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		Logger:    newLogger(),
		Quiet:     quiet,
	})
}

// withEnv opens the workspace for commands that do not act on items.
func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	env, err := openEnv(ctx, true)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

// withNotifyingEnv is withEnv with notification sinks attached.
func withNotifyingEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	env, err := openEnv(ctx, false)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

// withGrant opens the workspace and resolves the --account session grant on
// the selected project.
func withGrant(ctx context.Context, fn func(context.Context, *app.Env, grant.Grant) error) error {
	env, err := openEnv(ctx, false)
	if err != nil {
		return err
	}
	defer env.Close()
	projectID, err := env.ProjectID(ctx, viper.GetString("project"))
	if err != nil {
		return err
	}
	g, err := env.Session(ctx, projectID, viper.GetString("account"), domain.Role(viper.GetString("role")))
	if err != nil {
		return err
	}
	return fn(ctx, env, g)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				fmt.Printf("database ready at %s\n", db.Path(viper.GetString("workspace")))
				return nil
			})
		},
	}
}

// printJSONOrTable prints v as JSON under --json and otherwise as a
// field/value table of its top-level JSON fields.
func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fields, err := jsonFields(v)
	if err != nil {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Field", "Value"})
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		tw.AppendRow(table.Row{k, cellValue(fields[k])})
	}
	tw.Render()
	return nil
}

func jsonFields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func cellValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
