package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"obralink/internal/app"
	"obralink/internal/domain"
	"obralink/internal/engine"
	"obralink/internal/grant"
	"obralink/internal/repo"
	"obralink/internal/token"
)

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.CreateProjectOptions
	var currency string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project between a contractor and a mandante organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Currency = domain.Currency(strings.ToUpper(currency))
			opts.ActorID = actorOrLocal()
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				p, err := env.Engine.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&currency, "currency", "CLP", "CLP, UF or USD")
	cmd.Flags().StringVar(&opts.ContractorOrgID, "contractor-org", "", "contractor organization id")
	cmd.Flags().StringVar(&opts.MandanteOrgID, "mandante-org", "", "mandante organization id")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("contractor-org")
	_ = cmd.MarkFlagRequired("mandante-org")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				items, err := env.Engine.Repo.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Currency", "Contractor", "Mandante"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Currency, p.ContractorOrgID, p.MandanteOrgID})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show a project and its members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				id, err := env.ProjectID(ctx, viper.GetString("project"))
				if err != nil {
					return err
				}
				p, err := env.Engine.Repo.GetProject(ctx, id)
				if err != nil {
					return err
				}
				contractors, err := env.Engine.Repo.ListMembers(ctx, p.ContractorOrgID)
				if err != nil {
					return err
				}
				mandantes, err := env.Engine.Repo.ListMembers(ctx, p.MandanteOrgID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"project":     p,
					"contractors": contractors,
					"mandantes":   mandantes,
				})
			})
		},
	}
}

func memberCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "member", Short: "Manage project membership"}
	var role, account string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an account to the contractor or mandante side",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				id, err := env.ProjectID(ctx, viper.GetString("project"))
				if err != nil {
					return err
				}
				if err := env.Engine.AddMember(ctx, id, domain.Role(role), account, actorOrLocal()); err != nil {
					return err
				}
				fmt.Printf("%s added as %s on %s\n", account, role, id)
				return nil
			})
		},
	}
	add.Flags().StringVar(&role, "as", "", "contractor or mandante")
	add.Flags().StringVar(&account, "member", "", "account id to add")
	_ = add.MarkFlagRequired("as")
	_ = add.MarkFlagRequired("member")
	cmd.AddCommand(add)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Mint bearer tokens for the API"}
	cmd.AddCommand(tokenSessionCmd())
	cmd.AddCommand(tokenLinkCmd())
	return cmd
}

func issuer(env *app.Env, ttl time.Duration) (token.Issuer, error) {
	secret := viper.GetString("jwt-secret")
	if secret == "" {
		secret = env.Config.Auth.JWTSecret
	}
	if secret == "" {
		return token.Issuer{}, fmt.Errorf("OBRALINK_JWT_SECRET is required to sign tokens")
	}
	return token.Issuer{Secret: secret, TTL: ttl}, nil
}

func tokenSessionCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Mint a session token for --account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				iss, err := issuer(env, ttl)
				if err != nil {
					return err
				}
				raw, err := iss.SignSession(viper.GetString("account"), domain.Role(viper.GetString("role")))
				if err != nil {
					return err
				}
				fmt.Println(raw)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func tokenLinkCmd() *cobra.Command {
	var scope, role, subject string
	var rfis, adicionales, pagos []int64
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Mint a link token as issued by the verification step",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				id, err := env.ProjectID(ctx, viper.GetString("project"))
				if err != nil {
					return err
				}
				iss, err := issuer(env, env.Config.LinkTTL())
				if err != nil {
					return err
				}
				g := grant.Grant{
					ProjectID:              id,
					ActorRole:              domain.Role(role),
					Scope:                  grant.Scope(scope),
					AuthorizedRFIIDs:       append([]int64{}, rfis...),
					AuthorizedAdicionalIDs: append([]int64{}, adicionales...),
					AuthorizedPagoIDs:      pagos,
					Subject:                subject,
					Via:                    grant.SourceLink,
				}
				raw, err := iss.SignLink(g)
				if err != nil {
					return err
				}
				fmt.Println(raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(grant.ScopeRFIOnly), "general, rfi-only, adicional-only or pago-only")
	cmd.Flags().StringVar(&role, "as", string(domain.RoleSpecialist), "role the link acts as")
	cmd.Flags().StringVar(&subject, "subject", "", "verified identity of the link holder")
	cmd.Flags().Int64SliceVar(&rfis, "rfi", nil, "authorized RFI ids")
	cmd.Flags().Int64SliceVar(&adicionales, "adicional", nil, "authorized adicional ids")
	cmd.Flags().Int64SliceVar(&pagos, "pago", nil, "authorized payment ids (pago-only, mandante)")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Audit log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				id, err := env.ProjectID(ctx, viper.GetString("project"))
				if err != nil {
					return err
				}
				f.ProjectID = id
				events, err := env.Engine.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, e := range events {
					entity := e.EntityKind
					if e.EntityID != "" {
						entity += " " + e.EntityID
					}
					tw.AppendRow(table.Row{strconv.FormatInt(e.ID, 10), e.TS, e.Type, entity, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "n", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind filter")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id filter")
	return cmd
}

func actorOrLocal() string {
	if a := viper.GetString("account"); a != "" {
		return a
	}
	return "local-user"
}
