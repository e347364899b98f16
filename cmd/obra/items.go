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
	"obralink/internal/deeplink"
	"obralink/internal/domain"
	"obralink/internal/grant"
	"obralink/internal/workflow"
)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// itemCmd runs fn with the parsed id argument and the caller's grant, then
// prints whatever fn returns.
func itemCmd(use, short string, fn func(context.Context, *app.Env, grant.Grant, int64) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withGrant(cmd.Context(), func(ctx context.Context, env *app.Env, g grant.Grant) error {
				out, err := fn(ctx, env, g, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return &t, nil
}

func rfiCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rfi", Short: "Requests for information"}

	var rfiID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List RFIs visible to --account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGrant(cmd.Context(), func(ctx context.Context, env *app.Env, g grant.Grant) error {
				var params deeplink.Params
				if rfiID > 0 {
					params.RFIID = &rfiID
				}
				res, err := env.Engine.ListRFIs(ctx, g, params)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Urgency", "Forwards", "Open"})
				for _, r := range res.Items {
					open := ""
					if res.AutoOpen != nil && res.AutoOpen.ID == r.ID {
						open = "*"
					}
					tw.AppendRow(table.Row{r.ID, r.Title, r.Status, r.Urgency, len(r.Forwards), open})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().Int64Var(&rfiID, "open", 0, "deep-linked RFI id")
	cmd.AddCommand(list)

	cmd.AddCommand(itemCmd("show", "Show an RFI", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		return env.Engine.GetRFI(ctx, g, id)
	}))

	var n workflow.NewRFI
	var urgency, due string
	create := &cobra.Command{
		Use:   "create",
		Short: "Raise an RFI",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if n.DueDate, err = parseDate(due); err != nil {
				return err
			}
			n.Urgency = domain.Urgency(urgency)
			return withGrant(cmd.Context(), func(ctx context.Context, env *app.Env, g grant.Grant) error {
				r, err := env.Engine.CreateRFI(ctx, g, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	create.Flags().StringVar(&n.Title, "title", "", "title")
	create.Flags().StringVar(&n.Description, "description", "", "description")
	create.Flags().StringVar(&urgency, "urgency", "", "normal, urgente or muy_urgente")
	create.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD")
	cmd.AddCommand(create)

	var text string
	respond := itemCmd("respond", "Answer a pending RFI", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		return env.Engine.RespondRFI(ctx, g, id, text)
	})
	respond.Flags().StringVar(&text, "text", "", "response text")
	cmd.AddCommand(respond)

	var recipients []string
	forward := itemCmd("forward", "Forward a pending RFI to specialists", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		return env.Engine.ForwardRFI(ctx, g, id, recipients)
	})
	forward.Flags().StringSliceVar(&recipients, "to", nil, "specialist recipients")
	cmd.AddCommand(forward)
	return cmd
}

func adicionalCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "adicional", Short: "Change orders"}

	var openID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List adicionales visible to --account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGrant(cmd.Context(), func(ctx context.Context, env *app.Env, g grant.Grant) error {
				var params deeplink.Params
				if openID > 0 {
					params.AdicionalID = &openID
				}
				res, err := env.Engine.ListAdicionales(ctx, g, params)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Presented", "Approved"})
				for _, ad := range res.Items {
					approved := ""
					if ad.ApprovedAmount != nil {
						approved = strconv.FormatInt(*ad.ApprovedAmount, 10)
					}
					tw.AppendRow(table.Row{ad.ID, ad.Title, ad.Status, ad.PresentedAmount, approved})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().Int64Var(&openID, "open", 0, "deep-linked adicional id")
	cmd.AddCommand(list)

	cmd.AddCommand(itemCmd("show", "Show an adicional", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		return env.Engine.GetAdicional(ctx, g, id)
	}))

	var n workflow.NewAdicional
	create := &cobra.Command{
		Use:   "create",
		Short: "Present a change order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGrant(cmd.Context(), func(ctx context.Context, env *app.Env, g grant.Grant) error {
				ad, err := env.Engine.CreateAdicional(ctx, g, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(ad)
			})
		},
	}
	create.Flags().StringVar(&n.Title, "title", "", "title")
	create.Flags().StringVar(&n.Description, "description", "", "description")
	create.Flags().StringVar(&n.Category, "category", "", "category")
	create.Flags().Int64Var(&n.PresentedAmount, "amount", 0, "presented amount")
	cmd.AddCommand(create)

	var amount int64
	approve := itemCmd("approve", "Approve an adicional", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		var approved *int64
		if amount > 0 {
			approved = &amount
		}
		return env.Engine.ApproveAdicional(ctx, g, id, approved)
	})
	approve.Flags().Int64Var(&amount, "amount", 0, "approved amount (defaults to the presented amount)")
	cmd.AddCommand(approve)

	var notes string
	reject := itemCmd("reject", "Reject an adicional", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		return env.Engine.RejectAdicional(ctx, g, id, notes)
	})
	reject.Flags().StringVar(&notes, "notes", "", "rejection notes")
	cmd.AddCommand(reject)
	return cmd
}

func pagoCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pago", Short: "Estados de pago"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List payment submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGrant(cmd.Context(), func(ctx context.Context, env *app.Env, g grant.Grant) error {
				items, err := env.Engine.ListPayments(ctx, g)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Period", "Total", "Status", "Approvals", "Missing"})
				for _, p := range items {
					tw.AppendRow(table.Row{
						p.ID, p.Period, p.TotalAmount, p.Status.Display(g.ActorRole),
						fmt.Sprintf("%d/%d", p.ApprovalProgress, p.ApprovalsRequired),
						strings.Join(workflow.MissingDocuments(p), ","),
					})
				}
				tw.Render()
				return nil
			})
		},
	})

	cmd.AddCommand(itemCmd("show", "Show a payment submission", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		return env.Engine.GetPayment(ctx, g, id)
	}))

	var n workflow.NewPayment
	var expires string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a payment submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if n.ExpiresOn, err = parseDate(expires); err != nil {
				return err
			}
			return withGrant(cmd.Context(), func(ctx context.Context, env *app.Env, g grant.Grant) error {
				p, err := env.Engine.CreatePayment(ctx, g, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	create.Flags().StringVar(&n.Period, "period", "", "period, e.g. 2026-02")
	create.Flags().Int64Var(&n.TotalAmount, "total", 0, "total amount")
	create.Flags().StringVar(&expires, "expires", "", "expiry date YYYY-MM-DD")
	create.Flags().IntVar(&n.ApprovalsRequired, "approvals", 0, "approvals required (defaults to config)")
	create.Flags().BoolVar(&n.Scheduled, "scheduled", false, "start as Programado")
	create.Flags().StringSliceVar(&n.RequiredDocs, "doc", nil, "required documents (defaults to config)")
	cmd.AddCommand(create)

	var doc string
	var missing bool
	docCmd := itemCmd("doc", "Mark a required document as present", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		return env.Engine.MarkPaymentDocument(ctx, g, id, doc, !missing)
	})
	docCmd.Flags().StringVar(&doc, "name", "", "document name")
	docCmd.Flags().BoolVar(&missing, "missing", false, "clear the document instead")
	cmd.AddCommand(docCmd)

	cmd.AddCommand(itemCmd("submit", "Submit to the mandante", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		return env.Engine.SubmitPayment(ctx, g, id)
	}))
	cmd.AddCommand(itemCmd("approve", "Record a mandante approval", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		return env.Engine.ApprovePayment(ctx, g, id)
	}))

	var notes string
	reject := itemCmd("reject", "Reject a submitted payment", func(ctx context.Context, env *app.Env, g grant.Grant, id int64) (any, error) {
		return env.Engine.RejectPayment(ctx, g, id, notes)
	})
	reject.Flags().StringVar(&notes, "notes", "", "optional notes")
	cmd.AddCommand(reject)

	cmd.AddCommand(pagoOpenCmd())
	return cmd
}

func pagoOpenCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "open [id]",
		Short: "Open scheduled payments (run by the scheduler)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("pass an id or --all")
			}
			return withNotifyingEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				scheduler := actorOrLocal()
				if all {
					n, err := env.Engine.OpenScheduled(ctx, scheduler)
					if err != nil {
						return err
					}
					fmt.Printf("opened %d payments\n", n)
					return nil
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				projectID, err := env.ProjectID(ctx, viper.GetString("project"))
				if err != nil {
					return err
				}
				p, err := env.Engine.OpenPayment(ctx, projectID, id, scheduler)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "open every Programado payment")
	return cmd
}
