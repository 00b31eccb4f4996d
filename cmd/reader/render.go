package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reader-backend/internal/engine"
	"reader-backend/internal/metadata"
	"reader-backend/internal/render"
)

func renderCmd() *cobra.Command {
	var (
		lang   string
		params []string
	)
	cmd := &cobra.Command{
		Use:   "render <module> [auto_item]",
		Short: "Run one reader request and print the outcome",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			moduleID, err := engine.ParseModuleID(args[0])
			if err != nil {
				return err
			}
			p := engine.MapParams{}
			for _, kv := range params {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --param %q, want name=value", kv)
				}
				p[k] = v
			}
			if len(args) == 2 {
				p[metadata.DefaultAutoItemParam] = args[1]
			}
			req := engine.Request{Params: p, Language: lang}

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.newManager(render.New(a.cfg.Templates)).Handle(ctx, moduleID, req)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch out.Status {
			case engine.StatusOK:
				fmt.Fprintln(w, out.Body)
			case engine.StatusNotFound:
				fmt.Fprintf(w, "not found (%s)\n", out.Stage)
			case engine.StatusForbidden:
				fmt.Fprintf(w, "forbidden (%s)\n", out.Stage)
			case engine.StatusRedirect:
				fmt.Fprintf(w, "redirect to %s\n", out.RedirectURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "request language")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "request parameter name=value (repeatable)")
	return cmd
}
