package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/app"
)

func newToolsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List and call registered tools",
	}
	cmd.AddCommand(newToolsListCmd(opts), newToolsCallCmd(opts))
	return cmd
}

func newToolsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
				defs := a.Tools.List()
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), defs)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tPARAMETERS\tDESCRIPTION")
				for _, d := range defs {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, strings.Join(d.Parameters.Required, ","), d.Description)
				}
				return tw.Flush()
			})
		},
	}
}

func newToolsCallCmd(opts *rootOptions) *cobra.Command {
	var paramsJSON string
	cmd := &cobra.Command{
		Use:   "call <name> [key=value...]",
		Short: "Invoke a tool",
		Example: `  lokal tools call get_system_info
  lokal tools call retrieve_documents query="local models" top_k=2
  lokal tools call read_file --params '{"file_path":"README.md"}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := toolParams(paramsJSON, args[1:])
			if err != nil {
				return err
			}
			req := &api.Request{
				Kind:       api.KindToolCall,
				Parameters: map[string]any{"tool_name": args[0], "tool_params": params},
			}
			return opts.process(cmd, req)
		},
	}
	cmd.Flags().StringVarP(&paramsJSON, "params", "p", "", "Tool parameters as a JSON object")
	return cmd
}

// toolParams merges a JSON object with key=value pairs. Values that parse
// as JSON (numbers, booleans, objects) keep their type; anything else is a
// string.
func toolParams(raw string, pairs []string) (map[string]any, error) {
	params := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("--params must be a JSON object: %w", err)
		}
	}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q must be key=value", p)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		params[key] = v
	}
	return params, nil
}
