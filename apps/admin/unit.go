package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/ratiba/core/class"
)

func (cli *commandLine) unitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unit",
		Short: "Inspect and advance class units",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}

	suggest := &cobra.Command{
		Use:   "suggest CLASS_ID",
		Short: "Print the current, next and transition unit of a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sug, err := cli.classSvc.SuggestUnits(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cli.out, "current: %s\nnext: %s\ntransition: %s\n", sug.CurrentUnit, sug.NextUnit, sug.TransitionUnit)
			return err
		},
	}

	var tr class.TransitionRequest
	advance := &cobra.Command{
		Use:   "advance CLASS_ID",
		Short: "Move a class to another unit (two units ahead by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tr.Validate(cli.validate); err != nil {
				return err
			}
			cls, err := cli.classSvc.TransitionUnit(ctxOf(cmd), cliActor, args[0], tr)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cli.out, "%s is now on %s\n", cls.Name, cls.CurrentUnit)
			return err
		},
	}
	advance.Flags().StringVar(&tr.ToUnit, "to", "", "target unit (U1..)")
	advance.Flags().StringVar(&tr.TransitionDate, "date", "", "transition date (YYYY-MM-DD), today by default")

	cmd.AddCommand(suggest, advance)
	return cmd
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
