package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
)

func (cli *commandLine) tokenCmd() *cobra.Command {
	var actor core.Actor
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for an employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor.EmployeeID = core.CleanString(actor.EmployeeID)
			if actor.EmployeeID == "" {
				_ = cmd.Usage()
				return errHelp
			}
			token, err := echoapi.GenerateToken(echoapi.NewClaims(actor, cli.conf), cli.conf)
			if err != nil {
				return errors.Wrap(err, "generating token")
			}
			_, err = fmt.Fprintln(cli.out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&actor.EmployeeID, "employee", "", "employee id (token subject)")
	cmd.Flags().StringVar(&actor.Name, "name", "", "employee display name")
	cmd.Flags().StringVar(&actor.Email, "email", "", "employee email")
	cmd.Flags().StringSliceVar(&actor.Roles, "role", nil, "role, repeatable (admin, scheduler)")
	return cmd
}
