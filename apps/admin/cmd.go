package main

import (
	"database/sql"
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/session"
)

var errHelp = errors.New("help provided")

// cliActor is recorded as the author of everything done from the command line.
var cliActor = core.Actor{EmployeeID: "admin-cli", Name: "Admin CLI"}

type commandLine struct {
	conf       *core.Config
	db         *sql.DB // nil with the memory engine
	classSvc   class.ServiceInterface
	sessionSvc session.ServiceInterface
	validate   *validator.Validate
	out        io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Ratiba administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(cli.migrateCmd())
	root.AddCommand(cli.tokenCmd())
	root.AddCommand(cli.scheduleCmd())
	root.AddCommand(cli.unitCmd())
	return root
}

// run executes args, os.Args style (program name first).
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}
