package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/ratiba/core/session"
)

type scheduleOpts struct {
	classID  string
	date     string
	lesson   string
	name     string
	timezone string
	sessions []string
}

func (cli *commandLine) scheduleCmd() *cobra.Command {
	var opts scheduleOpts
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Create a main session with its sub-sessions",
		Example: `  admin schedule --class c1 --date 2024-05-13 --lesson L2 \
    --session "REP,emp-1,,room-1,09:00,09:30" --session "PRA,emp-2,emp-1,room-1,09:30,10:30"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.classID == "" || len(opts.sessions) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.schedule(ctxOf(cmd), opts)
		},
	}
	cmd.Flags().StringVar(&opts.classID, "class", "", "class id")
	cmd.Flags().StringVar(&opts.date, "date", "", "scheduled date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.lesson, "lesson", "", "curriculum lesson (L1..L40)")
	cmd.Flags().StringVar(&opts.name, "name", "", "lesson name, for classes off the curriculum")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "", "IANA timezone of the times (defaults to the configured one)")
	cmd.Flags().StringArrayVar(&opts.sessions, "session", nil, `sub-session as "TYPE,teacher,assistant,room,HH:MM,HH:MM", repeatable`)
	return cmd
}

func parseDraft(value string) (session.Draft, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 6 {
		return session.Draft{}, errors.Errorf("invalid session %q: want TYPE,teacher,assistant,room,start,end", value)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return session.Draft{
		SubjectType:         parts[0],
		TeacherID:           parts[1],
		TeachingAssistantID: parts[2],
		LocationID:          parts[3],
		StartTime:           parts[4],
		EndTime:             parts[5],
	}, nil
}

func (cli *commandLine) schedule(ctx context.Context, opts scheduleOpts) error {
	cls, err := cli.classSvc.Get(ctx, opts.classID)
	if err != nil {
		return err
	}

	c := session.NewComposer()
	c.SetClass(cls)
	c.LessonIndex = opts.lesson
	c.ManualName = opts.name
	c.ScheduledDate = opts.date
	c.Timezone = opts.timezone
	for _, value := range opts.sessions {
		d, err := parseDraft(value)
		if err != nil {
			return err
		}
		c.Add(d)
	}

	nm, err := c.Build()
	if err != nil {
		return err
	}
	if err = nm.Validate(cli.validate); err != nil {
		return err
	}

	ms, err := cli.sessionSvc.CreateMainSession(ctx, cliActor, nm)
	if err != nil {
		if cErr, ok := session.IsConflict(err); ok {
			d := cErr.Details
			fmt.Fprintf(cli.out, "%s already teaches at %s on %s; %s requested %s\n",
				d.TeacherName, d.ConflictTime, d.ConflictDate, d.SessionType, d.RequestedTime)
		}
		return err
	}
	_, err = fmt.Fprintf(cli.out, "%s\t%s\t%d sessions\n", ms.ID, ms.Name, len(ms.Sessions))
	return err
}
