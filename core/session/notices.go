package session

import (
	"context"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/wallclock"
)

const assignmentTemplate = "session_assigned"

type (
	assignmentLine struct {
		SubjectType string
		TimeRange   string
		Role        string
		RoomName    string
	}

	assignmentData struct {
		Name       string
		ClassName  string
		Date       string
		Timezone   string
		LessonName string
		Sessions   []assignmentLine
	}
)

// notifyAssignments mails every teacher and assistant of ms the sub-sessions they were given.
// It runs after commit; failures are logged and never undo the booking.
func (svc *Service) notifyAssignments(ctx context.Context, cls class.Class, ms MainSession, loc *time.Location) {
	msgs, err := svc.assignmentMessages(ctx, cls, ms, loc)
	if err != nil {
		svc.logger.Error("preparing assignment notices", errors.Wrap(err, "preparing assignment notices"),
			map[string]interface{}{"main_session_id": ms.ID})
		return
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func (svc *Service) assignmentMessages(ctx context.Context, cls class.Class, ms MainSession, loc *time.Location) ([]*core.EmailMessage, error) {
	ids := make([]string, 0, 2*len(ms.Sessions))
	for _, s := range ms.Sessions {
		ids = append(ids, core.StringValue(s.TeacherID), core.StringValue(s.TeachingAssistantID))
	}
	employees, err := svc.roster.Employees(ctx, ids...)
	if err != nil {
		return nil, err
	}
	roomIDs := make([]string, 0, len(ms.Sessions))
	for _, s := range ms.Sessions {
		roomIDs = append(roomIDs, core.StringValue(s.LocationID))
	}
	rooms, err := svc.roster.Rooms(ctx, roomIDs...)
	if err != nil {
		return nil, err
	}

	lines := make(map[string][]assignmentLine, len(employees))
	addLine := func(empID *string, role string, s Session) {
		if empID == nil {
			return
		}
		if _, ok := employees[*empID]; !ok {
			return
		}
		lines[*empID] = append(lines[*empID], assignmentLine{
			SubjectType: string(s.SubjectType),
			TimeRange:   wallclock.FormatRange(s.StartTime, s.EndTime, loc),
			Role:        role,
			RoomName:    rooms[core.StringValue(s.LocationID)].Name,
		})
	}
	for _, s := range ms.Sessions {
		addLine(s.TeacherID, "teacher", s)
		addLine(s.TeachingAssistantID, "teaching assistant", s)
	}

	empIDs := make([]string, 0, len(lines))
	for id := range lines {
		empIDs = append(empIDs, id)
	}
	sort.Strings(empIDs)

	msgs := make([]*core.EmailMessage, 0, len(empIDs))
	for _, id := range empIDs {
		emp := employees[id]
		addr, ok := emp.Address()
		if !ok {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{addr},
			Subject:      "New session: " + ms.Name + " on " + ms.ScheduledDate,
			TemplateName: assignmentTemplate,
			TemplateData: assignmentData{
				Name:       emp.Name,
				ClassName:  cls.Name,
				Date:       ms.ScheduledDate,
				Timezone:   loc.String(),
				LessonName: ms.Name,
				Sessions:   lines[id],
			},
		})
	}
	return msgs, nil
}
