package roster

import "net/mail"

// Employee is a teacher or teaching assistant as seen by the scheduler.
type Employee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Address returns the employee's mail address; ok is false when no email is on file.
func (e Employee) Address() (addr mail.Address, ok bool) {
	if e.Email == "" {
		return mail.Address{}, false
	}
	return mail.Address{Name: e.Name, Address: e.Email}, true
}

// Room is a classroom or any other bookable location.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type QueryFilter struct {
	Search string   `query:"search"`
	IDs    []string `query:"id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf == nil || (qf.Search == "" && len(qf.IDs) == 0)
}
