package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/leave"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
)

var (
	Admin   = user.User{ID: "staff-admin", Name: "Admin", Roles: []string{user.RoleAdmin}}
	Teacher = user.User{ID: "staff-teacher", Name: "Teacher", Roles: []string{user.RoleTeacher}}
)

func Parent(id string) user.User {
	return user.User{ID: id, Name: "Parent " + id, Roles: []string{user.RoleParent}}
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator with every app validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	core.InitValidators(validate, translator)
	leave.InitValidators(validate, translator)
	return validate, translator
}

func Date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("Date(%q) failed: %v", s, err)
	}
	return d
}

// AliceAndBob is the reference roster: two students of class "5B", each with a guardian.
func AliceAndBob() roster.Import {
	return roster.Import{
		Guardians: []roster.Guardian{
			{ID: "P1", Name: "Alice's Mum", Email: "p1@test.cd"},
			{ID: "P2", Name: "Bob's Dad", Email: "p2@test.cd"},
		},
		Students: []roster.Student{
			{ID: "S1", ParentID: "P1", Name: "Alice", Grade: "5", ClassID: "5B"},
			{ID: "S2", ParentID: "P2", Name: "Bob", Grade: "5", ClassID: "5B"},
		},
	}
}

func SeedRoster(t *testing.T, repo roster.Repository, imp roster.Import) {
	t.Helper()
	if err := repo.SaveRoster(context.Background(), imp); err != nil {
		t.Fatalf("SeedRoster() failed: %v", err)
	}
}

// CreateLeave submits a leave request and optionally decides it.
func CreateLeave(t *testing.T, svc *leave.Service, nr leave.NewRequest, decision ...leave.Decision) leave.Request {
	t.Helper()
	ctx := context.Background()
	req, err := svc.Submit(ctx, nr)
	if err != nil {
		t.Fatalf("CreateLeave() failed: %v", err)
	}
	if len(decision) > 0 {
		if req, err = svc.Decide(ctx, Admin, req.ID, decision[0]); err != nil {
			t.Fatalf("CreateLeave() failed: %v", err)
		}
	}
	return req
}

// Logger is a core.Logger keeping every message in memory.
type Logger struct {
	mu       sync.Mutex
	Messages map[string][]string // {level: [messages]}
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger {
	return &Logger{Messages: make(map[string][]string)}
}

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages[level] = append(l.Messages[level], msg)
}

func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Messages[level])
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { panic(fmt.Sprintf("fatal: %s", msg)) }
