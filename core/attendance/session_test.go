package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/tests"
)

func TestBuild(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	env.approveLeave(t, "S1", "P1", "2024-05-20", "2024-05-22")

	students := testutil.AliceAndBob().Students

	tests := []struct {
		name string
		date string
		want map[string]attendance.Status
	}{
		{
			name: "inside leave",
			date: "2024-05-21",
			want: map[string]attendance.Status{"S1": attendance.StatusExcused, "S2": attendance.StatusPresent},
		},
		{
			name: "outside leave",
			date: "2024-05-23",
			want: map[string]attendance.Status{"S1": attendance.StatusPresent, "S2": attendance.StatusPresent},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := attendance.Build(ctx, students, env.leaveSvc, "5B", testutil.Date(t, tt.date))
			require.NoError(t, err)
			require.Len(t, s.Entries, 2)
			assert.Equal(t, "S1", s.Entries[0].StudentID, "roster order")
			for _, e := range s.Entries {
				assert.Equal(t, tt.want[e.StudentID], e.Status, e.StudentID)
				assert.Equal(t, attendance.OriginDerived, e.Origin)
			}
			assert.False(t, s.Finalized)
		})
	}
}

func TestBuild_isDeterministic(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	env.approveLeave(t, "S1", "P1", "2024-05-20", "2024-05-22")

	students := testutil.AliceAndBob().Students
	d := testutil.Date(t, "2024-05-21")
	first, err := attendance.Build(ctx, students, env.leaveSvc, "5B", d)
	require.NoError(t, err)
	second, err := attendance.Build(ctx, students, env.leaveSvc, "5B", d)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuild_emptyClass(t *testing.T) {
	env := setup(t)
	s, err := attendance.Build(context.Background(), nil, env.leaveSvc, "6A", testutil.Date(t, "2024-05-21"))
	require.NoError(t, err)
	assert.Empty(t, s.Entries)
	assert.Equal(t, attendance.Summary{}, attendance.Summarize(s))
}

func TestMark(t *testing.T) {
	env := setup(t)
	env.approveLeave(t, "S1", "P1", "2024-05-20", "2024-05-22")
	s, err := attendance.Build(context.Background(), testutil.AliceAndBob().Students, env.leaveSvc, "5B", testutil.Date(t, "2024-05-21"))
	require.NoError(t, err)

	finalized := s.Clone()
	finalized.Finalized = true
	at := time.Date(2024, time.May, 21, 8, 15, 0, 0, time.UTC)

	tests := []struct {
		name      string
		session   *attendance.Session
		byParent  bool
		studentID string
		status    attendance.Status
		check     func(err error) bool
	}{
		{name: "parent cannot mark", session: s, byParent: true, studentID: "S2", status: attendance.StatusLate, check: core.IsPermissionDenied},
		{name: "unknown status", session: s, studentID: "S2", status: "ABSENT", check: core.IsValidation},
		{name: "unknown student", session: s, studentID: "lol", status: attendance.StatusLate, check: core.IsNotFound},
		{name: "finalized session", session: finalized, studentID: "S2", status: attendance.StatusLate, check: core.IsInvalidState},
		{name: "override derived excuse", session: s, studentID: "S1", status: attendance.StatusPresent},
		{name: "mark late", session: s, studentID: "S2", status: attendance.StatusLate},
		{name: "mark excused without leave", session: s, studentID: "S2", status: attendance.StatusExcused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := testutil.Teacher
			if tt.byParent {
				actor = testutil.Parent("P2")
			}
			before := tt.session.Clone()

			next, err := attendance.Mark(actor, tt.session, tt.studentID, tt.status, at)
			assert.Equal(t, before, tt.session, "input session must not change")
			if tt.check != nil {
				require.Error(t, err)
				assert.True(t, tt.check(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)

			e, ok := next.Entry(tt.studentID)
			require.True(t, ok)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, attendance.OriginOverridden, e.Origin)
			assert.Equal(t, testutil.Teacher.ID, e.MarkedBy)
			require.NotNil(t, e.MarkedAt)
			assert.True(t, at.Equal(*e.MarkedAt))
			assert.Equal(t, tt.session.Version+1, next.Version)
			assert.Equal(t, len(tt.session.Entries), attendance.Summarize(next).Total)
		})
	}
}

func TestSummarize(t *testing.T) {
	s := &attendance.Session{Entries: []attendance.Entry{
		{StudentID: "1", Status: attendance.StatusPresent},
		{StudentID: "2", Status: attendance.StatusPresent},
		{StudentID: "3", Status: attendance.StatusLate},
		{StudentID: "4", Status: attendance.StatusExcused},
		{StudentID: "5", Status: attendance.StatusUnexcused},
	}}
	want := attendance.Summary{Total: 5, Present: 2, Late: 1, Excused: 1, Unexcused: 1}
	assert.Equal(t, want, attendance.Summarize(s))
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   attendance.Status
		wantOk bool
	}{
		{in: "PRESENT", want: attendance.StatusPresent, wantOk: true},
		{in: " late ", want: attendance.StatusLate, wantOk: true},
		{in: "Unexcused", want: attendance.StatusUnexcused, wantOk: true},
		{in: "absent", want: "ABSENT"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := attendance.ParseStatus(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOk, ok)
		})
	}
}

func TestSession_Clone(t *testing.T) {
	at := time.Now().UTC()
	s := &attendance.Session{
		ClassID: "5B",
		Entries: []attendance.Entry{{StudentID: "S1", Status: attendance.StatusLate, MarkedAt: &at}},
	}
	c := s.Clone()
	c.Entries[0].Status = attendance.StatusPresent
	*c.Entries[0].MarkedAt = at.Add(time.Hour)

	assert.Equal(t, attendance.StatusLate, s.Entries[0].Status)
	assert.True(t, at.Equal(*s.Entries[0].MarkedAt))
}
