package leave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/leave"
	"github.com/trezcool/mahudhurio/storage/database/dummy"
	"github.com/trezcool/mahudhurio/tests"
)

func setup(t *testing.T) (*leave.Service, leave.Repository) {
	db, err := dummydb.Open()
	require.NoError(t, err)

	students := dummydb.NewRosterRepository(db)
	testutil.SeedRoster(t, students, testutil.AliceAndBob())

	repo := dummydb.NewLeaveRepository(db)
	validate, translator := testutil.NewValidator()
	return leave.NewService(repo, students, validate, translator), repo
}

func TestService_Submit(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	valid := func() leave.NewRequest {
		return leave.NewRequest{
			StudentID: "S1",
			ParentID:  "P1",
			StartDate: testutil.Date(t, "2024-05-20"),
			EndDate:   testutil.Date(t, "2024-05-22"),
			Reason:    "family trip",
		}
	}

	tests := []struct {
		name       string
		modify     func(nr *leave.NewRequest)
		wantFields map[string]string
	}{
		{name: "valid"},
		{name: "single day", modify: func(nr *leave.NewRequest) { nr.EndDate = nr.StartDate }},
		{
			name:       "empty reason",
			modify:     func(nr *leave.NewRequest) { nr.Reason = "" },
			wantFields: map[string]string{"reason": "this field cannot be blank"},
		},
		{
			name:       "blank reason",
			modify:     func(nr *leave.NewRequest) { nr.Reason = "   " },
			wantFields: map[string]string{"reason": "this field cannot be blank"},
		},
		{
			name: "inverted date range",
			modify: func(nr *leave.NewRequest) {
				nr.StartDate = testutil.Date(t, "2024-06-12")
				nr.EndDate = testutil.Date(t, "2024-06-10")
			},
			wantFields: map[string]string{"end_date": "end_date cannot be before start_date"},
		},
		{
			name:       "missing dates",
			modify:     func(nr *leave.NewRequest) { nr.StartDate, nr.EndDate = core.Date{}, core.Date{} },
			wantFields: map[string]string{"start_date": "this field is required", "end_date": "this field is required"},
		},
		{
			name:       "parent not linked to student",
			modify:     func(nr *leave.NewRequest) { nr.ParentID = "P2" },
			wantFields: map[string]string{"student_id": "student is not linked to this guardian"},
		},
		{
			name:       "unknown student",
			modify:     func(nr *leave.NewRequest) { nr.StudentID = "lol" },
			wantFields: map[string]string{"student_id": "student is not linked to this guardian"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nr := valid()
			if tt.modify != nil {
				tt.modify(&nr)
			}

			req, err := svc.Submit(ctx, nr)
			if tt.wantFields != nil {
				var vErr *core.ValidationError
				require.ErrorAs(t, err, &vErr)
				got := make(map[string]string, len(vErr.Fields))
				for _, f := range vErr.Fields {
					got[f.Field] = f.Error
				}
				assert.Equal(t, tt.wantFields, got)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, req.ID)
			assert.Equal(t, leave.StatusPending, req.Status)
			assert.Equal(t, "Alice", req.StudentName)
			assert.Equal(t, "P1", req.ParentID)
			assert.False(t, req.SubmittedAt.IsZero())
			assert.Nil(t, req.DecidedAt)
		})
	}
}

func TestService_Submit_leavesStoreUntouchedOnFailure(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, leave.NewRequest{
		StudentID: "S1",
		ParentID:  "P1",
		StartDate: testutil.Date(t, "2024-06-12"),
		EndDate:   testutil.Date(t, "2024-06-10"),
		Reason:    "trip",
	})
	require.True(t, core.IsValidation(err))

	reqs, err := repo.QueryLeaveRequests(ctx, leave.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestService_Decide(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	newReq := func() leave.Request {
		return testutil.CreateLeave(t, svc, leave.NewRequest{
			StudentID: "S2",
			ParentID:  "P2",
			StartDate: testutil.Date(t, "2024-05-20"),
			EndDate:   testutil.Date(t, "2024-05-20"),
			Reason:    "dentist",
		})
	}
	approved := testutil.CreateLeave(t, svc, leave.NewRequest{
		StudentID: "S1",
		ParentID:  "P1",
		StartDate: testutil.Date(t, "2024-05-20"),
		EndDate:   testutil.Date(t, "2024-05-22"),
		Reason:    "trip",
	}, leave.DecisionApprove)

	tests := []struct {
		name       string
		id         string
		decision   leave.Decision
		byParent   bool
		wantStatus leave.Status
		check      func(err error) bool
	}{
		{name: "parent cannot decide", id: newReq().ID, decision: leave.DecisionApprove, byParent: true, check: core.IsPermissionDenied},
		{name: "unknown id", id: "lol", decision: leave.DecisionApprove, check: core.IsNotFound},
		{name: "invalid decision", id: newReq().ID, decision: "MAYBE", check: core.IsValidation},
		{name: "already approved", id: approved.ID, decision: leave.DecisionReject, check: core.IsInvalidState},
		{name: "approve", id: newReq().ID, decision: leave.DecisionApprove, wantStatus: leave.StatusApproved},
		{name: "reject", id: newReq().ID, decision: leave.DecisionReject, wantStatus: leave.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := testutil.Teacher
			if tt.byParent {
				actor = testutil.Parent("P2")
			}

			req, err := svc.Decide(ctx, actor, tt.id, tt.decision)
			if tt.check != nil {
				require.Error(t, err)
				assert.True(t, tt.check(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, req.Status)
			assert.Equal(t, testutil.Teacher.ID, req.DecidedBy)
			assert.NotNil(t, req.DecidedAt)
			assert.Equal(t, 2, req.Version)
		})
	}
}

func TestService_Decide_isTerminal(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	req := testutil.CreateLeave(t, svc, leave.NewRequest{
		StudentID: "S1",
		ParentID:  "P1",
		StartDate: testutil.Date(t, "2024-05-20"),
		EndDate:   testutil.Date(t, "2024-05-22"),
		Reason:    "trip",
	}, leave.DecisionApprove)

	_, err := svc.Decide(ctx, testutil.Admin, req.ID, leave.DecisionReject)
	require.ErrorIs(t, err, leave.ErrNotPending)

	stored, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, stored.Status)
	assert.Equal(t, req.Version, stored.Version)
}

func TestService_IsExcused(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	submit := func(studentID, parentID, start, end string, decision ...leave.Decision) {
		testutil.CreateLeave(t, svc, leave.NewRequest{
			StudentID: studentID,
			ParentID:  parentID,
			StartDate: testutil.Date(t, start),
			EndDate:   testutil.Date(t, end),
			Reason:    "reason",
		}, decision...)
	}
	submit("S1", "P1", "2024-05-20", "2024-05-22", leave.DecisionApprove)
	submit("S1", "P1", "2024-05-21", "2024-05-25", leave.DecisionApprove) // overlapping
	submit("S2", "P2", "2024-05-20", "2024-05-22")                        // pending
	submit("S2", "P2", "2024-05-23", "2024-05-23", leave.DecisionReject)

	tests := []struct {
		name      string
		studentID string
		date      string
		want      bool
	}{
		{name: "before range", studentID: "S1", date: "2024-05-19", want: false},
		{name: "start inclusive", studentID: "S1", date: "2024-05-20", want: true},
		{name: "inside range", studentID: "S1", date: "2024-05-21", want: true},
		{name: "end inclusive", studentID: "S1", date: "2024-05-22", want: true},
		{name: "overlapping request", studentID: "S1", date: "2024-05-25", want: true},
		{name: "after ranges", studentID: "S1", date: "2024-05-26", want: false},
		{name: "pending does not excuse", studentID: "S2", date: "2024-05-21", want: false},
		{name: "rejected does not excuse", studentID: "S2", date: "2024-05-23", want: false},
		{name: "unknown student", studentID: "lol", date: "2024-05-21", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsExcused(ctx, tt.studentID, testutil.Date(t, tt.date))
			require.NoError(t, err)
			if got != tt.want {
				t.Errorf("IsExcused() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_Query(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	nr := func(studentID, parentID string) leave.NewRequest {
		return leave.NewRequest{
			StudentID: studentID,
			ParentID:  parentID,
			StartDate: testutil.Date(t, "2024-05-20"),
			EndDate:   testutil.Date(t, "2024-05-20"),
			Reason:    "reason",
		}
	}
	alice := testutil.CreateLeave(t, svc, nr("S1", "P1"))
	bob := testutil.CreateLeave(t, svc, nr("S2", "P2"), leave.DecisionApprove)

	tests := []struct {
		name   string
		filter leave.QueryFilter
		parent string
		want   []string
	}{
		{name: "staff sees all", want: []string{alice.ID, bob.ID}},
		{name: "staff filters by status", filter: leave.QueryFilter{Status: "approved"}, want: []string{bob.ID}},
		{name: "staff filters by student", filter: leave.QueryFilter{StudentID: "S1"}, want: []string{alice.ID}},
		{name: "parent sees own", parent: "P1", want: []string{alice.ID}},
		{name: "parent cannot widen filter", parent: "P1", filter: leave.QueryFilter{ParentID: "P2"}, want: []string{alice.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := testutil.Admin
			if tt.parent != "" {
				actor = testutil.Parent(tt.parent)
			}
			reqs, err := svc.Query(ctx, actor, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(reqs))
			for _, r := range reqs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestService_Retrieve(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	req := testutil.CreateLeave(t, svc, leave.NewRequest{
		StudentID: "S1",
		ParentID:  "P1",
		StartDate: testutil.Date(t, "2024-05-20"),
		EndDate:   testutil.Date(t, "2024-05-20"),
		Reason:    "reason",
	})

	got, err := svc.Retrieve(ctx, testutil.Parent("P1"), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	_, err = svc.Retrieve(ctx, testutil.Teacher, req.ID)
	require.NoError(t, err)

	_, err = svc.Retrieve(ctx, testutil.Parent("P2"), req.ID)
	assert.True(t, core.IsPermissionDenied(err))

	_, err = svc.Retrieve(ctx, testutil.Admin, "lol")
	assert.True(t, core.IsNotFound(err))
}
