package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tackboard/tackboard/internal/activity"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/service"
	"github.com/tackboard/tackboard/internal/tenancy"
	"github.com/tackboard/tackboard/internal/testdb"
	"gorm.io/gorm"
)

// env wires the services against a throwaway database with one tenant
// ("acme") owning one project ("WEB"), created through the services
// themselves so the fixtures exercise the same paths production does.
type env struct {
	t     *testing.T
	db    *gorm.DB
	guard *tenancy.Guard

	orgs     *service.OrgService
	projects *service.ProjectService
	board    *service.BoardService

	owner uuid.UUID
}

func newEnv(t *testing.T, notifier activity.Notifier) *env {
	t.Helper()
	if notifier == nil {
		notifier = activity.NoopNotifier{}
	}
	db := testdb.Open(t)
	e := &env{
		t:        t,
		db:       db,
		guard:    tenancy.NewGuard(db),
		orgs:     service.NewOrgService(db),
		projects: service.NewProjectService(db),
		board:    service.NewBoardService(db, activity.NewRecorder(), notifier),
	}
	ctx := context.Background()

	e.owner = e.addUser("owner@acme.test")
	_, err := e.orgs.CreateOrganization(ctx, e.owner, service.CreateOrgInput{Slug: "acme", Name: "Acme"})
	require.NoError(t, err)

	oh, err := e.guard.ResolveOrg(ctx, e.owner, "acme")
	require.NoError(t, err)
	_, err = e.projects.CreateProject(ctx, oh, service.CreateProjectInput{Key: "WEB", Name: "Website"})
	require.NoError(t, err)
	return e
}

func (e *env) addUser(email string) uuid.UUID {
	e.t.Helper()
	u := &model.User{Email: email, Name: email}
	require.NoError(e.t, e.db.Create(u).Error)
	return u.ID
}

func (e *env) orgHandle(caller uuid.UUID) tenancy.OrgHandle {
	e.t.Helper()
	h, err := e.guard.ResolveOrg(context.Background(), caller, "acme")
	require.NoError(e.t, err)
	return h
}

func (e *env) projectHandle(caller uuid.UUID) tenancy.ProjectHandle {
	e.t.Helper()
	h, err := e.guard.ResolveProject(context.Background(), caller, "acme", "WEB")
	require.NoError(e.t, err)
	return h
}

func (e *env) taskHandle(caller, taskID uuid.UUID) tenancy.TaskHandle {
	e.t.Helper()
	h, err := e.guard.ResolveTask(context.Background(), caller, taskID)
	require.NoError(e.t, err)
	return h
}

// enroll adds a user to the org and the project with the given roles.
func (e *env) enroll(userID uuid.UUID, orgRole model.OrgRole, projectRole model.ProjectRole) {
	e.t.Helper()
	ctx := context.Background()
	_, err := e.orgs.AddMember(ctx, e.orgHandle(e.owner), service.AddOrgMemberInput{
		UserID: userID, Role: orgRole,
	})
	require.NoError(e.t, err)
	_, err = e.projects.AddMember(ctx, e.projectHandle(e.owner), service.AddProjectMemberInput{
		UserID: userID, Role: projectRole,
	})
	require.NoError(e.t, err)
}

func (e *env) columns(caller uuid.UUID) []model.Column {
	e.t.Helper()
	cols, err := e.board.Columns(context.Background(), e.projectHandle(caller))
	require.NoError(e.t, err)
	return cols
}

func (e *env) createTask(caller uuid.UUID, title string) *model.Task {
	e.t.Helper()
	task, err := e.board.CreateTask(context.Background(), e.projectHandle(caller), service.CreateTaskInput{
		Title: title,
	})
	require.NoError(e.t, err)
	return task
}

func (e *env) activityCount(taskID uuid.UUID, action string) int64 {
	e.t.Helper()
	var n int64
	require.NoError(e.t, e.db.Model(&model.ActivityLogEntry{}).
		Where("task_id = ? AND action = ?", taskID, action).
		Count(&n).Error)
	return n
}

// uniqueEmail avoids collisions across helpers within one test.
var emailSeq int

func nextEmail(prefix string) string {
	emailSeq++
	return fmt.Sprintf("%s%d@acme.test", prefix, emailSeq)
}
