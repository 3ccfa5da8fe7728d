package issue_test

import (
	"context"
	"testing"
	"time"

	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/repository"
	"github.com/ganot/perfscan/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIssueService_ResultsInProgress(t *testing.T) {
	ctx := context.Background()
	issues := &mocks.IssueRepository{}
	projects := &mocks.ProjectRepository{}
	projects.On("Get", ctx, "p1").Return(&project.Project{
		ID: "p1", ExpectedFileCount: 2, ProcessedFileCount: 1, Status: project.StatusProcessing,
	}, nil)
	projects.On("CountFailedFiles", ctx, "p1").Return(0, nil)

	svc := issue.NewService(issues, projects, nil)
	res, err := svc.Results(ctx, "p1")
	require.NoError(t, err)
	require.False(t, res.Ready())
	require.Equal(t, 50.0, res.Progress.Percentage)
	require.Nil(t, res.Statistics)
	issues.AssertNotCalled(t, "ListByProject", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssueService_ResultsCompleted(t *testing.T) {
	ctx := context.Background()
	done := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issues := &mocks.IssueRepository{}
	projects := &mocks.ProjectRepository{}
	projects.On("Get", ctx, "p1").Return(&project.Project{
		ID: "p1", ExpectedFileCount: 2, ProcessedFileCount: 2, Status: project.StatusCompleted, UpdatedAt: done,
	}, nil)
	projects.On("CountFailedFiles", ctx, "p1").Return(0, nil)
	issues.On("ListByProject", ctx, "p1", issue.ListOptions{}).Return([]issue.Issue{
		{ID: "i1", Confidence: issue.ConfidenceConfirmed, Severity: issue.SeverityHigh},
		{ID: "i2", Confidence: issue.ConfidencePotential, Severity: issue.SeverityLow},
		{ID: "i3", Confidence: issue.ConfidencePotential, Severity: issue.SeverityCritical},
	}, nil)

	svc := issue.NewService(issues, projects, nil)
	res, err := svc.Results(ctx, "p1")
	require.NoError(t, err)
	require.True(t, res.Ready())
	require.Len(t, res.Confirmed, 1)
	require.Len(t, res.Potential, 2)
	require.Equal(t, 3, res.Statistics.IssuesFound)
	require.Equal(t, 2, res.Statistics.FilesAnalyzed)
	require.Equal(t, issue.SeverityCritical, res.Statistics.HighestSeverity)
	require.Equal(t, 1, res.Statistics.BySeverity.High)
	require.Equal(t, done, *res.Statistics.CompletedAt)
}

func TestIssueService_ResultsFailed(t *testing.T) {
	ctx := context.Background()
	projects := &mocks.ProjectRepository{}
	projects.On("Get", ctx, "p1").Return(&project.Project{
		ID: "p1", ExpectedFileCount: 2, ProcessedFileCount: 1, Status: project.StatusFailed, ErrorMessage: "provider down",
	}, nil)
	projects.On("CountFailedFiles", ctx, "p1").Return(1, nil)

	svc := issue.NewService(&mocks.IssueRepository{}, projects, nil)
	res, err := svc.Results(ctx, "p1")
	require.ErrorIs(t, err, issue.ErrProjectFailed)
	require.Equal(t, "provider down", res.Project.ErrorMessage)
	require.Equal(t, 1, res.Progress.Failed)
}

func TestIssueService_ListUnknownProject(t *testing.T) {
	ctx := context.Background()
	projects := &mocks.ProjectRepository{}
	projects.On("Get", ctx, "missing").Return(nil, repository.ErrNotFound)

	svc := issue.NewService(&mocks.IssueRepository{}, projects, nil)
	_, err := svc.List(ctx, "missing", issue.ListOptions{})
	require.ErrorIs(t, err, project.ErrProjectNotFound)
}
