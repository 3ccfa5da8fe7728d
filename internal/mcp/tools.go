package mcp

import (
	"context"
	"log/slog"

	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// CreateProjectArgs defines the input of create_project.
type CreateProjectArgs struct {
	FileCount int `json:"file_count" jsonschema:"Number of files that will be uploaded into the project"`
}

// ListProjectsArgs defines the input of list_projects.
type ListProjectsArgs struct{}

// GetProjectArgs defines the input of get_project.
type GetProjectArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project ID"`
}

// UploadFileArgs defines the input of upload_file.
type UploadFileArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project ID"`
	Filename  string `json:"filename" jsonschema:"File name including extension (e.g. app.py or load.jmx)"`
	Content   string `json:"content" jsonschema:"Full text content of the file"`
}

// ProcessFileArgs defines the input of process_file.
type ProcessFileArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project ID"`
	FileID    string `json:"file_id" jsonschema:"ID of a pending file in the project"`
}

// ListIssuesArgs defines the input of list_issues.
type ListIssuesArgs struct {
	ProjectID  string `json:"project_id" jsonschema:"Project ID"`
	FileID     string `json:"file_id,omitempty" jsonschema:"Only return issues of this file"`
	Confidence string `json:"confidence,omitempty" jsonschema:"Only return confirmed or potential issues"`
}

type toolHandlers struct {
	services Services
	logger   *slog.Logger
}

func registerTools(server *sdkmcp.Server, h *toolHandlers) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_project",
		Description: "Create an analysis project that expects file_count uploaded files.",
	}, h.createProject)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_projects",
		Description: "List analysis projects, newest first, with upload and issue counts.",
	}, h.listProjects)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_project",
		Description: "Get a project's status and processing progress.",
	}, h.getProject)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "upload_file",
		Description: "Upload one source file into a project. Uploads stop once the expected file count is reached.",
	}, h.uploadFile)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "process_file",
		Description: "Analyze one pending file and return its correlated issues and the resulting project status.",
	}, h.processFile)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_issues",
		Description: "List the correlated issues of a project ordered by file and line.",
	}, h.listIssues)
}

func (h *toolHandlers) createProject(ctx context.Context, _ *sdkmcp.CallToolRequest, args CreateProjectArgs) (*sdkmcp.CallToolResult, any, error) {
	proj, err := h.services.Projects.Create(ctx, project.CreateRequest{ExpectedFileCount: args.FileCount})
	if err != nil {
		return h.fail("create_project", err), nil, nil
	}
	res, err := toolResult(proj)
	return res, nil, err
}

func (h *toolHandlers) listProjects(ctx context.Context, _ *sdkmcp.CallToolRequest, _ ListProjectsArgs) (*sdkmcp.CallToolResult, any, error) {
	projects, err := h.services.Projects.List(ctx)
	if err != nil {
		return h.fail("list_projects", err), nil, nil
	}
	if projects == nil {
		projects = []project.ProjectSummary{}
	}
	res, err := toolResult(map[string]any{"projects": projects})
	return res, nil, err
}

func (h *toolHandlers) getProject(ctx context.Context, _ *sdkmcp.CallToolRequest, args GetProjectArgs) (*sdkmcp.CallToolResult, any, error) {
	proj, progress, err := h.services.Projects.GetProgress(ctx, args.ProjectID)
	if err != nil {
		return h.fail("get_project", err), nil, nil
	}
	res, err := toolResult(map[string]any{"project": proj, "progress": progress})
	return res, nil, err
}

func (h *toolHandlers) uploadFile(ctx context.Context, _ *sdkmcp.CallToolRequest, args UploadFileArgs) (*sdkmcp.CallToolResult, any, error) {
	up, err := h.services.Files.Upload(ctx, file.UploadRequest{
		ProjectID: args.ProjectID,
		Name:      args.Filename,
		Content:   args.Content,
	})
	if err != nil {
		return h.fail("upload_file", err), nil, nil
	}
	up.File.Content = ""
	res, err := toolResult(map[string]any{
		"file":           up.File,
		"uploaded_count": up.UploadedCount,
		"expected_count": up.ExpectedCount,
		"all_uploaded":   up.AllUploaded(),
	})
	return res, nil, err
}

func (h *toolHandlers) processFile(ctx context.Context, _ *sdkmcp.CallToolRequest, args ProcessFileArgs) (*sdkmcp.CallToolResult, any, error) {
	out, err := h.services.Processor.ProcessFile(ctx, args.ProjectID, args.FileID)
	if err != nil {
		return h.fail("process_file", err), nil, nil
	}
	out.File.Content = ""
	if out.Issues == nil {
		out.Issues = []issue.Issue{}
	}
	res, err := toolResult(out)
	return res, nil, err
}

func (h *toolHandlers) listIssues(ctx context.Context, _ *sdkmcp.CallToolRequest, args ListIssuesArgs) (*sdkmcp.CallToolResult, any, error) {
	var opts issue.ListOptions
	if args.FileID != "" {
		opts.FileID = &args.FileID
	}
	if args.Confidence != "" {
		c := issue.Confidence(args.Confidence)
		if !c.Valid() {
			return h.fail("list_issues", errUnknownConfidence(args.Confidence)), nil, nil
		}
		opts.Confidence = &c
	}

	issues, err := h.services.Issues.List(ctx, args.ProjectID, opts)
	if err != nil {
		return h.fail("list_issues", err), nil, nil
	}
	if issues == nil {
		issues = []issue.Issue{}
	}
	res, err := toolResult(map[string]any{"issues": issues})
	return res, nil, err
}

func (h *toolHandlers) fail(tool string, err error) *sdkmcp.CallToolResult {
	if h.logger != nil {
		h.logger.Warn("tool call failed", "tool", tool, "error", err)
	}
	return toolError(err)
}
