package httpserver

import (
	"context"
	"strconv"
	"time"

	"github.com/makeit3d/forge-gateway/internal/adapter/repo/postgres"
)

// getDashboardStats returns aggregate job counts for the admin dashboard,
// grounded on the teacher's GetDashboardStats handler body generalized from
// one evaluations table to the images/models union AdminQueries exposes.
func (s *Server) getDashboardStats(ctx context.Context) map[string]any {
	if s.Admin == nil {
		return map[string]any{"total": 0, "completed": 0, "failed": 0, "processing": 0, "avg_time": 0.0}
	}
	stats, err := s.Admin.Stats(ctx)
	if err != nil {
		return map[string]any{
			"error": map[string]any{"code": "STATS_ERROR", "message": "failed to retrieve stats", "details": map[string]any{"error": err.Error()}},
		}
	}
	return map[string]any{
		"total":      stats.Total,
		"completed":  stats.Completed,
		"failed":     stats.Failed,
		"processing": stats.Processing,
		"avg_time":   stats.AvgSeconds,
	}
}

// getJobs returns a paginated, filtered job listing across both job tables.
func (s *Server) getJobs(ctx context.Context, page, limit, search, status string) map[string]any {
	if s.Admin == nil {
		return map[string]any{"jobs": []map[string]any{}, "pagination": map[string]any{"page": 1, "limit": 10, "total": 0}}
	}
	pageNum, limitNum := 1, 10
	if p, err := strconv.Atoi(page); err == nil && p > 0 {
		pageNum = p
	}
	if l, err := strconv.Atoi(limit); err == nil && l > 0 && l <= 100 {
		limitNum = l
	}
	offset := (pageNum - 1) * limitNum

	jobs, err := s.Admin.List(ctx, offset, limitNum, search, status)
	if err != nil {
		return map[string]any{
			"error":      map[string]any{"code": "DATABASE_ERROR", "message": "failed to retrieve jobs", "details": map[string]any{"error": err.Error()}},
			"jobs":       []map[string]any{},
			"pagination": map[string]any{"page": pageNum, "limit": limitNum, "total": 0},
		}
	}
	total, err := s.Admin.Count(ctx, search, status)
	if err != nil {
		total = int64(len(jobs))
	}

	jobList := make([]map[string]any, len(jobs))
	for i, j := range jobs {
		jobList[i] = adminJobSummaryToMap(j)
	}
	return map[string]any{
		"jobs":       jobList,
		"pagination": map[string]any{"page": pageNum, "limit": limitNum, "total": total},
	}
}

// getJobDetails returns one job's detail view for the admin job page.
func (s *Server) getJobDetails(ctx context.Context, jobID string) map[string]any {
	if s.Admin == nil {
		return map[string]any{"error": map[string]any{"code": "JOB_NOT_FOUND", "message": "job not found"}}
	}
	jobs, err := s.Admin.List(ctx, 0, 1, jobID, "")
	if err != nil || len(jobs) == 0 || jobs[0].ID != jobID {
		return map[string]any{
			"error": map[string]any{"code": "JOB_NOT_FOUND", "message": "job not found", "details": map[string]any{"job_id": jobID}},
		}
	}
	return adminJobSummaryToMap(jobs[0])
}

func adminJobSummaryToMap(j postgres.JobSummary) map[string]any {
	m := map[string]any{
		"id":             j.ID,
		"kind":           string(j.Kind),
		"client_task_id": j.ClientTaskID,
		"provider":       string(j.Provider),
		"operation":      string(j.Operation),
		"status":         string(j.Status),
		"created_at":     j.CreatedAt.Format(time.RFC3339),
		"updated_at":     j.UpdatedAt.Format(time.RFC3339),
	}
	if j.AssetURL != "" {
		m["asset_url"] = j.AssetURL
	}
	return m
}
