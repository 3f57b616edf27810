package postgres

import "github.com/makeit3d/forge-gateway/internal/domain"

// Repos resolves the JobRepository for a given JobKind, implementing
// orchestrator.Repos. One JobRepo backs each of the two physical tables.
type Repos struct {
	Images *JobRepo
	Models *JobRepo
}

// NewRepos constructs Repos from a shared pool.
func NewRepos(p PgxPool) *Repos {
	return &Repos{Images: NewImageRepo(p), Models: NewModelRepo(p)}
}

// For implements orchestrator.Repos.
func (r *Repos) For(kind domain.JobKind) domain.JobRepository {
	if kind == domain.KindModel {
		return r.Models
	}
	return r.Images
}
