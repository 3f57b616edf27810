// Package artifact implements the Artifact Pipeline (spec §4.2): ingesting
// provider-generated bytes or URLs into durable blob storage under a
// canonical path scheme.
package artifact

import (
	"path"
	"strings"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

// assetTypePlural maps a Job's kind to the storage path segment Supabase's
// original REST layout used: "images" or "models".
func assetTypePlural(kind domain.JobKind) string {
	switch kind {
	case domain.KindModel:
		return "models"
	default:
		return "images"
	}
}

// CanonicalPath builds the storage path "{asset_type_plural}/{client_task_id}/{file_name}",
// grounded on supabase_provider.py's upload_asset storage_path construction
// (spec invariant 6).
func CanonicalPath(job domain.Job, fileName string) string {
	return path.Join(assetTypePlural(job.Kind), sanitizeSegment(job.ClientTaskID), fileName)
}

// sanitizeSegment strips path separators from an untrusted path component so
// a crafted client_task_id cannot escape the intended storage prefix.
func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "..", "_")
	return s
}

// FileExtFromContentType returns a plausible extension for a content type,
// used to name ingested artifacts when the provider gives none.
func FileExtFromContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return "jpg"
	case strings.Contains(contentType, "webp"):
		return "webp"
	case strings.Contains(contentType, "gltf-binary"), strings.Contains(contentType, "glb"):
		return "glb"
	default:
		return "bin"
	}
}
