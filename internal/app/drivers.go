package app

import (
	"github.com/makeit3d/forge-gateway/internal/config"
	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/driver"
	"github.com/makeit3d/forge-gateway/internal/driver/flux"
	"github.com/makeit3d/forge-gateway/internal/driver/openai"
	"github.com/makeit3d/forge-gateway/internal/driver/recraft"
	"github.com/makeit3d/forge-gateway/internal/driver/stability"
	"github.com/makeit3d/forge-gateway/internal/driver/tripo"
)

// BuildDriverRegistry wires one Driver instance per provider, registered
// against every (provider, operation) pair config/routing.yaml assigns it,
// shared by both cmd/server (submission-time capability lookups) and
// cmd/worker (submit/poll execution).
func BuildDriverRegistry(cfg config.Config) *driver.Registry {
	breakers := driver.NewBreakers()
	reg := driver.NewRegistry()

	openaiClient := openai.New(cfg.OpenAIAPIKey, breakers)
	for _, op := range []domain.Operation{domain.OpTextToImage, domain.OpImageToImage, domain.OpRemoveBackground, domain.OpInpaint} {
		reg.Register(domain.ProviderOpenAI, op, openaiClient)
	}

	stabilityClient := stability.New(cfg.StabilityAPIKey, breakers)
	for _, op := range []domain.Operation{
		domain.OpTextToImage, domain.OpImageToImage, domain.OpSketchToImage, domain.OpUpscale,
		domain.OpSearchAndRecolor, domain.OpTextToModel, domain.OpImageToModel,
	} {
		reg.Register(domain.ProviderStability, op, stabilityClient)
	}

	recraftClient := recraft.New(cfg.RecraftAPIKey, breakers)
	for _, op := range []domain.Operation{domain.OpTextToImage, domain.OpImageToImage, domain.OpInpaint, domain.OpRemoveBackground, domain.OpUpscale} {
		reg.Register(domain.ProviderRecraft, op, recraftClient)
	}

	fluxClient := flux.New(cfg.FluxAPIKey, breakers)
	for _, op := range []domain.Operation{domain.OpTextToImage, domain.OpImageToImage, domain.OpDownscale} {
		reg.Register(domain.ProviderFlux, op, fluxClient)
	}

	tripoClient := tripo.New(cfg.TripoAPIKey, breakers)
	for _, op := range []domain.Operation{domain.OpTextToModel, domain.OpImageToModel, domain.OpRefineModel} {
		reg.Register(domain.ProviderTripo, op, tripoClient)
	}

	return reg
}
