package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

// RoutingEntry pins one (provider, operation) pair to a queue name. Queue
// membership is the system's routing table and is fixed at build time
// (spec §4.4); it is still loaded from file rather than hardcoded so the
// table can be reviewed and amended without a recompile.
type RoutingEntry struct {
	Provider  string `yaml:"provider"`
	Operation string `yaml:"operation"`
	Queue     string `yaml:"queue"`
}

// RoutingTable maps (provider, operation) to a queue name.
type RoutingTable struct {
	entries map[domain.Provider]map[domain.Operation]string
	queues  []QueueConfig
}

// QueueConfig names one asynq queue and its relative priority weight.
type QueueConfig struct {
	Name   string `yaml:"name"`
	Weight int    `yaml:"weight"`
}

type routingFile struct {
	Queues []QueueConfig  `yaml:"queues"`
	Routes []RoutingEntry `yaml:"routes"`
}

// LoadRoutingTable reads the routing table from a YAML file (spec §6.5,
// config key ROUTING_CONFIG_PATH).
func LoadRoutingTable(path string) (*RoutingTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadRoutingTable path=%s: %w", path, err)
	}
	var f routingFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("op=config.LoadRoutingTable path=%s: %w", path, err)
	}
	rt := &RoutingTable{
		entries: make(map[domain.Provider]map[domain.Operation]string),
		queues:  f.Queues,
	}
	for _, r := range f.Routes {
		p := domain.Provider(r.Provider)
		if rt.entries[p] == nil {
			rt.entries[p] = make(map[domain.Operation]string)
		}
		rt.entries[p][domain.Operation(r.Operation)] = r.Queue
	}
	return rt, nil
}

// Queue returns the queue name designated for (provider, operation),
// satisfying P6 (routing immutability): a Job always consumes from the
// queue the table assigns its (provider, operation) pair.
func (rt *RoutingTable) Queue(provider domain.Provider, op domain.Operation) (string, bool) {
	ops, ok := rt.entries[provider]
	if !ok {
		return "", false
	}
	q, ok := ops[op]
	return q, ok
}

// Queues returns the configured queue names mapped to their relative
// weights, the shape asynq's weighted multi-queue Config.Queues expects.
func (rt *RoutingTable) Queues() map[string]int {
	out := make(map[string]int, len(rt.queues))
	for _, q := range rt.queues {
		out[q.Name] = q.Weight
	}
	return out
}
