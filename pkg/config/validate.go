package config

import (
	"fmt"

	"github.com/rindexer-go/rindexer/internal/types"
)

// Validate checks a fully-defaulted manifest for internal consistency,
// failing fast with the offending field path named in the error.
func (m *Manifest) Validate() error {
	if len(m.Networks) == 0 {
		return fmt.Errorf("at least one network must be configured")
	}

	networks := make(map[string]NetworkConfig, len(m.Networks))
	for i, n := range m.Networks {
		if n.Name == "" {
			return fmt.Errorf("networks[%d]: name is required", i)
		}
		if n.RPCURL == "" {
			return fmt.Errorf("networks[%d] (%s): rpc_url is required", i, n.Name)
		}
		if _, err := types.ParseBlockFinality(n.Finality); err != nil {
			return fmt.Errorf("networks[%d] (%s): %w", i, n.Name, err)
		}
		if _, dup := networks[n.Name]; dup {
			return fmt.Errorf("networks[%d]: duplicate network name %q", i, n.Name)
		}
		networks[n.Name] = n
	}

	if len(m.Contracts) == 0 {
		return fmt.Errorf("at least one contract must be configured")
	}

	pipelineNames := make(map[string]bool)
	for i, c := range m.Contracts {
		if c.Name == "" {
			return fmt.Errorf("contracts[%d]: name is required", i)
		}
		if len(c.Details) == 0 {
			return fmt.Errorf("contracts[%d] (%s): at least one network detail entry is required", i, c.Name)
		}
		for j, d := range c.Details {
			if _, ok := networks[d.Network]; !ok {
				return fmt.Errorf("contracts[%d] (%s), details[%d]: unknown network %q", i, c.Name, j, d.Network)
			}
			if d.Address == "" && d.Factory == nil {
				return fmt.Errorf("contracts[%d] (%s), details[%d]: either address or factory is required", i, c.Name, j)
			}
			if d.Address != "" && d.Factory != nil {
				return fmt.Errorf("contracts[%d] (%s), details[%d]: address and factory are mutually exclusive", i, c.Name, j)
			}
		}
		if len(c.Events) == 0 && !c.NativeTransfer {
			return fmt.Errorf("contracts[%d] (%s): at least one event (or native_transfer) must be configured", i, c.Name)
		}
		for j, e := range c.Events {
			if e.Signature == "" {
				return fmt.Errorf("contracts[%d] (%s), events[%d]: signature is required", i, c.Name, j)
			}
			if e.Timestamp.Policy != "off" && e.Timestamp.Policy != "sampled" && e.Timestamp.Policy != "closed_form" {
				return fmt.Errorf("contracts[%d] (%s), events[%d]: timestamp.policy must be one of off, sampled, closed_form", i, c.Name, j)
			}
			if e.Buffer < 0 {
				return fmt.Errorf("contracts[%d] (%s), events[%d]: buffer must not be negative", i, c.Name, j)
			}
			if e.Concurrency < 0 {
				return fmt.Errorf("contracts[%d] (%s), events[%d]: concurrency must not be negative", i, c.Name, j)
			}
			pipelineName := c.Name + "/" + e.Signature
			if pipelineNames[pipelineName] {
				return fmt.Errorf("contracts[%d] (%s), events[%d]: duplicate pipeline %q", i, c.Name, j, pipelineName)
			}
			pipelineNames[pipelineName] = true
		}
	}

	// Dependency edges must reference a real pipeline name within the
	// same contract and must not form a cycle (checked by the
	// scheduler at build time); here we only validate existence.
	for i, c := range m.Contracts {
		for j, e := range c.Events {
			if e.DependsOn == "" {
				continue
			}
			dep := c.Name + "/" + e.DependsOn
			if !pipelineNames[dep] {
				return fmt.Errorf("contracts[%d] (%s), events[%d]: depends_on references unknown event %q", i, c.Name, j, e.DependsOn)
			}
		}
	}

	for i, s := range m.Streams {
		if s.Name == "" {
			return fmt.Errorf("streams[%d]: name is required", i)
		}
		switch s.Type {
		case "nats", "webhook":
		case "kafka", "redis", "sns", "rabbitmq", "cloudflare_queues":
			// accepted by the schema, not built in this image
		default:
			return fmt.Errorf("streams[%d] (%s): unknown stream type %q", i, s.Name, s.Type)
		}
	}

	for i, c := range m.Chat {
		if c.Name == "" {
			return fmt.Errorf("chat[%d]: name is required", i)
		}
		if c.Type != "discord" && c.Type != "slack" && c.Type != "telegram" {
			return fmt.Errorf("chat[%d] (%s): type must be one of discord, slack, telegram", i, c.Name)
		}
		if c.WebhookURL == "" {
			return fmt.Errorf("chat[%d] (%s): webhook_url is required", i, c.Name)
		}
	}

	return nil
}
