package core

import (
	"context"
	"fmt"

	"github.com/rindexer-go/rindexer/internal/chat"
	"github.com/rindexer-go/rindexer/internal/fanout"
	"github.com/rindexer-go/rindexer/internal/pipeline"
	"github.com/rindexer-go/rindexer/internal/sink/csv"
	"github.com/rindexer-go/rindexer/internal/sink/postgres"
	"github.com/rindexer-go/rindexer/internal/sink/sqlite"
	"github.com/rindexer-go/rindexer/internal/stream/nats"
	"github.com/rindexer-go/rindexer/internal/stream/webhook"
	pkgchat "github.com/rindexer-go/rindexer/pkg/chat"
	pkgsink "github.com/rindexer-go/rindexer/pkg/sink"
	pkgstream "github.com/rindexer-go/rindexer/pkg/stream"
	"github.com/rindexer-go/rindexer/pkg/config"
	coresqlite "github.com/rindexer-go/rindexer/internal/store/sqlite"
)

// registries holds every configured storage sink, stream, and chat
// bridge, built once at startup and looked up by name when resolving
// an EventConfig's Sinks/Streams/Chat selections into fanout.Target
// instances.
type registries struct {
	sinks         map[string]pkgsink.Sink
	streams       map[string]pkgstream.Stream
	chats         map[string]pkgchat.Bridge
	chatTemplates map[string]string
}

func newRegistries() *registries {
	return &registries{
		sinks:         make(map[string]pkgsink.Sink),
		streams:       make(map[string]pkgstream.Stream),
		chats:         make(map[string]pkgchat.Bridge),
		chatTemplates: make(map[string]string),
	}
}

// buildRegistries constructs every sink/stream/chat destination named
// in the manifest. stateDB is not used: the SQLite *event data* sink
// always opens its own connection to its configured path, even when
// that is the engine's state database file.
func buildRegistries(ctx context.Context, m *config.Manifest, stateDB *coresqlite.CheckpointStore) (*registries, error) {
	reg := newRegistries()

	if m.Storage != nil {
		if cfg := m.Storage.CSV; cfg != nil {
			s, err := csv.New(cfg.Name, cfg.Dir)
			if err != nil {
				return nil, fmt.Errorf("build csv sink %q: %w", cfg.Name, err)
			}
			reg.sinks[cfg.Name] = s
		}
		if cfg := m.Storage.SQLite; cfg != nil {
			db, err := coresqlite.Open(coresqlite.Options{Path: cfg.Path})
			if err != nil {
				return nil, fmt.Errorf("open sqlite sink db %q: %w", cfg.Name, err)
			}
			reg.sinks[cfg.Name] = sqlite.New(cfg.Name, db)
		}
		if cfg := m.Storage.Postgres; cfg != nil {
			s, err := postgres.New(ctx, cfg.Name, cfg.DSN)
			if err != nil {
				return nil, fmt.Errorf("build postgres sink %q: %w", cfg.Name, err)
			}
			reg.sinks[cfg.Name] = s
		}
	}

	for _, cfg := range m.Streams {
		switch cfg.Type {
		case "nats":
			st, err := nats.New(cfg.Name, cfg.URL, cfg.Name, cfg.Subject)
			if err != nil {
				return nil, fmt.Errorf("build nats stream %q: %w", cfg.Name, err)
			}
			reg.streams[cfg.Name] = st
		case "webhook":
			reg.streams[cfg.Name] = webhook.New(cfg.Name, cfg.URL)
		default:
			// kafka/redis/sns/rabbitmq/cloudflare_queues pass manifest
			// validation but aren't built in this image.
			return nil, fmt.Errorf("stream %q: type %q is accepted by the schema but has no engine implementation", cfg.Name, cfg.Type)
		}
	}

	for _, cfg := range m.Chat {
		switch cfg.Type {
		case "discord":
			reg.chats[cfg.Name] = chat.NewDiscord(cfg.Name, cfg.WebhookURL)
		case "slack":
			reg.chats[cfg.Name] = chat.NewSlack(cfg.Name, cfg.WebhookURL)
		case "telegram":
			reg.chats[cfg.Name] = chat.NewTelegram(cfg.Name, cfg.WebhookURL)
		}
		reg.chatTemplates[cfg.Name] = cfg.Template
	}

	return reg, nil
}

// resolveTargets builds the fanout.Target list an EventConfig's
// Sinks/Streams/Chat name selections map to for one (contract, event)
// pipeline.
func (r *registries) resolveTargets(contract string, event config.EventConfig) ([]fanout.Target, error) {
	table := tableName(contract, event.Signature)

	var targets []fanout.Target
	for _, name := range event.Sinks {
		s, ok := r.sinks[name]
		if !ok {
			return nil, fmt.Errorf("event %s/%s: unknown sink %q", contract, event.Signature, name)
		}
		targets = append(targets, pipeline.NewSinkTarget(s, table))
	}
	for _, name := range event.Streams {
		s, ok := r.streams[name]
		if !ok {
			return nil, fmt.Errorf("event %s/%s: unknown stream %q", contract, event.Signature, name)
		}
		targets = append(targets, pipeline.NewStreamTarget(s, table))
	}
	for _, name := range event.Chat {
		b, ok := r.chats[name]
		if !ok {
			return nil, fmt.Errorf("event %s/%s: unknown chat bridge %q", contract, event.Signature, name)
		}
		tmpl := r.chatTemplates[name]
		if tmpl == "" {
			tmpl = defaultChatTemplate
		}
		targets = append(targets, pipeline.NewChatTarget(b, tmpl, ""))
	}
	return targets, nil
}

// defaultChatTemplate is used when a chat bridge's manifest entry
// leaves Template empty.
const defaultChatTemplate = "{{.meta.event}} on {{.meta.contract}} at block {{.meta.block_number}}"

// Close releases every registered sink/stream/chat connection.
func (r *registries) Close() {
	for _, s := range r.sinks {
		_ = s.Close()
	}
	for _, s := range r.streams {
		_ = s.Close()
	}
	for _, b := range r.chats {
		_ = b.Close()
	}
}
