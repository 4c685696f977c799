package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	internalchat "github.com/rindexer-go/rindexer/internal/chat"
	"github.com/rindexer-go/rindexer/internal/fanout"
	"github.com/rindexer-go/rindexer/pkg/chat"
	pkgsink "github.com/rindexer-go/rindexer/pkg/sink"
	pkgstream "github.com/rindexer-go/rindexer/pkg/stream"
)

// sinkTarget adapts a storage sink.Sink into a fanout.Target, widening
// a batch's decoded Records into the sink's (table, columns, rows)
// write shape. The table name is supplied by the caller as is
// (internal/core derives it from the contract and event name).
type sinkTarget struct {
	sink  pkgsink.Sink
	table string
}

// NewSinkTarget adapts sink so a pipeline's FanOut can deliver batches
// to it, writing one row per record into table.
func NewSinkTarget(sink pkgsink.Sink, table string) fanout.Target {
	return &sinkTarget{sink: sink, table: table}
}

func (t *sinkTarget) Name() string { return t.sink.Name() }

func (t *sinkTarget) Deliver(ctx context.Context, batch fanout.Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	colSet := map[string]bool{
		"block_number": true, "block_hash": true, "tx_hash": true,
		"log_index": true, "timestamp": true, "replay": true,
	}
	rows := make([]pkgsink.Row, 0, len(batch.Records))
	for _, r := range batch.Records {
		rec, ok := r.(*Record)
		if !ok {
			return fmt.Errorf("sink target received non-Record batch entry %T", r)
		}
		row := pkgsink.Row{
			"block_number": rec.BlockNumber,
			"block_hash":   rec.BlockHash,
			"tx_hash":      rec.TxHash,
			"log_index":    rec.LogIndex,
			"timestamp":    rec.Timestamp,
			"replay":       rec.Replay || batch.Replay,
		}
		for k, v := range rec.Params {
			row[k] = v
			colSet[k] = true
		}
		rows = append(rows, row)
	}

	columns := make([]string, 0, len(colSet))
	for c := range colSet {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	return t.sink.InsertBulk(ctx, t.table, columns, rows)
}

// streamTarget adapts a message-bus stream.Stream into a fanout.Target,
// publishing each record in the batch as its own JSON message so a
// consumer sees one message per event, not one per window.
type streamTarget struct {
	stream  pkgstream.Stream
	subject string
}

// NewStreamTarget adapts stream so a pipeline's FanOut can publish
// each decoded record under subject.
func NewStreamTarget(stream pkgstream.Stream, subject string) fanout.Target {
	return &streamTarget{stream: stream, subject: subject}
}

func (t *streamTarget) Name() string { return t.stream.Name() }

func (t *streamTarget) Deliver(ctx context.Context, batch fanout.Batch) error {
	for _, r := range batch.Records {
		rec, ok := r.(*Record)
		if !ok {
			return fmt.Errorf("stream target received non-Record batch entry %T", r)
		}

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record for stream: %w", err)
		}

		messageID := fmt.Sprintf("%s:%s:%s:%d:%d", rec.Network, rec.Contract, rec.Event, rec.BlockNumber, rec.LogIndex)
		if err := t.stream.Publish(ctx, messageID, t.subject, payload); err != nil {
			return fmt.Errorf("publish record to stream: %w", err)
		}
	}
	return nil
}

// chatTarget adapts a chat.Bridge into a fanout.Target, rendering each
// record through a message template before sending.
type chatTarget struct {
	bridge    chat.Bridge
	template  string
	channelID string
}

// NewChatTarget adapts bridge so a pipeline's FanOut can render and
// send each decoded record as a chat message using tmpl.
func NewChatTarget(bridge chat.Bridge, tmpl, channelID string) fanout.Target {
	return &chatTarget{bridge: bridge, template: tmpl, channelID: channelID}
}

func (t *chatTarget) Name() string { return t.bridge.Name() }

func (t *chatTarget) Deliver(ctx context.Context, batch fanout.Batch) error {
	for _, r := range batch.Records {
		rec, ok := r.(*Record)
		if !ok {
			return fmt.Errorf("chat target received non-Record batch entry %T", r)
		}

		rendered, err := internalchat.Render(t.template, rec.asMap())
		if err != nil {
			return fmt.Errorf("render chat template: %w", err)
		}
		if err := t.bridge.Send(ctx, t.channelID, rendered); err != nil {
			return fmt.Errorf("send chat message: %w", err)
		}
	}
	return nil
}
