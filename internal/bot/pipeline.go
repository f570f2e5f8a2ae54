package bot

import (
	"fmt"
	"time"

	"github.com/danmuck/palctl/internal/observability"
	"github.com/danmuck/palctl/internal/protocol/frame"
	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// link is the inbound decode state of one transport session.
type link struct {
	session     string
	decoder     *frame.Decoder
	reassembler *frame.Reassembler
}

// onData runs on the read loop of session. Chunks from a session that is no
// longer current are dropped.
func (b *Bot) onData(session string, chunk []byte) {
	l := b.link.Load()
	if l == nil || l.session != session {
		observability.RecordFrameDecoded("stale")
		log.Debug().Msgf("bot.Bot dropping %d bytes from stale session=%s", len(chunk), session)
		return
	}
	pkts, err := l.decoder.Feed(chunk)
	for _, p := range pkts {
		b.inbound(l, p)
	}
	if err != nil {
		b.exception(err, "decoding inbound data")
	}
}

func (b *Bot) inbound(l *link, p *packet.Packet) {
	if b.link.Load() != l {
		observability.RecordFrameDecoded("stale")
		return
	}
	if l.reassembler == nil {
		b.receive(p)
		return
	}
	full, complete, err := l.reassembler.Add(p)
	if err != nil {
		b.exception(err, "reassembling "+p.Command)
		return
	}
	if complete {
		b.receive(full)
	}
}

// receive runs one packet through the dispatch pipeline.
func (b *Bot) receive(p *packet.Packet) {
	start := time.Now()
	ctx, span := b.tracer.Start(b.sessionContext(), "palctl.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("palctl.command", p.Command),
			attribute.Int64("palctl.mesg_id", p.MessageID()),
			attribute.String("palctl.session_id", b.SessionID()),
		),
	)
	defer span.End()

	outcome := "handled"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			err := fmt.Errorf("bot: dispatch panic: %v", r)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			b.exception(err, "dispatching "+p.Command)
		}
		span.SetAttributes(attribute.String("palctl.outcome", outcome))
		observability.RecordDispatch(p.Command, outcome, time.Since(start))
	}()

	if p.Compressed() && len(p.Payload) > 0 {
		out, err := b.decompressor.Decompress(p.Payload)
		if err != nil {
			outcome = "decompress_error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			b.exception(err, "decompressing "+p.Command)
			return
		}
		p.Payload = out
		p.SetContentLength(len(out))
	}

	pm, ok := b.registry.Map(p)
	if !ok {
		outcome = "unhandled"
		b.unhandled(p)
		return
	}

	b.packetReceived(p.Clone())
	b.handlers.process(ctx, b, pm)
	b.watcher.Process(pm)
	b.plugins.Dispatch(ctx, b, pm)
	span.SetStatus(codes.Ok, "")
}
