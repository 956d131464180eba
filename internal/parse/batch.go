package parse

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hanqizheng/mailfacts/internal/message"
)

// Pipeline runs the full extraction over batches of raw messages.
type Pipeline struct {
	opts     Options
	enricher *Enricher
}

// NewPipeline wires a pipeline. client may be nil; enrichment then only
// runs when EnableAI is false anyway.
func NewPipeline(opts Options, client ChatClient) *Pipeline {
	p := &Pipeline{opts: opts}
	if opts.EnableAI && client != nil {
		p.enricher = NewEnricher(client, opts.Stages)
	}
	return p
}

// Run processes files in input order. The fuzzy index is built exactly
// once, before the first file, and only read afterwards. One file's
// failure never aborts the rest: it yields a failed result plus a batch
// error string.
func (p *Pipeline) Run(ctx context.Context, msgs []SourceMessage) BatchResult {
	started := time.Now()
	ix := NewIndex(p.opts.Projects)

	batch := BatchResult{Results: make([]ParsingResult, 0, len(msgs))}
	for _, src := range msgs {
		result, err := p.processFile(ctx, ix, src)
		if err != nil {
			log.Printf("Warning: failed to process %s: %v", src.Filename, err)
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", src.Filename, err))
			result = ParsingResult{
				Filename:    src.Filename,
				Success:     false,
				ErrorReason: err.Error(),
				MatchType:   MatchExact,
			}
		}
		batch.Results = append(batch.Results, result)
	}

	batch.Summary = summarize(batch.Results, time.Since(started))
	return batch
}

// processFile runs the per-message pipeline: decode, normalize, resolve,
// extract, enrich, synthesize. Panics from malformed input are recovered
// at this boundary.
func (p *Pipeline) processFile(ctx context.Context, ix *Index, src SourceMessage) (result ParsingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	fileStarted := time.Now()

	msg, err := message.Decode(src.RawContent)
	if err != nil {
		return ParsingResult{}, err
	}

	subject := NormalizeContent(msg.Subject, p.opts.MaxContentLength)
	bodyText := msg.Body
	if bodyText == "" {
		bodyText = msg.HTMLBody
	}
	body := NormalizeContent(bodyText, p.opts.MaxContentLength)

	match := ResolveProject(subject, body, p.opts.Projects, ix, p.opts.FuzzyMatchThreshold)
	info := ExtractCounterparty(msg, body, p.opts.PlatformDomains)

	var enrichment Enrichment
	if p.enricher != nil {
		outcome := p.enricher.Enrich(ctx, body, info)
		enrichment = outcome.Enrichment
	}

	result = Synthesize(match, info, enrichment, p.opts.AIConfidenceThreshold)
	result.Filename = src.Filename
	result.EmailSubject = msg.Subject
	result.EmailDate = msg.Date
	result.EmailFrom = msg.From.Address
	result.ProcessingTimeMs = time.Since(fileStarted).Milliseconds()
	return result, nil
}

func summarize(results []ParsingResult, elapsed time.Duration) Summary {
	summary := Summary{
		Total:            len(results),
		ProcessingTimeMs: elapsed.Milliseconds(),
	}

	sum := 0.0
	for _, r := range results {
		if r.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
		sum += r.Confidence
	}
	if summary.Total > 0 {
		summary.AverageConfidence = sum / float64(summary.Total)
	}
	return summary
}
