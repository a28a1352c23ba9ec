// Package oracle asks a language model to place unscheduled events and
// checks every answer against the scheduler's rules before accepting it.
// Anything the model gets wrong is left unscheduled for the deterministic
// scheduler.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/jima/gcal-planner/internal/event"
	"github.com/jima/gcal-planner/internal/schedule"
)

const DefaultModel = "gpt-5-mini"

var (
	ErrNoChoices = errors.New("model returned no choices")
	ErrUnknownID = errors.New("proposal names an unknown event id")
	ErrDuplicate = errors.New("event proposed more than once")
	ErrBadStart  = errors.New("proposal start is not a valid timestamp")
)

// Completer is the part of the OpenAI client the oracle uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Oracle proposes slots with a chat model and validates them.
type Oracle struct {
	client Completer
	model  string
	sched  *schedule.Scheduler
}

// New wraps an existing client.
func New(client Completer, model string, sched *schedule.Scheduler) *Oracle {
	if model == "" {
		model = DefaultModel
	}
	return &Oracle{client: client, model: model, sched: sched}
}

// NewClient returns an OpenAI API client. An empty baseURL uses the public
// endpoint.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Proposal is one placement returned by the model.
type Proposal struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Rejection records why a proposal, or a missing one, was not used.
type Rejection struct {
	ID     string
	Name   string
	Reason error
}

func (r Rejection) Error() string {
	if r.Name == "" {
		return r.ID + ": " + r.Reason.Error()
	}
	return r.Name + ": " + r.Reason.Error()
}

// Outcome of one oracle round.
type Outcome struct {
	// Records is requests in input order, with accepted proposals applied.
	Records  []event.Record
	Accepted []event.Record
	Rejected []Rejection
}

// Pending reports how many records still lack a slot.
func (o Outcome) Pending() int {
	n := 0
	for _, r := range o.Records {
		if !r.Scheduled() {
			n++
		}
	}
	return n
}

// Plan asks the model for slots and validates them. When the model call
// fails the error is returned together with the untouched requests.
func (o *Oracle) Plan(ctx context.Context, fixed, requests []event.Record, ref time.Time) (Outcome, error) {
	logger := log.Ctx(ctx).With().Str("component", "oracle").Logger()

	if len(schedulable(requests)) == 0 {
		return Outcome{Records: append([]event.Record(nil), requests...)}, nil
	}

	proposals, err := o.Propose(ctx, fixed, requests, ref)
	if err != nil {
		logger.Warn().Err(err).Msg("model call failed")
		return Outcome{Records: append([]event.Record(nil), requests...)}, err
	}

	out := o.Validate(fixed, requests, proposals, ref)
	for _, r := range out.Rejected {
		logger.Warn().Str("id", r.ID).Str("name", r.Name).Err(r.Reason).Msg("proposal rejected")
	}
	logger.Info().
		Int("proposed", len(proposals)).
		Int("accepted", len(out.Accepted)).
		Int("pending", out.Pending()).
		Msg("oracle round complete")
	return out, nil
}

// Propose sends one chat completion and decodes the proposals.
func (o *Oracle) Propose(ctx context.Context, fixed, requests []event.Record, ref time.Time) ([]Proposal, error) {
	prompt, err := buildPrompt(o.sched.Options(), fixed, requests, ref)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "schedule",
				Schema: &responseSchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return decodeProposals(resp.Choices[0].Message.Content)
}

func decodeProposals(content string) ([]Proposal, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var body struct {
		Scheduled []Proposal `json:"scheduled"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &body); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	return body.Scheduled, nil
}

// Validate applies proposals to requests. A proposal is accepted only when
// it names a pending request, parses, starts at or after ref, and
// passes the scheduler's rules against fixed events, already timed
// requests, blockers and proposals accepted before it. End is always
// recomputed from the request's duration.
func (o *Oracle) Validate(fixed, requests []event.Record, proposals []Proposal, ref time.Time) Outcome {
	opts := o.sched.Options()
	ref = ref.In(opts.Location)

	out := Outcome{Records: append([]event.Record(nil), requests...)}
	index := make(map[string]int, len(requests))
	for _, i := range schedulable(requests) {
		index[requests[i].ID] = i
	}

	all := make([]event.Record, 0, len(fixed)+len(requests))
	all = append(all, fixed...)
	all = append(all, requests...)
	busy := o.sched.Busy(all, ref)

	seen := make(map[string]bool, len(proposals))
	for _, p := range proposals {
		i, ok := index[p.ID]
		if !ok {
			out.Rejected = append(out.Rejected, Rejection{ID: p.ID, Reason: ErrUnknownID})
			continue
		}
		r := &out.Records[i]
		if seen[p.ID] {
			out.Rejected = append(out.Rejected, Rejection{ID: p.ID, Name: r.Name, Reason: ErrDuplicate})
			continue
		}
		seen[p.ID] = true

		start, err := parseStart(p.Start, opts.Location)
		if err != nil {
			out.Rejected = append(out.Rejected, Rejection{ID: p.ID, Name: r.Name, Reason: ErrBadStart})
			continue
		}
		if err := o.sched.Admit(*r, start, busy, ref); err != nil {
			out.Rejected = append(out.Rejected, Rejection{ID: p.ID, Name: r.Name, Reason: err})
			continue
		}

		r.Start = start
		r.End = start.Add(r.Duration.Std())
		busy = append(busy, schedule.Interval{Start: r.Start, End: r.End})
		out.Accepted = append(out.Accepted, *r)
	}
	return out
}

func parseStart(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, loc)
}

// schedulable returns the indexes of requests the model should place.
func schedulable(requests []event.Record) []int {
	var idx []int
	for i, r := range requests {
		if !r.Scheduled() && !r.Fixed && r.Duration > 0 {
			idx = append(idx, i)
		}
	}
	return idx
}
