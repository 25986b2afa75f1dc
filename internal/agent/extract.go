package agent

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/extraction-service/internal/model"
	"github.com/sells-group/extraction-service/internal/resilience"
	"github.com/sells-group/extraction-service/pkg/anthropic"
	"github.com/sells-group/extraction-service/pkg/reader"
)

const extractSystemText = "You are a data extraction assistant. Extract the requested " +
	"data from the page content and return a JSON object of the form " +
	`{"extracted_data": [...]} where each array element is one extracted record. ` +
	"Return only JSON. If the page contains none of the requested data, return " +
	`{"extracted_data": []}.`

const extractPrompt = `Data requirements:
%s

Page URL: %s
Page content (markdown):
%s`

// Extraction converts one discovered page into raw structured output.
type Extraction struct {
	reader reader.Client
	llm    anthropic.Client
	cfg    Config
}

// NewExtraction creates the extraction agent.
func NewExtraction(rc reader.Client, llm anthropic.Client, cfg Config) *Extraction {
	return &Extraction{reader: rc, llm: llm, cfg: cfg.withDefaults()}
}

// ExtractPage fetches the unit's page and prompts the model for records
// matching the job requirements. The raw completion text is returned
// untouched; decoding into records happens downstream.
func (e *Extraction) ExtractPage(ctx context.Context, unit model.WorkUnit, requirements string) (string, error) {
	page, err := fetchPage(ctx, e.reader, e.cfg.Retry, unit.URL, "extraction fetch")
	if err != nil {
		return "", eris.Wrap(err, "extraction: fetch page")
	}

	prompt := fmt.Sprintf(extractPrompt,
		requirements,
		unit.URL,
		truncate(page.Content, e.cfg.PageCharLimit),
	)

	policy := e.cfg.Retry
	policy.OnRetry = resilience.RetryLogger("anthropic", "extraction")
	resp, err := resilience.Do(ctx, policy, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.cfg.Model,
			MaxTokens: e.cfg.MaxTokens,
			// The system block repeats across every page of a batch, so
			// let the API cache it.
			System: []anthropic.SystemBlock{{
				Text:         extractSystemText,
				CacheControl: &anthropic.CacheControl{TTL: "5m"},
			}},
			Messages: []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return "", eris.Wrap(err, "extraction: create message")
	}
	resp.Usage.Log(e.cfg.Model, "extraction")

	return resp.Text(), nil
}
