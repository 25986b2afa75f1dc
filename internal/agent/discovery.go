package agent

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/model"
	"github.com/sells-group/extraction-service/internal/resilience"
	"github.com/sells-group/extraction-service/pkg/anthropic"
	"github.com/sells-group/extraction-service/pkg/reader"
)

const discoverySystemText = "You are a web research assistant mapping a website. " +
	"Given the rendered content of a site's entry page and the user's data requirements, " +
	"identify the pages on that site most likely to contain the requested data."

const discoveryPrompt = `Target site: %s

Data requirements:
%s

Entry page content (markdown):
%s

List the absolute URLs of the pages on this site most relevant to the data
requirements, one URL per line, most relevant first. Include the entry page
itself if it contains relevant data. List at most %d URLs and output nothing
but the URLs.`

// Discovery finds the site pages worth extracting for a job.
type Discovery struct {
	reader reader.Client
	llm    anthropic.Client
	cfg    Config
}

// NewDiscovery creates the discovery agent.
func NewDiscovery(rc reader.Client, llm anthropic.Client, cfg Config) *Discovery {
	return &Discovery{reader: rc, llm: llm, cfg: cfg.withDefaults()}
}

// DiscoverPages fetches the entry page and asks the model which site pages
// to extract. The returned unit list may be empty when the model finds
// nothing relevant.
func (d *Discovery) DiscoverPages(ctx context.Context, url, requirements string) ([]model.WorkUnit, error) {
	page, err := fetchPage(ctx, d.reader, d.cfg.Retry, url, "discovery fetch")
	if err != nil {
		return nil, eris.Wrap(err, "discovery: fetch entry page")
	}

	prompt := fmt.Sprintf(discoveryPrompt,
		url,
		requirements,
		truncate(page.Content, d.cfg.PageCharLimit),
		d.cfg.MaxPages,
	)

	policy := d.cfg.Retry
	policy.OnRetry = resilience.RetryLogger("anthropic", "discovery")
	resp, err := resilience.Do(ctx, policy, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return d.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     d.cfg.Model,
			MaxTokens: d.cfg.MaxTokens,
			System:    []anthropic.SystemBlock{{Text: discoverySystemText}},
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "discovery: create message")
	}
	resp.Usage.Log(d.cfg.Model, "discovery")

	urls := extractURLs(resp.Text())
	if len(urls) > d.cfg.MaxPages {
		urls = urls[:d.cfg.MaxPages]
	}
	units := make([]model.WorkUnit, 0, len(urls))
	for _, u := range urls {
		units = append(units, model.WorkUnit{URL: u})
	}
	zap.L().Info("pages discovered",
		zap.String("url", url),
		zap.Int("pages", len(units)),
	)
	return units, nil
}
