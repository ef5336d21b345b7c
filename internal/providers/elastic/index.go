package elastic

import (
	"context"
	"fmt"

	"github.com/olivere/elastic/v7"

	"github.com/agentstation/placemap/pkg/places"
)

// mapping is the index definition EnsureIndex creates.
const mapping = `{
  "mappings": {
    "properties": {
      "id":               {"type": "keyword"},
      "name":             {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "brand":            {"type": "text"},
      "category":         {"type": "keyword"},
      "categories":       {"type": "keyword"},
      "operating_status": {"type": "keyword"},
      "confidence":       {"type": "float"},
      "location":         {"type": "geo_point"},
      "attributes":       {"type": "object", "enabled": false}
    }
  }
}`

// EnsureIndex creates the index with its mapping when it does not exist.
func (p *Provider) EnsureIndex(ctx context.Context) error {
	exists, err := p.client.IndexExists(p.cfg.Index).Do(ctx)
	if err != nil {
		return fmt.Errorf("check index %s: %w", p.cfg.Index, err)
	}
	if exists {
		return nil
	}

	created, err := p.client.CreateIndex(p.cfg.Index).BodyString(mapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", p.cfg.Index, err)
	}
	if !created.Acknowledged {
		p.logger.Warn().Str("index", p.cfg.Index).Msg("Index creation was not acknowledged")
	}
	p.logger.Info().Str("index", p.cfg.Index).Msg("Created index")
	return nil
}

// IndexPlaces writes places into the index in one bulk request and returns
// how many were accepted. Per-document failures are logged.
func (p *Provider) IndexPlaces(ctx context.Context, ps []places.Place) (int, error) {
	if len(ps) == 0 {
		return 0, nil
	}

	bulk := p.client.Bulk()
	for i := range ps {
		bulk = bulk.Add(elastic.NewBulkIndexRequest().
			Index(p.cfg.Index).
			Id(ps[i].ID).
			Doc(fromPlace(&ps[i])))
	}

	res, err := bulk.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk index %d places: %w", len(ps), err)
	}

	failed := res.Failed()
	for _, item := range failed {
		reason := ""
		if item.Error != nil {
			reason = item.Error.Reason
		}
		p.logger.Warn().Str("id", item.Id).Str("reason", reason).Msg("Failed to index place")
	}
	return len(ps) - len(failed), nil
}
