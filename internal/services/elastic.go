package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"farmstore_back_end/internal/models"
)

const orderIndex = "orders"

// OrderSearchIndex mirrors fulfilled orders into Elasticsearch for the
// admin search endpoint. Indexing is best-effort; Mongo stays the
// system of record.
type OrderSearchIndex struct {
	Client *elasticsearch.Client
}

func (s *OrderSearchIndex) IndexOrder(ctx context.Context, order *models.Order) error {
	if s == nil || s.Client == nil {
		return fmt.Errorf("elasticsearch not configured")
	}

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      orderIndex,
		DocumentID: order.ID.Hex(),
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, s.Client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch rejected order %s: %s", order.OrderNumber, res.String())
	}
	return nil
}

// SearchOrders matches against order number, customer fields and item
// names.
func (s *OrderSearchIndex) SearchOrders(ctx context.Context, query string) ([]map[string]interface{}, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("elasticsearch not configured")
	}

	var buf bytes.Buffer
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"orderNumber", "customer.name", "customer.email", "items.name"},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{orderIndex},
		Body:  &buf,
	}
	res, err := req.Do(ctx, s.Client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.New("order index not found or empty")
	}

	var r map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	hitsData, ok := r["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("malformed search response")
	}
	hitsArray, ok := hitsData["hits"].([]interface{})
	if !ok {
		return []map[string]interface{}{}, nil
	}

	results := make([]map[string]interface{}, 0, len(hitsArray))
	for _, hit := range hitsArray {
		hitMap, _ := hit.(map[string]interface{})
		if source, ok := hitMap["_source"].(map[string]interface{}); ok {
			results = append(results, source)
		}
	}
	return results, nil
}
