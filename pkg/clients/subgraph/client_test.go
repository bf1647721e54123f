package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/lpstake/lpstake/internal/config"
	"github.com/lpstake/lpstake/internal/logger"
	"github.com/stretchr/testify/assert"
)

const mockUrl = "https://subgraph.example.com/livepeer"

func setup(t *testing.T) *SubgraphClient {
	cfg := &config.Config{
		SubgraphConfig: config.SubgraphConfig{
			Url:     mockUrl,
			ApiKey:  "test-key",
			Timeout: 5 * time.Second,
		},
	}
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	mockHttpClient := &http.Client{
		Transport: httpmock.DefaultTransport,
	}
	return NewSubgraphClient(mockHttpClient, l, cfg)
}

func eventsPage(count int, offset int) map[string]interface{} {
	events := make([]map[string]interface{}, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, map[string]interface{}{
			"id":           fmt.Sprintf("event-%d", offset+i),
			"delegator":    map[string]string{"id": "0xabc"},
			"rewardTokens": "1000000000000000000",
			"timestamp":    1700000000 + offset + i,
			"round":        map[string]string{"id": fmt.Sprintf("%d", 3000+offset+i)},
		})
	}
	return map[string]interface{}{"data": map[string]interface{}{"rewardEvents": events}}
}

func Test_SubgraphClient(t *testing.T) {
	t.Run("Sends an authorized query with a lowercased delegator", func(t *testing.T) {
		sc := setup(t)

		var received graphqlRequest
		httpmock.RegisterResponder(http.MethodPost, mockUrl, func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
			assert.Nil(t, json.NewDecoder(req.Body).Decode(&received))
			return httpmock.NewJsonResponse(http.StatusOK, eventsPage(2, 0))
		})

		events, err := sc.FetchRewardEvents(context.Background(), "0xABCdef", 100, 200)
		assert.Nil(t, err)
		assert.Equal(t, 2, len(events))
		assert.Equal(t, "1000000000000000000", events[0].RewardTokens)
		assert.Equal(t, "3000", events[0].Round.Id)
		assert.Equal(t, "0xabcdef", received.Variables["delegator"])
		assert.Equal(t, float64(100), received.Variables["start"])
		assert.Equal(t, float64(200), received.Variables["end"])
	})
	t.Run("Returns an empty slice when there are no events", func(t *testing.T) {
		sc := setup(t)
		httpmock.RegisterResponder(http.MethodPost, mockUrl, httpmock.NewStringResponder(http.StatusOK, `{"data":{"rewardEvents":[]}}`))

		events, err := sc.FetchRewardEvents(context.Background(), "0xabc", 0, 1)
		assert.Nil(t, err)
		assert.NotNil(t, events)
		assert.Equal(t, 0, len(events))
	})
	t.Run("Pages until a short page is returned", func(t *testing.T) {
		sc := setup(t)
		sc.pageSize = 2

		skips := make([]int, 0)
		httpmock.RegisterResponder(http.MethodPost, mockUrl, func(req *http.Request) (*http.Response, error) {
			var body graphqlRequest
			_ = json.NewDecoder(req.Body).Decode(&body)
			skip := int(body.Variables["skip"].(float64))
			skips = append(skips, skip)
			if skip >= 4 {
				return httpmock.NewJsonResponse(http.StatusOK, eventsPage(1, skip))
			}
			return httpmock.NewJsonResponse(http.StatusOK, eventsPage(2, skip))
		})

		events, err := sc.FetchRewardEvents(context.Background(), "0xabc", 0, 1)
		assert.Nil(t, err)
		assert.Equal(t, 5, len(events))
		assert.Equal(t, []int{0, 2, 4}, skips)
		assert.Equal(t, 3, httpmock.GetTotalCallCount())
	})
	t.Run("Reports non-2xx responses as status errors", func(t *testing.T) {
		sc := setup(t)
		httpmock.RegisterResponder(http.MethodPost, mockUrl, httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

		events, err := sc.FetchRewardEvents(context.Background(), "0xabc", 0, 1)
		assert.Nil(t, events)

		var dsErr *DataSourceError
		assert.True(t, errors.As(err, &dsErr))
		assert.Equal(t, DataSourceError_Status, dsErr.Kind)
		assert.Equal(t, http.StatusBadGateway, dsErr.StatusCode)
	})
	t.Run("Reports graphql errors as query errors", func(t *testing.T) {
		sc := setup(t)
		httpmock.RegisterResponder(http.MethodPost, mockUrl, httpmock.NewStringResponder(http.StatusOK, `{"errors":[{"message":"indexer is behind"}]}`))

		_, err := sc.FetchRewardEvents(context.Background(), "0xabc", 0, 1)
		var dsErr *DataSourceError
		assert.True(t, errors.As(err, &dsErr))
		assert.Equal(t, DataSourceError_Query, dsErr.Kind)
		assert.Contains(t, dsErr.Error(), "indexer is behind")
	})
	t.Run("Reports undecodable bodies as malformed", func(t *testing.T) {
		sc := setup(t)
		httpmock.RegisterResponder(http.MethodPost, mockUrl, httpmock.NewStringResponder(http.StatusOK, `<html>`))

		_, err := sc.FetchRewardEvents(context.Background(), "0xabc", 0, 1)
		var dsErr *DataSourceError
		assert.True(t, errors.As(err, &dsErr))
		assert.Equal(t, DataSourceError_Malformed, dsErr.Kind)
	})
	t.Run("Reports transport failures", func(t *testing.T) {
		sc := setup(t)
		httpmock.RegisterResponder(http.MethodPost, mockUrl, httpmock.NewErrorResponder(errors.New("connection reset")))

		_, err := sc.FetchRewardEvents(context.Background(), "0xabc", 0, 1)
		var dsErr *DataSourceError
		assert.True(t, errors.As(err, &dsErr))
		assert.Equal(t, DataSourceError_Transport, dsErr.Kind)
	})
}
