package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lpstake/lpstake/internal/config"
	"github.com/lpstake/lpstake/pkg/utils"
	"go.uber.org/zap"
)

const defaultPageSize = 1000

type DataSourceErrorKind string

const (
	DataSourceError_Transport DataSourceErrorKind = "transport"
	DataSourceError_Status    DataSourceErrorKind = "status"
	DataSourceError_Malformed DataSourceErrorKind = "malformed"
	DataSourceError_Query     DataSourceErrorKind = "query"
)

// DataSourceError is returned for any failure talking to the indexer. It never
// represents an empty result.
type DataSourceError struct {
	Kind       DataSourceErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *DataSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("subgraph %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("subgraph %s error: %s", e.Kind, e.Message)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

type Round struct {
	Id string `json:"id"`
}

type Delegator struct {
	Id string `json:"id"`
}

type RewardEvent struct {
	Id           string    `json:"id"`
	Delegator    Delegator `json:"delegator"`
	RewardTokens string    `json:"rewardTokens"`
	Timestamp    int64     `json:"timestamp"`
	Round        Round     `json:"round"`
}

const rewardEventsQuery = `query RewardEvents($delegator: String!, $start: Int!, $end: Int!, $first: Int!, $skip: Int!) {
  rewardEvents(
    where: { delegator: $delegator, timestamp_gte: $start, timestamp_lte: $end }
    orderBy: timestamp
    orderDirection: asc
    first: $first
    skip: $skip
  ) {
    id
    delegator { id }
    rewardTokens
    timestamp
    round { id }
  }
}`

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type rewardEventsResponse struct {
	Data *struct {
		RewardEvents []*RewardEvent `json:"rewardEvents"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type SubgraphClient struct {
	httpClient *http.Client
	Logger     *zap.Logger
	Config     *config.Config
	pageSize   int
}

func NewSubgraphClient(hc *http.Client, l *zap.Logger, cfg *config.Config) *SubgraphClient {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.SubgraphConfig.Timeout}
	}
	return &SubgraphClient{
		httpClient: hc,
		Logger:     l,
		Config:     cfg,
		pageSize:   defaultPageSize,
	}
}

// FetchRewardEvents returns every reward event credited to the delegator between
// startUnix and endUnix, both inclusive.
func (sc *SubgraphClient) FetchRewardEvents(ctx context.Context, delegator string, startUnix int64, endUnix int64) ([]*RewardEvent, error) {
	delegator = utils.NormalizeAddress(delegator)
	events := make([]*RewardEvent, 0)

	for skip := 0; ; skip += sc.pageSize {
		page, err := sc.fetchPage(ctx, delegator, startUnix, endUnix, skip)
		if err != nil {
			sc.Logger.Sugar().Errorw("Failed to fetch reward events",
				zap.String("delegator", delegator),
				zap.Int("skip", skip),
				zap.Error(err),
			)
			return nil, err
		}
		events = append(events, page...)
		if len(page) < sc.pageSize {
			break
		}
	}
	sc.Logger.Sugar().Debugw("Fetched reward events",
		zap.String("delegator", delegator),
		zap.Int("count", len(events)),
	)
	return events, nil
}

func (sc *SubgraphClient) fetchPage(ctx context.Context, delegator string, startUnix int64, endUnix int64, skip int) ([]*RewardEvent, error) {
	body, err := json.Marshal(&graphqlRequest{
		Query: rewardEventsQuery,
		Variables: map[string]interface{}{
			"delegator": delegator,
			"start":     startUnix,
			"end":       endUnix,
			"first":     sc.pageSize,
			"skip":      skip,
		},
	})
	if err != nil {
		return nil, &DataSourceError{Kind: DataSourceError_Malformed, Message: "failed to encode query", Err: err}
	}

	if sc.Config.SubgraphConfig.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Config.SubgraphConfig.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.Config.SubgraphConfig.Url, bytes.NewReader(body))
	if err != nil {
		return nil, &DataSourceError{Kind: DataSourceError_Transport, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.Config.SubgraphConfig.ApiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.Config.SubgraphConfig.ApiKey))
	}

	res, err := sc.httpClient.Do(req)
	if err != nil {
		return nil, &DataSourceError{Kind: DataSourceError_Transport, Message: "request failed", Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &DataSourceError{Kind: DataSourceError_Transport, Message: "failed to read response body", Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &DataSourceError{
			Kind:       DataSourceError_Status,
			StatusCode: res.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d", res.StatusCode),
		}
	}

	var decoded rewardEventsResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &DataSourceError{Kind: DataSourceError_Malformed, Message: "failed to decode response", Err: err}
	}
	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
		}
		return nil, &DataSourceError{Kind: DataSourceError_Query, Message: strings.Join(messages, "; ")}
	}
	if decoded.Data == nil {
		return nil, &DataSourceError{Kind: DataSourceError_Malformed, Message: "response has no data"}
	}
	return decoded.Data.RewardEvents, nil
}
