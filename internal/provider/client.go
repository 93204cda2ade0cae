package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/EILE23/BusTrackr/internal/observability/metrics"
)

// The TOPIS feed wraps every payload in the same three-part envelope and
// occasionally omits msgBody entirely, so responses are decoded through a
// size-capped reader and treated as empty when the body is missing.
const maxResponseBytes = 16 << 20

// Client calls the Seoul bus (TOPIS) open API. Fetch failures of any kind
// surface to callers as an empty item list; only Healthy distinguishes a
// failed call from a genuinely empty one.
type Client struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	logger     *log.Logger
}

// NewClient constructs a TOPIS client with a fixed per-call timeout.
func NewClient(baseURL, serviceKey string, timeout time.Duration, logger *log.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("provider: empty base url")
	}
	if serviceKey == "" {
		return nil, errors.New("provider: empty service key")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// StationInfo is a station record from getStationByName.
type StationInfo struct {
	StID      string `json:"stId"`
	StNm      string `json:"stNm"`
	ArsID     string `json:"arsId"`
	PosX      string `json:"posX"`
	PosY      string `json:"posY"`
	Direction string `json:"direction"`
}

// PositionInfo is a live vehicle record from getBusPosByRouteSt.
type PositionInfo struct {
	BusRouteID string `json:"busRouteId"`
	RouteNm    string `json:"routeNm"`
	PlateNo    string `json:"plateNo"`
	StationID  string `json:"stationId"`
	StationNm  string `json:"stationNm"`
	PosX       string `json:"posX"`
	PosY       string `json:"posY"`
	DataTm     string `json:"dataTm"`
	LastStnID  string `json:"lastStnId"`
	// "congetion" is the upstream feed's own spelling.
	Congestion string `json:"congetion"`
	IsFullFlag string `json:"isFullFlag"`
}

// ArrivalInfo is an arrival record from getStationByUid. The feed reports
// the first and second approaching bus as flat numbered fields.
type ArrivalInfo struct {
	StID       string `json:"stId"`
	StNm       string `json:"stNm"`
	BusRouteID string `json:"busRouteId"`
	RtNm       string `json:"rtNm"`
	Direction  string `json:"adirection"`
	ArrMsg1    string `json:"arrmsg1"`
	ArrMsg2    string `json:"arrmsg2"`
	ArrSec1    string `json:"arrmsgSec1"`
	ArrSec2    string `json:"arrmsgSec2"`
	PlateNo1   string `json:"plainNo1"`
	PlateNo2   string `json:"plainNo2"`
	StationNm1 string `json:"stationNm1"`
	StationNm2 string `json:"stationNm2"`
	Remain1    string `json:"reride_Num1"`
	Remain2    string `json:"reride_Num2"`
}

type envelope[T any] struct {
	ComMsgHeader struct {
		RequestMsgID  string `json:"requestMsgID"`
		ResponseMsgID string `json:"responseMsgID"`
		ResponseTime  string `json:"responseTime"`
	} `json:"comMsgHeader"`
	MsgHeader struct {
		HeaderMsg string `json:"headerMsg"`
		HeaderCd  string `json:"headerCd"`
		ItemCount int    `json:"itemCount"`
	} `json:"msgHeader"`
	MsgBody *struct {
		ItemList []T `json:"itemList"`
	} `json:"msgBody"`
}

// StationsByName searches stations whose name contains the given text.
func (c *Client) StationsByName(ctx context.Context, name string) []StationInfo {
	items, err := fetchList[StationInfo](ctx, c, "/stationinfo/getStationByName", url.Values{"stSrch": {name}})
	if err != nil {
		c.logger.Printf("provider: station search failed: name=%s err=%v", name, err)
		return nil
	}
	return items
}

// PositionsByRoute returns live vehicle positions for a route.
func (c *Client) PositionsByRoute(ctx context.Context, routeID string) []PositionInfo {
	items, err := fetchList[PositionInfo](ctx, c, "/buspos/getBusPosByRouteSt", url.Values{"busRouteId": {routeID}})
	if err != nil {
		c.logger.Printf("provider: position fetch failed: route=%s err=%v", routeID, err)
		return nil
	}
	return items
}

// ArrivalsByStation returns arrival predictions for a station.
func (c *Client) ArrivalsByStation(ctx context.Context, stationID string) []ArrivalInfo {
	items, err := fetchList[ArrivalInfo](ctx, c, "/stationinfo/getStationByUid", url.Values{"arsId": {stationID}})
	if err != nil {
		c.logger.Printf("provider: arrival fetch failed: station=%s err=%v", stationID, err)
		return nil
	}
	return items
}

// Healthy probes the station endpoint and reports whether the upstream API
// answered. It never panics and never lets a transport failure escape.
func (c *Client) Healthy(ctx context.Context) bool {
	if c == nil {
		return false
	}
	_, err := fetchList[StationInfo](ctx, c, "/stationinfo/getStationByName", url.Values{"stSrch": {"test"}})
	if err != nil {
		c.logger.Printf("provider: health probe failed: %v", err)
		return false
	}
	return true
}

func fetchList[T any](ctx context.Context, c *Client, path string, query url.Values) (items []T, err error) {
	if c == nil || c.client == nil {
		return nil, errors.New("provider: nil client")
	}
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveProviderCall(path, result, time.Since(start))
	}()

	query.Set("serviceKey", c.serviceKey)
	query.Set("resultType", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("provider: decode: %w", err)
	}
	if env.MsgBody == nil {
		return nil, nil
	}
	return env.MsgBody.ItemList, nil
}
