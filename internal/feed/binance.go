package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/model"
)

const (
	_binanceBaseWsUrl           = "wss://stream.binance.com:9443/ws"
	_binanceBaseWsUrlMarketOnly = "wss://data-stream.binance.vision"
)

// BinancePub streams public kline data from the binance websocket.
type BinancePub struct {
	wss *ws.WebSocket
}

// NewBinancePub creates a public binance market data subscriber.
func NewBinancePub(ctx context.Context) *BinancePub {
	return &BinancePub{
		wss: ws.New(ctx, _binanceBaseWsUrl),
	}
}

func (repo *BinancePub) Len() int {
	return repo.wss.Len()
}

func (repo *BinancePub) Close() {
	repo.wss.Close()
}

func (repo *BinancePub) StartWebsocket(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type BinanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type BinanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscriberResponseParser(m ws.Message) (BinanceSubscribeResponse, bool) {
	var resp BinanceSubscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

// SubscribeKline subscribes the 'Kline/Candlestick Stream' for a symbol
// and interval such as "1m".
func (repo *BinancePub) SubscribeKline(ctx context.Context, symbol, interval string) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := BinanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval),
				},
				ID: 1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := subscriberResponseParser(m)
			if !ok || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type BinanceKline struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		Final     bool   `json:"x"`
	} `json:"k"`
}

// ObserveKline forwards closed bars to the handler until the context is
// done or the stream ends. Bars that fail to parse are logged and skipped;
// a live session must survive transient feed glitches.
func (repo *BinancePub) ObserveKline(ctx context.Context, handler func(ev model.MarketEvent)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[BinanceKline](m)
				if !ok || resp.EventType != "kline" || !resp.Kline.Final {
					continue
				}

				k, err := resp.toKline()
				if err != nil {
					logs.Errorf("parse kline payload, err: %+v", err)
					continue
				}

				handler(model.NewKlineEvent(resp.Symbol, k))
			}
		}
	}()

	return cancel
}

func (payload BinanceKline) toKline() (model.Kline, error) {
	values := make([]float64, 5)
	for i, raw := range [...]string{
		payload.Kline.Open,
		payload.Kline.High,
		payload.Kline.Low,
		payload.Kline.Close,
		payload.Kline.Volume,
	} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Kline{}, errors.Wrap(err, "parse kline field")
		}
		values[i] = v
	}
	return model.Kline{
		Time:   payload.Kline.CloseTime,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
