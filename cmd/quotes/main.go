// 行情探针：抓一档股票或指数后输出 JSON，方便排查上游连线。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"tradeguard-go/config"
	"tradeguard-go/gateway"
	"tradeguard-go/quote"
)

func main() {
	code := flag.String("code", "", "股票代码，例如 2330 或 AAPL")
	index := flag.String("index", "", "指数代号，例如 taiex、sp500")
	market := flag.String("market", "tw", "市场：tw 或 us")
	source := flag.String("source", "", "覆盖行情源：yahoo/twse/tpex/finnhub")
	finnhubKey := flag.String("finnhubKey", os.Getenv("TG_FINNHUB_KEY"), "Finnhub API key")
	timeout := flag.Duration("timeout", 15*time.Second, "整体超时")
	flag.Parse()

	if *code == "" && *index == "" {
		log.Fatal("需要 -code 或 -index")
	}

	cfg := config.Default()
	fetcher := gateway.NewFetcher(cfg.Quotes.Proxies)
	router := &gateway.Router{
		Yahoo:   gateway.NewYahoo(fetcher),
		TWSE:    gateway.NewTWSE(fetcher),
		TPEX:    gateway.NewTPEX(fetcher),
		Finnhub: gateway.NewFinnhub(fetcher, *finnhubKey),
		Taifex:  gateway.NewTaifex(fetcher),
	}
	router.SetSources(cfg.Quotes.TWSource, cfg.Quotes.USSource)
	if *source != "" {
		router.SetSources(*source, *source)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var q quote.Quote
	var served string
	var err error
	if *index != "" {
		q, served, err = router.FetchIndex(ctx, *index)
	} else {
		q, served, err = router.FetchStock(ctx, *code, *market)
	}
	if err != nil {
		log.Fatalf("抓取失败: %v", err)
	}
	fmt.Fprintln(os.Stderr, "source:", served)

	out, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		log.Fatalf("序列化失败: %v", err)
	}
	fmt.Println(string(out))
}
