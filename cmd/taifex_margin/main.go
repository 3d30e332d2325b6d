// 保证金表探针：下载期交所公告的保证金并显示映射结果。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"tradeguard-go/config"
	"tradeguard-go/gateway"
	"tradeguard-go/preset"
)

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "整体超时")
	flag.Parse()

	cfg := config.Default()
	fetcher := gateway.NewFetcher(cfg.Quotes.Proxies)
	taifex := gateway.NewTaifex(fetcher)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rows, err := taifex.FetchMargins(ctx)
	if err != nil {
		log.Fatalf("下载保证金表失败: %v", err)
	}

	for _, row := range rows {
		code, mapped := preset.TaifexContractNames[row.Contract]
		mark := " "
		if mapped {
			mark = "*"
		} else {
			code = "-"
		}
		fmt.Printf("%s %-12s %-5s IM=%10.0f MM=%10.0f (%s)\n",
			mark, row.Contract, code, row.InitialMargin, row.MaintenanceMargin, row.Date)
	}
	fmt.Printf("\n%d 笔，* 表示会套用到内建合约\n", len(rows))
}
