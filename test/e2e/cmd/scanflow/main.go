package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	e2e "github.com/taoyao-code/vesc-bridge/test/e2e"
)

func main() {
	cfg := e2e.GetConfig()

	start := flag.Int("start", -1, "scan range start (CAN address)")
	end := flag.Int("end", -1, "scan range end (CAN address)")
	addresses := flag.String("addresses", "", "comma separated CAN addresses (overrides range)")
	waitTimeout := flag.Duration("wait-timeout", cfg.ScanTimeout, "timeout for waiting scan completion")
	flag.Parse()

	logger := log.New(os.Stdout, "[scanflow] ", log.LstdFlags|log.Lmicroseconds)

	logger.Printf("Starting scan flow\n  server=%s\n  start=%d\n  end=%d\n  addresses=%q\n  wait_timeout=%s",
		cfg.ServerURL, *start, *end, *addresses, waitTimeout.String())

	ctx := context.Background()
	client := e2e.NewBridgeClient(cfg)

	status, err := client.GetStatus(ctx)
	if err != nil {
		logger.Fatalf("get status: %v", err)
	}
	logger.Printf("Bridge %s (%s), hub=%s connected=%v devices=%d",
		status.App, status.InstanceID, status.Hub.Addr, status.Hub.Connected, status.Devices)

	overrides := buildOverrides(*start, *end, *addresses)

	logger.Println("Triggering scan...")
	if err := client.TriggerScan(ctx, overrides); err != nil {
		if apiErr, ok := err.(*e2e.APIError); ok && apiErr.IsConflict() {
			logger.Println("Scan already in progress, waiting for it instead")
		} else {
			logger.Fatalf("trigger scan: %v", err)
		}
	}

	deadline := time.Now().Add(*waitTimeout)
	var final *e2e.ScanStatus
	for {
		final, err = client.GetScan(ctx)
		if err != nil {
			logger.Fatalf("get scan: %v", err)
		}
		if final.State != e2e.ScanStateScanning {
			break
		}
		if time.Now().After(deadline) {
			logger.Fatalf("scan did not finish within %s", waitTimeout.String())
		}
		logger.Println("Scanning...")
		time.Sleep(2 * time.Second)
	}

	if final.Report == nil {
		logger.Fatalf("scan ended in state %s without report", final.State)
	}
	rep := final.Report
	logger.Printf("Scan %s finished: probed=%d found=%d new=%v duration=%s",
		rep.ID, rep.Probed, rep.Found, rep.NewAddresses,
		rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))

	devices, err := client.GetDevices(ctx)
	if err != nil {
		logger.Fatalf("get devices: %v", err)
	}
	logger.Printf("Registry holds %d device(s):", devices.Count)
	for _, d := range devices.Devices {
		alias := d.Alias
		if alias == "" {
			alias = "-"
		}
		fmt.Printf("  addr=%-3d local=%-5v online=%-5v fw=%d.%d name=%-16q bms=%-5v alias=%s\n",
			d.Address, d.IsLocal, d.Online, d.FwMajor, d.FwMinor, d.FwName, d.HasBMS, alias)
	}
}

// buildOverrides 将命令行参数折算为扫描目标覆盖，未指定时返回nil沿用服务端配置
func buildOverrides(start, end int, addresses string) *e2e.ScanOverrides {
	if addresses != "" {
		var addrs []int
		for _, part := range strings.Split(addresses, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := strconv.Atoi(part)
			if err != nil {
				log.Fatalf("invalid address %q: %v", part, err)
			}
			addrs = append(addrs, v)
		}
		return &e2e.ScanOverrides{Addresses: addrs}
	}
	if start >= 0 || end >= 0 {
		o := &e2e.ScanOverrides{}
		if start >= 0 {
			o.Start = &start
		}
		if end >= 0 {
			o.End = &end
		}
		return o
	}
	return nil
}
