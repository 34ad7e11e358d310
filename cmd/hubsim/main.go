// hubsim 模拟一台 VESC Hub：TCP 明文认证行 + 帧协议应答。
// 只为联调桥接服务与E2E测试提供确定性的对端，不做真实物理仿真。
//
// 行为约定与真实 Hub 一致：
//   - 可选认证行 VESCTOOL:<id>:<pw>\n，校验失败直接断开，成功不回任何确认；
//   - 未被占用的 CAN 地址对转发探测保持静默（客户端按超时判定）；
//   - 常规单命令 BMS 响应为顺序形态；连发解锁序列（含 PING_CAN）之后为快照形态。
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/taoyao-code/vesc-bridge/internal/protocol/vesc"
)

const banner = `
╔══════════════════════════════════════════════╗
║            VESC Hub Simulator                ║
║   认证行 + 帧应答 + CAN转发 + 错误注入       ║
╚══════════════════════════════════════════════╝
`

// simDevice 一台被模拟的 CAN 设备
type simDevice struct {
	fwMajor int
	fwMinor int
	fwName  string
	hasBMS  bool
}

type simulator struct {
	vescID    string
	password  string
	devices   map[int]simDevice
	errorRate float64
	verbose   bool

	started time.Time
	log     *log.Logger
}

func main() {
	var (
		addr      = flag.String("addr", ":65101", "监听地址")
		vescID    = flag.String("id", "", "认证ID（与 -password 同时设置才校验认证行）")
		password  = flag.String("password", "", "认证口令")
		devices   = flag.String("devices", "1,7", "被模拟的CAN地址（逗号分隔）")
		bms       = flag.String("bms", "7", "其中携带BMS的地址（逗号分隔）")
		errorRate = flag.Float64("error-rate", 0, "响应CRC错误注入率 [0,1]")
		verbose   = flag.Bool("verbose", false, "打印每条命令")
	)
	flag.Parse()

	fmt.Print(banner)
	logger := log.New(os.Stdout, "[hubsim] ", log.LstdFlags|log.Lmicroseconds)

	sim := &simulator{
		vescID:    *vescID,
		password:  *password,
		devices:   buildDevices(*devices, *bms),
		errorRate: *errorRate,
		verbose:   *verbose,
		started:   time.Now(),
		log:       logger,
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Fatalf("listen %s: %v", *addr, err)
	}
	logger.Printf("listening on %s, devices=%v error_rate=%.2f", *addr, deviceAddrs(sim.devices), sim.errorRate)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				sim.handleConn(conn)
			}()
		}
	}()

	<-sigChan
	logger.Println("shutting down...")
	_ = ln.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
	}
	logger.Println("bye")
}

// handleConn 处理一条客户端连接：可选认证行，然后进入帧应答循环
func (s *simulator) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	if s.verbose {
		s.log.Printf("conn %s opened", remote)
	}

	br := bufio.NewReader(conn)

	// 认证行以可打印字符开头，帧以 0x02 开头，看一个字节即可区分
	first, err := br.Peek(1)
	if err != nil {
		return
	}
	if first[0] == 'V' {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		if !s.checkAuth(strings.TrimSpace(line)) {
			s.log.Printf("conn %s rejected: bad auth line", remote)
			return
		}
		if s.verbose {
			s.log.Printf("conn %s authenticated", remote)
		}
	}

	// 连发解锁序列以 PING_CAN 为标志；见过之后 BMS 响应切换为快照形态
	pinged := false

	pr := vesc.NewPacketReader(br)
	for {
		payload, err := pr.Next()
		if err != nil {
			if s.verbose {
				s.log.Printf("conn %s closed: %v", remote, err)
			}
			return
		}
		if len(payload) == 0 {
			continue
		}

		cmd := payload[0]
		if cmd == vesc.CmdPingCAN {
			pinged = true
		}
		resp := s.respond(cmd, payload[1:], pinged)
		if s.verbose {
			s.log.Printf("conn %s cmd=0x%02x respond=%v", remote, cmd, resp != nil)
		}
		if resp == nil {
			continue // 静默：未占用地址的转发探测
		}

		frame := vesc.Encode(resp)
		if s.errorRate > 0 && rand.Float64() < s.errorRate {
			frame[len(frame)-2] ^= 0xFF
			s.log.Printf("conn %s injected crc error on cmd=0x%02x", remote, cmd)
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func (s *simulator) checkAuth(line string) bool {
	if s.vescID == "" || s.password == "" {
		return true
	}
	return line == fmt.Sprintf("VESCTOOL:%s:%s", s.vescID, s.password)
}

// respond 构造一条命令的响应载荷，nil 表示保持静默
func (s *simulator) respond(cmd byte, args []byte, pinged bool) []byte {
	switch cmd {
	case vesc.CmdFWVersion:
		return fwPayload(simDevice{fwMajor: 6, fwMinor: 2, fwName: "HUB SIM"})

	case vesc.CmdGetValues:
		return s.valuesPayload()

	case vesc.CmdGetCustomConfig:
		return []byte{vesc.CmdGetCustomConfig, 0x00, 0x01}

	case vesc.CmdPingCAN:
		return []byte{vesc.CmdPingCAN}

	case vesc.CmdBMSGetValues:
		if pinged {
			return s.bmsSnapshotPayload()
		}
		return s.bmsSequentialPayload()

	case vesc.CmdForwardCAN:
		if len(args) < 2 {
			return nil
		}
		dev, ok := s.devices[int(args[0])]
		if !ok {
			return nil
		}
		switch args[1] {
		case vesc.CmdFWVersion:
			return fwPayload(dev)
		case vesc.CmdBMSGetValues:
			if !dev.hasBMS {
				return nil
			}
			return s.bmsSequentialPayload()
		case vesc.CmdPingCAN:
			return []byte{vesc.CmdPingCAN}
		default:
			return nil
		}

	default:
		return nil
	}
}

// fwPayload FW_VERSION 响应：回显 + 主次版本 + NUL结尾固件名
func fwPayload(d simDevice) []byte {
	out := []byte{vesc.CmdFWVersion, byte(d.fwMajor), byte(d.fwMinor)}
	out = append(out, []byte(d.fwName)...)
	return append(out, 0x00)
}

// valuesPayload GET_VALUES 响应：桥接侧视为不透明字节，按缓变计数器填充
func (s *simulator) valuesPayload() []byte {
	out := []byte{vesc.CmdGetValues}
	tick := uint32(time.Since(s.started) / time.Second)
	var b [4]byte
	for i := 0; i < 16; i++ {
		binary.BigEndian.PutUint32(b[:], tick+uint32(i)*7)
		out = append(out, b[:]...)
	}
	return out
}

// drift 缓慢漂移量，让连续采样看起来像真实电池
func (s *simulator) drift() float64 {
	return math.Sin(time.Since(s.started).Seconds() / 300)
}

func (s *simulator) cellMillivolts(i int) uint16 {
	return uint16(3690 + i*3 + int(20*s.drift()))
}

// bmsSequentialPayload 顺序形态：6×f32 + 电芯区 + 均衡位图 + 温度区 + SoC/SoH/容量
func (s *simulator) bmsSequentialPayload() []byte {
	out := []byte{vesc.CmdBMSGetValues}
	f32 := func(v float64) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], math.Float32bits(float32(v)))
		out = append(out, b[:]...)
	}
	u16 := func(v uint16) {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], v)
		out = append(out, b[:]...)
	}

	const cells = 4
	total := 0.0
	mv := make([]uint16, cells)
	for i := range mv {
		mv[i] = s.cellMillivolts(i)
		total += float64(mv[i]) / 1000.0
	}

	f32(total)               // 总压
	f32(16.8)                // 充电电压
	f32(2.1 + 0.4*s.drift()) // 输入电流
	f32(2.0 + 0.4*s.drift()) // IC电流
	f32(1.25)                // 安时
	f32(18.0)                // 瓦时

	out = append(out, cells)
	for _, v := range mv {
		u16(v)
	}

	out = append(out, 0x00, 0x00, 0x00, 0x04) // 均衡位图

	out = append(out, 2) // 温度点数
	u16(uint16(235 + 10*s.drift()))
	u16(uint16(241 + 10*s.drift()))

	f32(0.6 + 0.2*s.drift()) // SoC
	f32(0.97)                // SoH
	f32(10.0)                // 容量Ah
	return out
}

// bmsSnapshotPayload 快照形态：24字节保留区 + 电芯区 + 均衡标志 + 温度区
func (s *simulator) bmsSnapshotPayload() []byte {
	out := []byte{vesc.CmdBMSGetValues}
	out = append(out, make([]byte, 24)...) // 保留区

	const cells = 4
	out = append(out, cells)
	for i := 0; i < cells; i++ {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], s.cellMillivolts(i))
		out = append(out, b[:]...)
	}

	out = append(out, 0, 0, 0, 1) // 逐电芯均衡标志

	out = append(out, 2) // 温度点数
	for _, t := range []uint16{uint16(2350 + 100*s.drift()), uint16(2410 + 100*s.drift())} {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], t)
		out = append(out, b[:]...)
	}
	return out
}

// buildDevices 解析 -devices / -bms 为模拟设备表
func buildDevices(devicesCSV, bmsCSV string) map[int]simDevice {
	withBMS := make(map[int]bool)
	for _, a := range parseAddrList(bmsCSV) {
		withBMS[a] = true
	}
	out := make(map[int]simDevice)
	for _, a := range parseAddrList(devicesCSV) {
		out[a] = simDevice{
			fwMajor: 6,
			fwMinor: 2,
			fwName:  fmt.Sprintf("SIM NODE %d", a),
			hasBMS:  withBMS[a],
		}
	}
	return out
}

func parseAddrList(csv string) []int {
	var out []int
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 || v > 254 {
			log.Fatalf("invalid CAN address %q", part)
		}
		out = append(out, v)
	}
	return out
}

func deviceAddrs(m map[int]simDevice) []int {
	out := make([]int, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	return out
}
