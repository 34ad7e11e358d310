package main

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// 协议测试用例 - 严格按照帧格式文档示例
type ProtocolTest struct {
	Section     string                    // 协议章节
	Name        string                    // 测试名称
	Direction   string                    // request/response
	RawHex      string                    // 原始hex（保留空格）
	Analysis    map[string]string         // 解析说明
	Validations []func([]byte) TestResult // 验证函数
}

type TestResult struct {
	Pass    bool
	Message string
}

// crc16 帧校验（多项式 0x1021，初值 0，高位先行，无反转，仅覆盖载荷）
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// buildFrame 按文档规则封帧：0x02 | len | payload | crc16大端 | 0x03
// 载荷<128 时长度占1字节，否则2字节且首字节高位置位。
func buildFrame(payload []byte) []byte {
	n := len(payload)
	buf := make([]byte, 0, n+6)
	if n < 128 {
		buf = append(buf, 0x02, byte(n))
	} else {
		buf = append(buf, 0x02, byte(0x80|(n>>8)&0xFF), byte(n&0xFF))
	}
	buf = append(buf, payload...)
	crc := crc16(payload)
	buf = append(buf, byte(crc>>8), byte(crc&0xFF), 0x03)
	return buf
}

// 严格按照协议文档验证帧结构
func validateFrame(data []byte) TestResult {
	// 1. 验证最小长度（空载荷帧 = 起始+长度+校验2字节+结束 = 5字节）
	if len(data) < 5 {
		return TestResult{false, fmt.Sprintf("帧长度太短: %d字节", len(data))}
	}

	// 2. 验证起始字节
	if data[0] != 0x02 {
		return TestResult{false, fmt.Sprintf("起始字节错误: %02X (期望: 02)", data[0])}
	}

	// 3. 解析长度字段（高位置位 = 2字节长度）
	var plen, off int
	if data[1]&0x80 != 0 {
		if len(data) < 7 {
			return TestResult{false, "长帧头不完整"}
		}
		plen = int(data[1]&0x7F)<<8 | int(data[2])
		off = 3
	} else {
		plen = int(data[1])
		off = 2
	}

	// 4. 验证总长度一致
	want := off + plen + 3
	if len(data) != want {
		return TestResult{false, fmt.Sprintf("总长度不一致: 实际%d字节 (长度字段推算: %d)", len(data), want)}
	}

	// 5. 验证载荷校验（大端，紧跟载荷）
	payload := data[off : off+plen]
	gotCRC := uint16(data[off+plen])<<8 | uint16(data[off+plen+1])
	wantCRC := crc16(payload)
	if gotCRC != wantCRC {
		return TestResult{false, fmt.Sprintf("校验错误: %04X (期望: %04X)", gotCRC, wantCRC)}
	}

	// 6. 验证结束字节
	if data[len(data)-1] != 0x03 {
		return TestResult{false, fmt.Sprintf("结束字节错误: %02X (期望: 03)", data[len(data)-1])}
	}

	return TestResult{true, fmt.Sprintf("✅ 帧结构正确 (载荷%d字节, CRC=%04X)", plen, wantCRC)}
}

// framePayload 提取已通过结构校验的帧载荷
func framePayload(data []byte) []byte {
	if data[1]&0x80 != 0 {
		return data[3 : len(data)-3]
	}
	return data[2 : len(data)-3]
}

func expectCommand(want byte, name string) func([]byte) TestResult {
	return func(data []byte) TestResult {
		p := framePayload(data)
		if len(p) == 0 {
			return TestResult{false, "载荷为空，无命令字"}
		}
		if p[0] != want {
			return TestResult{false, fmt.Sprintf("命令字错误: %02X (期望: %02X %s)", p[0], want, name)}
		}
		return TestResult{true, fmt.Sprintf("✅ 命令字 %02X (%s)", want, name)}
	}
}

func main() {
	tests := []ProtocolTest{
		{
			Section:   "§探测",
			Name:      "固件版本查询",
			Direction: "request",
			RawHex:    "02 01 00 00 00 03",
			Analysis: map[string]string{
				"命令":   "00 COMM_FW_VERSION",
				"载荷长度": "1",
				"校验":   "0000",
			},
			Validations: []func([]byte) TestResult{
				expectCommand(0x00, "COMM_FW_VERSION"),
			},
		},
		{
			Section:   "§探测",
			Name:      "固件版本应答 (6.2)",
			Direction: "response",
			RawHex:    "02 03 00 06 02 8a e4 03",
			Analysis: map[string]string{
				"命令":   "00 COMM_FW_VERSION (回显)",
				"主版本":  "06",
				"次版本":  "02",
				"载荷长度": "3",
				"校验":   "8ae4",
			},
			Validations: []func([]byte) TestResult{
				expectCommand(0x00, "COMM_FW_VERSION"),
				func(data []byte) TestResult {
					p := framePayload(data)
					if len(p) < 3 || p[1] != 6 || p[2] != 2 {
						return TestResult{false, fmt.Sprintf("版本号错误: %v (期望: 6.2)", p[1:])}
					}
					return TestResult{true, "✅ 固件版本 6.2"}
				},
			},
		},
		{
			Section:   "§遥测",
			Name:      "控制器实时数据查询",
			Direction: "request",
			RawHex:    "02 01 04 40 84 03",
			Analysis: map[string]string{
				"命令":   "04 COMM_GET_VALUES",
				"载荷长度": "1",
				"校验":   "4084",
			},
			Validations: []func([]byte) TestResult{
				expectCommand(0x04, "COMM_GET_VALUES"),
			},
		},
		{
			Section:   "§遥测",
			Name:      "BMS实时数据查询",
			Direction: "request",
			RawHex:    "02 01 60 6c a6 03",
			Analysis: map[string]string{
				"命令":   "60 COMM_BMS_GET_VALUES",
				"载荷长度": "1",
				"校验":   "6ca6",
			},
			Validations: []func([]byte) TestResult{
				expectCommand(0x60, "COMM_BMS_GET_VALUES"),
			},
		},
		{
			Section:   "§转发",
			Name:      "CAN转发固件探测 (地址1)",
			Direction: "request",
			RawHex:    "02 03 22 01 00 db 97 03",
			Analysis: map[string]string{
				"命令":   "22 COMM_FORWARD_CAN",
				"目标地址": "01",
				"内层命令": "00 COMM_FW_VERSION",
				"载荷长度": "3",
				"校验":   "db97",
			},
			Validations: []func([]byte) TestResult{
				expectCommand(0x22, "COMM_FORWARD_CAN"),
				func(data []byte) TestResult {
					p := framePayload(data)
					if len(p) != 3 || p[1] != 0x01 || p[2] != 0x00 {
						return TestResult{false, fmt.Sprintf("转发封装错误: %X", p)}
					}
					return TestResult{true, "✅ 转发封装 [地址=1, 内层=COMM_FW_VERSION]"}
				},
			},
		},
	}

	// 长度边界用例运行时合成：127字节走短帧头，128字节走长帧头
	short := buildFrame(make([]byte, 127))
	long := buildFrame(make([]byte, 128))
	tests = append(tests,
		ProtocolTest{
			Section:   "§边界",
			Name:      "127字节载荷 (短帧头)",
			Direction: "request",
			RawHex:    hex.EncodeToString(short),
			Analysis:  map[string]string{"长度字段": "7f (1字节)"},
			Validations: []func([]byte) TestResult{
				func(data []byte) TestResult {
					if data[1] != 0x7F {
						return TestResult{false, fmt.Sprintf("长度字段错误: %02X (期望: 7F)", data[1])}
					}
					return TestResult{true, "✅ 短帧头: 长度字段1字节"}
				},
			},
		},
		ProtocolTest{
			Section:   "§边界",
			Name:      "128字节载荷 (长帧头)",
			Direction: "request",
			RawHex:    hex.EncodeToString(long),
			Analysis:  map[string]string{"长度字段": "80 80 (2字节, 高位置位)"},
			Validations: []func([]byte) TestResult{
				func(data []byte) TestResult {
					if data[1] != 0x80 || data[2] != 0x80 {
						return TestResult{false, fmt.Sprintf("长度字段错误: %02X %02X (期望: 80 80)", data[1], data[2])}
					}
					return TestResult{true, "✅ 长帧头: 长度字段2字节"}
				},
			},
		},
	)

	fmt.Println("================================================================================")
	fmt.Println("VESC 帧协议完整性验证")
	fmt.Println("================================================================================")
	fmt.Println()

	passCount := 0
	failCount := 0
	var failedTests []string

	for _, test := range tests {
		fmt.Printf("【%s】%s (%s)\n", test.Section, test.Name, test.Direction)

		data, err := hex.DecodeString(strings.ReplaceAll(test.RawHex, " ", ""))
		if err != nil {
			fmt.Printf("❌ hex解析失败: %v\n", err)
			failCount++
			failedTests = append(failedTests, fmt.Sprintf("%s - %s: hex解析失败", test.Section, test.Name))
			continue
		}
		if len(data) <= 16 {
			fmt.Printf("原始数据: % X\n", data)
		} else {
			fmt.Printf("原始数据: % X ... (%d字节)\n", data[:16], len(data))
		}

		for k, v := range test.Analysis {
			fmt.Printf("  %s: %s\n", k, v)
		}

		// 基本帧验证
		result := validateFrame(data)
		allPass := result.Pass
		fmt.Printf("\n%s\n", result.Message)

		// 用例专属验证
		if result.Pass {
			for _, v := range test.Validations {
				r := v(data)
				fmt.Printf("%s\n", r.Message)
				if !r.Pass {
					allPass = false
					failedTests = append(failedTests, fmt.Sprintf("%s - %s: %s", test.Section, test.Name, r.Message))
				}
			}
		} else {
			failedTests = append(failedTests, fmt.Sprintf("%s - %s: %s", test.Section, test.Name, result.Message))
		}

		if allPass {
			passCount++
		} else {
			failCount++
		}

		fmt.Println(strings.Repeat("-", 80))
		fmt.Println()
	}

	// 总结
	fmt.Println("================================================================================")
	fmt.Println("测试总结")
	fmt.Println("================================================================================")
	fmt.Printf("总计: %d 个测试\n", len(tests))
	fmt.Printf("通过: %d\n", passCount)
	fmt.Printf("失败: %d\n", failCount)
	fmt.Println()

	if failCount > 0 {
		fmt.Println("失败的测试:")
		for _, failed := range failedTests {
			fmt.Printf("  ❌ %s\n", failed)
		}
		fmt.Println()
		fmt.Println("❌ 编解码实现与文档示例不一致，需要修正！")
	} else {
		fmt.Println("✅ 所有协议示例验证通过！编解码实现与文档一致！")
	}
	fmt.Println("================================================================================")
}
