// Package codec 实现 GSM 文件系统的字段编码:
// BCD 半字节交换、IMSI 半八位组打包、SMSC 地址和定长填充。
// 所有函数都是纯函数，输入输出均为十六进制字符串。
package codec

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	IMSIMaxDigits    = 15 // 3GPP TS 23.003
	SMSCRecordLen    = 24 // SMSC 记录固定 12 字节
	tonInternational = "91"
)

// SwapNibbles 交换每对相邻的十六进制字符
// 奇数长度时最后一个字符保持不变
func SwapNibbles(s string) string {
	b := []byte(s)
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
	return string(b)
}

// RightPad 用 fill 字符右填充到 n 个字符
// len(s) > n 属于调用方违约，直接 panic
func RightPad(s string, n int, fill byte) string {
	if len(s) > n {
		panic(fmt.Sprintf("codec: RightPad input length %d exceeds target %d", len(s), n))
	}
	return s + strings.Repeat(string(fill), n-len(s))
}

// EncodeIMSI 按 TS 31.102 EF_IMSI 格式编码
// 长度字节 + (奇偶标志 | 0x1) + 15 位数字 (不足补 f)，整体半字节交换
func EncodeIMSI(imsi string) string {
	l := halfRoundUp(len(imsi) + 1)
	parity := (len(imsi)&1)<<3 | 1
	body := fmt.Sprintf("%x%s", parity, RightPad(imsi, IMSIMaxDigits, 'f'))
	return fmt.Sprintf("%02x%s", l, SwapNibbles(body))
}

// EncodeSMSC 编码短信中心地址 (TS 24.011 RP-Address)
// 长度字节 + TON/NPI 0x91 + BCD 号码，右填充 ff 到 12 字节
func EncodeSMSC(smsc string) string {
	digits := Digits(smsc)
	octets := halfRoundUp(len(digits))
	if len(digits)%2 == 1 {
		digits += "f"
	}
	addr := fmt.Sprintf("%02x%s%s", octets+1, tonInternational, SwapNibbles(digits))
	return RightPad(addr, SMSCRecordLen, 'f')
}

// ASCIIHex PIN/PUK/ADM 按 ASCII 字节值转十六进制
func ASCIIHex(s string) string {
	return hex.EncodeToString([]byte(s))
}

// Digits 去掉所有非数字字符
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// IsDigits 判断字符串是否只包含十进制数字
func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsHex 判断字符串是否为偶数长度的十六进制
func IsHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func halfRoundUp(n int) int {
	return (n + 1) / 2
}
