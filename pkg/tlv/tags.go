package tlv

import "fmt"

// Tag 配置记录的 TLV 标签
type Tag uint8

const (
	TagIMSI  Tag = 1
	TagICCID Tag = 2
	TagOPC   Tag = 3
	TagKI    Tag = 4
	TagKIC   Tag = 5
	TagKID   Tag = 6
	TagSMSP  Tag = 7
	TagPIN   Tag = 8
	TagADM   Tag = 10
	TagPUK   Tag = 11
	TagSMSC  Tag = 12
	TagEnd   Tag = 0xff // 保留，当前输出不追加结束标签
)

var tagNames = map[Tag]string{
	TagIMSI:  "IMSI",
	TagICCID: "ICCID",
	TagOPC:   "OPC",
	TagKI:    "KI",
	TagKIC:   "KIC",
	TagKID:   "KID",
	TagSMSP:  "SMSP",
	TagPIN:   "PIN",
	TagADM:   "ADM",
	TagPUK:   "PUK",
	TagSMSC:  "SMSC",
	TagEnd:   "END",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Record 单条 TLV 记录，Value 为十六进制字符串
type Record struct {
	Tag   Tag
	Value string
}

// Len 长度字段: 值的十六进制字符数
func (r Record) Len() int {
	return len(r.Value)
}

// Hex 编码为 tag(1 字节) + length(1 字节) + value
func (r Record) Hex() string {
	return fmt.Sprintf("%02x%02x%s", uint8(r.Tag), r.Len(), r.Value)
}
