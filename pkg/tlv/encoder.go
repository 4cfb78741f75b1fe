package tlv

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iniwex5/simprofile/pkg/codec"
	"github.com/iniwex5/simprofile/pkg/sim"
)

// 报告中引用的 SIM 文件路径，仅作说明
const (
	FileIMSI   = "/3f00/7ff0/6f07"
	FileICCID  = "/3f00/2fe2"
	FileAttach = "/3f00/a001"
	FileOTA    = "/3f00/a004"
)

const otaTrailerOctets = 76

// Encoder 把 Profile 编码为 TLV 序列
type Encoder struct {
	IncludeSMSP bool
	IncludeSMSC bool
}

// Field 报告中的派生字段
type Field struct {
	Name    string `json:"name" yaml:"name"`
	File    string `json:"file" yaml:"file"`
	Content string `json:"content" yaml:"content"`
}

// ExtendedProfile JSON/YAML 报告
type ExtendedProfile struct {
	Profile          sim.Profile `json:"profile" yaml:"profile"`
	AdditionalFields []Field     `json:"additional_fields" yaml:"additional_fields"`
}

// Records 按固定顺序生成 TLV 记录，缺失字段不输出
func (e Encoder) Records(p *sim.Profile) []Record {
	var recs []Record
	add := func(tag Tag, value string) {
		recs = append(recs, Record{Tag: tag, Value: value})
	}

	if p.IMSI != "" {
		add(TagIMSI, codec.EncodeIMSI(p.IMSI))
	}
	if p.ICCID != "" {
		add(TagICCID, codec.SwapNibbles(p.ICCID))
	}
	if p.OPC != "" {
		add(TagOPC, p.OPC)
	}
	if p.K != "" {
		add(TagKI, p.K)
	}
	if p.KIC != "" {
		add(TagKIC, p.KIC)
	}
	if p.KID != "" {
		add(TagKID, p.KID)
	}
	if e.IncludeSMSP && p.SMSP != "" {
		add(TagSMSP, p.SMSP)
	}
	if e.IncludeSMSC && p.SMSC != "" {
		add(TagSMSC, codec.EncodeSMSC(p.SMSC))
	}
	if p.PIN != "" {
		add(TagPIN, codec.ASCIIHex(p.PIN))
	}
	if p.PUK != "" {
		add(TagPUK, codec.ASCIIHex(p.PUK))
	}
	if p.ADM != "" {
		add(TagADM, codec.ASCIIHex(p.ADM))
	}
	return recs
}

// ToHex 拼接所有 TLV 记录，无分隔符、无结束标签
func (e Encoder) ToHex(p *sim.Profile) string {
	var b strings.Builder
	for _, r := range e.Records(p) {
		b.WriteString(r.Hex())
	}
	return b.String()
}

// Extend 生成带派生字段的报告，最后一项为完整的 hex 输出
func (e Encoder) Extend(p *sim.Profile) ExtendedProfile {
	ext := ExtendedProfile{Profile: *p, AdditionalFields: []Field{}}
	add := func(name, file, content string) {
		ext.AdditionalFields = append(ext.AdditionalFields, Field{Name: name, File: file, Content: content})
	}

	if p.IMSI != "" {
		add("IMSI", FileIMSI, codec.EncodeIMSI(p.IMSI))
	}
	if p.ICCID != "" {
		add("ICCID", FileICCID, codec.SwapNibbles(p.ICCID))
	}
	if p.K != "" && p.OPC != "" {
		add("KI_OPC", FileAttach, p.K+p.OPC+"00")
	}
	if p.KIC != "" && p.KID != "" {
		add("KIC_KID", FileOTA, p.KIC+p.KID+strings.Repeat("00", otaTrailerOctets))
	}
	add("HEX", "", e.ToHex(p))
	return ext
}

func (e Encoder) ToJSON(p *sim.Profile) (string, error) {
	out, err := json.Marshal(e.Extend(p))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (e Encoder) ToYAML(p *sim.Profile) (string, error) {
	out, err := yaml.Marshal(e.Extend(p))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ToHex 便捷函数
func ToHex(p *sim.Profile, includeSMSP, includeSMSC bool) string {
	return Encoder{IncludeSMSP: includeSMSP, IncludeSMSC: includeSMSC}.ToHex(p)
}

// ToJSON 便捷函数
func ToJSON(p *sim.Profile, includeSMSP, includeSMSC bool) (string, error) {
	return Encoder{IncludeSMSP: includeSMSP, IncludeSMSC: includeSMSC}.ToJSON(p)
}
