package sim

import "errors"

// Profile 解密后的 SIM 配置文件
// 所有字段均为可选，空字符串表示字段不存在 (编码时直接省略)
type Profile struct {
	ICCID  string `json:"iccid,omitempty" yaml:"iccid,omitempty"`
	K      string `json:"k,omitempty" yaml:"k,omitempty"`     // Ki
	OPC    string `json:"opc,omitempty" yaml:"opc,omitempty"` // OPc
	KID    string `json:"kid,omitempty" yaml:"kid,omitempty"` // OTA 完整性密钥
	KIC    string `json:"kic,omitempty" yaml:"kic,omitempty"` // OTA 加密密钥
	IMSI   string `json:"imsi,omitempty" yaml:"imsi,omitempty"`
	PIN    string `json:"pin,omitempty" yaml:"pin,omitempty"`
	PUK    string `json:"puk,omitempty" yaml:"puk,omitempty"`
	ADM    string `json:"adm,omitempty" yaml:"adm,omitempty"`
	SMSP   string `json:"smsp,omitempty" yaml:"smsp,omitempty"`
	SMSC   string `json:"smsc,omitempty" yaml:"smsc,omitempty"`
	MSISDN string `json:"msisdn,omitempty" yaml:"msisdn,omitempty"` // 不参与 TLV 编码
}

// EncryptedProfile 供应商下发的加密记录
// Profile 字段是 base64 编码的 RSA 密文
type EncryptedProfile struct {
	ICCID   string `json:"iccid"`
	Profile string `json:"profile"`
}

// WithICCID 在解密结果缺少 ICCID 时用外层记录的 ICCID 补齐
func (p *Profile) WithICCID(iccid string) *Profile {
	if p.ICCID == "" {
		p.ICCID = iccid
	}
	return p
}

var ErrNoPayload = errors.New("encrypted profile has no payload")

// Validate 检查加密记录的结构完整性
func (e EncryptedProfile) Validate() error {
	if e.Profile == "" {
		return ErrNoPayload
	}
	return nil
}
