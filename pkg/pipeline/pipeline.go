package pipeline

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/iniwex5/simprofile/pkg/crypto"
	"github.com/iniwex5/simprofile/pkg/logger"
	"github.com/iniwex5/simprofile/pkg/sim"
	"github.com/iniwex5/simprofile/pkg/tlv"
)

// Format 输出格式
type Format string

const (
	FormatHex  Format = "hex"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat 校验输出格式
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatHex, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Pipeline 解密 -> 校验 -> 编码
// 单条记录的处理互不影响，可并发调用
type Pipeline struct {
	dec    crypto.Decrypter
	enc    tlv.Encoder
	format Format
}

func New(dec crypto.Decrypter, enc tlv.Encoder, format Format) *Pipeline {
	if format == "" {
		format = FormatHex
	}
	return &Pipeline{dec: dec, enc: enc, format: format}
}

// Decode 解密并校验一条记录
func (p *Pipeline) Decode(ep sim.EncryptedProfile) (*sim.Profile, error) {
	prof, err := p.dec.DecryptProfile(ep)
	if err != nil {
		return nil, err
	}
	if err := tlv.Validate(prof); err != nil {
		return nil, fmt.Errorf("iccid %s: %w", prof.ICCID, err)
	}
	return prof, nil
}

// Render 按配置的格式编码
func (p *Pipeline) Render(prof *sim.Profile) (string, error) {
	switch p.format {
	case FormatJSON:
		return p.enc.ToJSON(prof)
	case FormatYAML:
		return p.enc.ToYAML(prof)
	default:
		return p.enc.ToHex(prof), nil
	}
}

// Process 处理一条加密记录
func (p *Pipeline) Process(ep sim.EncryptedProfile) (string, error) {
	prof, err := p.Decode(ep)
	if err != nil {
		logger.Debug("profile decode failed", logger.String("iccid", ep.ICCID), logger.Err(err))
		return "", err
	}
	out, err := p.Render(prof)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", p.format, err)
	}
	logger.Debug("profile encoded",
		logger.String("iccid", prof.ICCID),
		logger.String("format", string(p.format)),
		logger.Int("size", len(out)))
	return out, nil
}

// ProcessAll 逐条处理，失败记录不会输出
// 与 Decryptor.DecryptAll 相同: 至少一条成功时返回成功结果和合并错误，否则返回第一个错误
func (p *Pipeline) ProcessAll(eps []sim.EncryptedProfile) ([]string, error) {
	var (
		out   []string
		errs  error
		first error
	)
	for _, ep := range eps {
		s, err := p.Process(ep)
		if err != nil {
			if first == nil {
				first = err
			}
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, first
	}
	return out, errs
}
